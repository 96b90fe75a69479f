package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// ResilientOnboarding wraps an OnboardingAPI with resilience patterns
// from fortify. Prompt fetches are idempotent and get retried with
// backoff; submissions are never retried, since a timed-out submission
// may still have been accepted by the backend.
type ResilientOnboarding struct {
	api OnboardingAPI

	promptBreaker circuitbreaker.CircuitBreaker[*domain.Prompt]
	promptRetrier retry.Retry[*domain.Prompt]
	promptBulk    bulkhead.Bulkhead[*domain.Prompt]

	submitBreaker circuitbreaker.CircuitBreaker[*domain.AssessmentResult]

	rateLimit ratelimit.RateLimiter
	logger    *slog.Logger
}

// ResilientConfig holds tuning for the resilient wrapper.
type ResilientConfig struct {
	// MaxConcurrentFetches bounds in-flight prompt fetches (default: 4).
	MaxConcurrentFetches int

	// RatePerSecond for all calls to the backend (default: 5).
	RatePerSecond int

	// Logger for resilience events.
	Logger *slog.Logger
}

// DefaultResilientConfig returns sensible defaults for the assessment backend.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxConcurrentFetches: 4,
		RatePerSecond:        5,
	}
}

// NewResilientOnboarding wraps api with circuit breaking, bounded
// concurrency, rate limiting, and retry-on-read.
func NewResilientOnboarding(api OnboardingAPI, cfg ResilientConfig) *ResilientOnboarding {
	r := &ResilientOnboarding{
		api:    api,
		logger: cfg.Logger,
	}

	maxConcurrent := cfg.MaxConcurrentFetches
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	rate := cfg.RatePerSecond
	if rate <= 0 {
		rate = 5
	}

	r.promptBreaker = circuitbreaker.New[*domain.Prompt](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if r.logger != nil {
				r.logger.Warn("assessment backend circuit state change",
					"path", "prompts",
					"from", from.String(),
					"to", to.String())
			}
		},
	})

	r.promptRetrier = retry.New[*domain.Prompt](retry.Config{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return isRetryableHTTPError(err)
		},
	})

	r.promptBulk = bulkhead.New[*domain.Prompt](bulkhead.Config{
		MaxConcurrent: maxConcurrent,
		MaxQueue:      maxConcurrent * 2,
		QueueTimeout:  15 * time.Second,
	})

	r.submitBreaker = circuitbreaker.New[*domain.AssessmentResult](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if r.logger != nil {
				r.logger.Warn("assessment backend circuit state change",
					"path", "submissions",
					"from", from.String(),
					"to", to.String())
			}
		},
	})

	r.rateLimit = ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    rate * 2,
		Interval: time.Second,
	})

	return r
}

func (r *ResilientOnboarding) allow(ctx context.Context, key string) error {
	if !r.rateLimit.Allow(ctx, key) {
		return fmt.Errorf("rate limit exceeded for assessment backend (%s)", key)
	}
	return nil
}

func (r *ResilientOnboarding) Prompt(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error) {
	if err := r.allow(ctx, "prompt"); err != nil {
		return nil, err
	}

	return r.promptBreaker.Execute(ctx, func(ctx context.Context) (*domain.Prompt, error) {
		return r.promptRetrier.Do(ctx, func(ctx context.Context) (*domain.Prompt, error) {
			return r.promptBulk.Execute(ctx, func(ctx context.Context) (*domain.Prompt, error) {
				return r.api.Prompt(ctx, t)
			})
		})
	})
}

func (r *ResilientOnboarding) SubmitLanguages(ctx context.Context, userID string, pair domain.LanguagePair) error {
	if err := r.allow(ctx, "submit"); err != nil {
		return err
	}

	_, err := r.submitBreaker.Execute(ctx, func(ctx context.Context) (*domain.AssessmentResult, error) {
		return nil, r.api.SubmitLanguages(ctx, userID, pair)
	})
	return err
}

func (r *ResilientOnboarding) SubmitAssessment(ctx context.Context, userID string, resp *domain.AssessmentResponse) error {
	if err := r.allow(ctx, "submit"); err != nil {
		return err
	}

	_, err := r.submitBreaker.Execute(ctx, func(ctx context.Context) (*domain.AssessmentResult, error) {
		return nil, r.api.SubmitAssessment(ctx, userID, resp)
	})
	return err
}

func (r *ResilientOnboarding) SubmitFinal(ctx context.Context, userID string, responses map[domain.AssessmentType]*domain.AssessmentResponse) (*domain.AssessmentResult, error) {
	if err := r.allow(ctx, "submit"); err != nil {
		return nil, err
	}

	return r.submitBreaker.Execute(ctx, func(ctx context.Context) (*domain.AssessmentResult, error) {
		return r.api.SubmitFinal(ctx, userID, responses)
	})
}

// Close releases resources held by the wrapper.
func (r *ResilientOnboarding) Close() error {
	if r.rateLimit != nil {
		return r.rateLimit.Close()
	}
	return nil
}

// isRetryableHTTPError reports whether an error carries a retryable
// HTTP status, based on the "(status NNN)" text doJSON produces.
func isRetryableHTTPError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryable := []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	for _, code := range retryable {
		if strings.Contains(errStr, fmt.Sprintf("status %d", code)) {
			return true
		}
	}
	return false
}
