package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/polyglot/internal/client"
	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// backgroundFetchTimeout bounds each background prompt fetch.
const backgroundFetchTimeout = 30 * time.Second

// PromptFetchError reports a failed prompt fetch for one assessment type.
// The queue keeps serving other types; a later Prompt call for the same
// type retries the fetch.
type PromptFetchError struct {
	Type domain.AssessmentType
	Err  error
}

func (e *PromptFetchError) Error() string {
	return fmt.Sprintf("fetch %s prompt: %v", e.Type, e.Err)
}

func (e *PromptFetchError) Unwrap() error { return e.Err }

// PrefetchQueue warms assessment prompts ahead of the user. Initialize
// fetches the first type synchronously and the remaining types in the
// background; Prompt serves from the warmed set, joining an in-flight
// fetch rather than issuing a duplicate when one is already running.
type PrefetchQueue struct {
	api    client.OnboardingAPI
	logger *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	prompts map[domain.AssessmentType]*domain.Prompt
	errs    map[domain.AssessmentType]*PromptFetchError
}

// NewPrefetchQueue creates a queue over the assessment backend.
func NewPrefetchQueue(api client.OnboardingAPI, logger *slog.Logger) *PrefetchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrefetchQueue{
		api:     api,
		logger:  logger,
		prompts: make(map[domain.AssessmentType]*domain.Prompt),
		errs:    make(map[domain.AssessmentType]*PromptFetchError),
	}
}

// Initialize warms the queue. The first assessment type is fetched
// synchronously so the user can start immediately; the rest are fetched
// in the background and their failures only logged. A background result
// that lands after the user has moved on is still stored.
func (q *PrefetchQueue) Initialize(ctx context.Context) error {
	order := domain.AssessmentOrder()

	if _, err := q.fetch(ctx, order[0]); err != nil {
		return err
	}

	for _, t := range order[1:] {
		go func(t domain.AssessmentType) {
			bg, cancel := context.WithTimeout(context.Background(), backgroundFetchTimeout)
			defer cancel()
			if _, err := q.fetch(bg, t); err != nil {
				q.logger.Warn("background prompt prefetch failed",
					"type", string(t),
					"error", err)
			}
		}(t)
	}
	return nil
}

// Prompt returns the prompt for t, serving the warmed copy when present
// and otherwise fetching on demand. Concurrent callers for the same type
// share one backend request.
func (q *PrefetchQueue) Prompt(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrWrongAssessmentType, t)
	}

	q.mu.Lock()
	if p, ok := q.prompts[t]; ok {
		q.mu.Unlock()
		return p, nil
	}
	q.mu.Unlock()

	return q.fetch(ctx, t)
}

// Loaded reports whether the prompt for t is already warmed.
func (q *PrefetchQueue) Loaded(t domain.AssessmentType) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.prompts[t]
	return ok
}

// FetchErr returns the recorded failure for t, nil when the last fetch
// succeeded or none has run.
func (q *PrefetchQueue) FetchErr(t domain.AssessmentType) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.errs[t]; ok {
		return e
	}
	return nil
}

// Clear drops all warmed prompts and recorded failures.
func (q *PrefetchQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prompts = make(map[domain.AssessmentType]*domain.Prompt)
	q.errs = make(map[domain.AssessmentType]*PromptFetchError)
}

func (q *PrefetchQueue) fetch(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error) {
	v, err, _ := q.group.Do(string(t), func() (any, error) {
		p, err := q.api.Prompt(ctx, t)

		q.mu.Lock()
		defer q.mu.Unlock()
		if err != nil {
			fe := &PromptFetchError{Type: t, Err: err}
			q.errs[t] = fe
			return nil, fe
		}
		q.prompts[t] = p
		delete(q.errs, t)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Prompt), nil
}
