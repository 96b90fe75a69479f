// Package onboarding implements the onboarding flow: language selection,
// the four-part skill assessment, and the hand-off to the learning path.
// State moves forward through a fixed step order and survives restarts
// through the session cache and the server-side store.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/polyglot/internal/cache"
	"github.com/felixgeelhaar/polyglot/internal/client"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/storage/local"
)

// Progress milestones for the fixed step order. Each completed
// assessment submission adds progressPerSubmission on top of the
// language milestone.
const (
	progressLanguages     = 10.0
	progressPerSubmission = 20.0
	progressComplete      = 100.0
)

// StateStore is the server-side record of onboarding states.
type StateStore interface {
	Save(userID string, state *domain.OnboardingState) error
	Get(userID string) (*domain.OnboardingState, error)
	Delete(userID string) error
}

// EventPublisher emits onboarding lifecycle events. Publishing is best
// effort: failures are logged, never surfaced to the user.
type EventPublisher interface {
	PublishAssessmentCompleted(ctx context.Context, event domain.AssessmentCompletedEvent) error
	PublishOnboardingCompleted(ctx context.Context, event domain.OnboardingCompletedEvent) error
}

// Service drives the onboarding flow for all users. The in-memory state
// is authoritative for a running process; every mutation is mirrored to
// the session cache and the server-side store.
type Service struct {
	api    client.OnboardingAPI
	store  StateStore
	cache  *cache.SessionCache
	queue  *PrefetchQueue
	events EventPublisher
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]*domain.OnboardingState
}

// NewService wires the onboarding service. events may be nil when no
// broker is configured.
func NewService(api client.OnboardingAPI, store StateStore, sessionCache *cache.SessionCache, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:    api,
		store:  store,
		cache:  sessionCache,
		queue:  NewPrefetchQueue(api, logger),
		events: events,
		logger: logger,
		states: make(map[string]*domain.OnboardingState),
	}
}

// State returns the user's current onboarding state, rehydrating from
// the cache or store on first access and creating a fresh state for
// first-time users.
func (s *Service) State(ctx context.Context, userID string) (*domain.OnboardingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(ctx, userID)
}

func (s *Service) stateLocked(ctx context.Context, userID string) (*domain.OnboardingState, error) {
	if state, ok := s.states[userID]; ok {
		return state, nil
	}

	state, err := s.rehydrate(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.states[userID] = state
	return state, nil
}

// rehydrate restores a state snapshot, preferring the session cache and
// falling back to the server-side store. Prompt-loaded flags are cleared
// because warmed prompts do not survive a restart; if the user was mid
// assessment the prefetch queue is warmed again in the background.
func (s *Service) rehydrate(ctx context.Context, userID string) (*domain.OnboardingState, error) {
	var state domain.OnboardingState

	err := s.cache.Get(local.NamespaceOnboarding, userID, &state)
	if errors.Is(err, local.ErrNotFound) {
		stored, serr := s.store.Get(userID)
		if errors.Is(serr, domain.ErrOnboardingNotFound) {
			return domain.NewOnboardingState(), nil
		}
		if serr != nil {
			return nil, fmt.Errorf("rehydrate onboarding state: %w", serr)
		}
		state = *stored
	} else if err != nil {
		return nil, fmt.Errorf("rehydrate onboarding state: %w", err)
	}

	if state.Prompts == nil {
		state.Prompts = make(map[domain.AssessmentType]*domain.Prompt)
	}
	if state.Responses == nil {
		state.Responses = make(map[domain.AssessmentType]*domain.AssessmentResponse)
	}
	if state.Submissions == nil {
		state.Submissions = make(map[domain.AssessmentType]domain.SubmissionStatus)
	}
	state.PromptLoaded = make(map[domain.AssessmentType]bool)
	for t, p := range state.Prompts {
		if p != nil {
			state.PromptLoaded[t] = true
		}
	}

	if state.CurrentStep == domain.StepAssessment {
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), backgroundFetchTimeout)
			defer cancel()
			if err := s.queue.Initialize(bg); err != nil {
				s.logger.Warn("prefetch rewarm after rehydrate failed", "user_id", userID, "error", err)
			}
		}()
	}

	s.logger.Info("onboarding state rehydrated",
		"user_id", userID,
		"step", string(state.CurrentStep))
	return &state, nil
}

// persistLocked mirrors the state to the cache layer and the server-side
// store. Called with s.mu held.
func (s *Service) persistLocked(userID string, state *domain.OnboardingState) error {
	if err := s.store.Save(userID, state); err != nil {
		return fmt.Errorf("save onboarding state: %w", err)
	}
	if err := s.cache.Set(local.NamespaceOnboarding, userID, state); err != nil {
		// The server-side record is already written; a cache miss on
		// the next read falls through to it.
		s.logger.Warn("onboarding cache write failed", "user_id", userID, "error", err)
	}
	return nil
}

// SubmitLanguages records the native/target selection and advances to
// the assessment intro.
func (s *Service) SubmitLanguages(ctx context.Context, userID string, pair domain.LanguagePair) (*domain.OnboardingState, error) {
	if err := pair.Validate(); err != nil {
		return nil, fmt.Errorf("%w: native and target must be distinct two-letter codes", domain.ErrLanguagesRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep != domain.StepLanguage {
		return nil, fmt.Errorf("%w: languages already submitted", domain.ErrInvalidStepTransition)
	}

	if err := s.api.SubmitLanguages(ctx, userID, pair); err != nil {
		state.Error = err.Error()
		return nil, fmt.Errorf("submit languages: %w", err)
	}

	state.Languages = &pair
	state.Error = ""
	if err := state.Advance(domain.StepAssessmentIntro); err != nil {
		return nil, err
	}
	state.SetProgress(progressLanguages)

	if err := s.persistLocked(userID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// StartAssessment moves the user into the assessment step, sets the
// first assessment type active, and warms the prompt queue. The first
// prompt is fetched before this returns; the rest load in the
// background.
func (s *Service) StartAssessment(ctx context.Context, userID string) (*domain.OnboardingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch state.CurrentStep {
	case domain.StepAssessmentIntro:
	case domain.StepAssessment:
		return state, nil // already started
	default:
		return nil, fmt.Errorf("%w: cannot start assessment from step %q", domain.ErrInvalidStepTransition, state.CurrentStep)
	}

	if err := s.queue.Initialize(ctx); err != nil {
		state.RecordPromptFailure(domain.AssessmentOrder()[0])
		return nil, err
	}

	if err := state.Advance(domain.StepAssessment); err != nil {
		return nil, err
	}
	state.AssessmentType = domain.AssessmentOrder()[0]

	first := state.AssessmentType
	if p, perr := s.queue.Prompt(ctx, first); perr == nil {
		state.RecordPrompt(first, p)
	}

	if err := s.persistLocked(userID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Prompt returns the prompt for the given assessment type, joining any
// in-flight prefetch rather than duplicating the request.
func (s *Service) Prompt(ctx context.Context, userID string, t domain.AssessmentType) (*domain.Prompt, error) {
	s.mu.Lock()
	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if state.CurrentStep != domain.StepAssessment {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: assessment not active", domain.ErrInvalidStepTransition)
	}
	s.mu.Unlock()

	prompt, err := s.queue.Prompt(ctx, t)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A reset may have landed while the fetch was in flight. Recording
	// onto the captured state would persist the old session back, so
	// drop the update when the in-memory state is gone or replaced.
	if current, ok := s.states[userID]; !ok || current != state {
		if err != nil {
			return nil, err
		}
		return prompt, nil
	}
	if err != nil {
		state.RecordPromptFailure(t)
		if perr := s.persistLocked(userID, state); perr != nil {
			s.logger.Warn("persist after prompt failure failed", "user_id", userID, "error", perr)
		}
		return nil, err
	}
	state.RecordPrompt(t, prompt)
	if perr := s.persistLocked(userID, state); perr != nil {
		s.logger.Warn("persist after prompt fetch failed", "user_id", userID, "error", perr)
	}
	return prompt, nil
}

// SubmitAssessment submits the response for the currently active
// assessment type. On success the next type becomes active; after the
// last one the user may call SubmitFinal.
func (s *Service) SubmitAssessment(ctx context.Context, userID string, resp *domain.AssessmentResponse) (*domain.OnboardingState, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep != domain.StepAssessment {
		return nil, fmt.Errorf("%w: assessment not active", domain.ErrInvalidStepTransition)
	}
	if resp.Type != state.AssessmentType {
		return nil, fmt.Errorf("%w: active type is %q, got %q", domain.ErrWrongAssessmentType, state.AssessmentType, resp.Type)
	}

	state.Submissions[resp.Type] = domain.SubmissionStatus{State: domain.SubmissionPending}

	if err := s.api.SubmitAssessment(ctx, userID, resp); err != nil {
		state.Submissions[resp.Type] = domain.SubmissionStatus{
			State: domain.SubmissionFailed,
			Error: err.Error(),
		}
		if perr := s.persistLocked(userID, state); perr != nil {
			s.logger.Warn("persist after failed submission failed", "user_id", userID, "error", perr)
		}
		return nil, fmt.Errorf("submit %s assessment: %w", resp.Type, err)
	}

	state.Responses[resp.Type] = resp
	state.Submissions[resp.Type] = domain.SubmissionStatus{State: domain.SubmissionCompleted}

	completed := 0
	for _, t := range domain.AssessmentOrder() {
		if state.Submissions[t].State == domain.SubmissionCompleted {
			completed++
		}
	}
	state.SetProgress(progressLanguages + progressPerSubmission*float64(completed))

	if next, ok := domain.NextAssessment(resp.Type); ok {
		state.AssessmentType = next
	}

	if err := s.persistLocked(userID, state); err != nil {
		return nil, err
	}

	s.publishAssessmentCompleted(ctx, userID, resp.Type)
	return state, nil
}

// SubmitFinal sends the full response set for evaluation, records the
// result, and completes onboarding. The returned result seeds the
// learning path.
func (s *Service) SubmitFinal(ctx context.Context, userID string) (*domain.AssessmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.stateLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep == domain.StepComplete {
		return state.Result, nil // already finalized
	}
	if state.CurrentStep != domain.StepAssessment {
		return nil, fmt.Errorf("%w: assessment not active", domain.ErrInvalidStepTransition)
	}
	if !state.SubmittedAll() {
		return nil, domain.ErrAssessmentIncomplete
	}

	result, err := s.api.SubmitFinal(ctx, userID, state.Responses)
	if err != nil {
		state.Error = err.Error()
		if perr := s.persistLocked(userID, state); perr != nil {
			s.logger.Warn("persist after failed final submission failed", "user_id", userID, "error", perr)
		}
		return nil, fmt.Errorf("submit final assessment: %w", err)
	}

	state.Result = result
	state.Error = ""
	state.AssessmentType = ""
	if err := state.Advance(domain.StepComplete); err != nil {
		return nil, err
	}
	state.SetProgress(progressComplete)

	if err := s.persistLocked(userID, state); err != nil {
		return nil, err
	}

	s.publishOnboardingCompleted(ctx, userID, result)
	s.logger.Info("onboarding completed", "user_id", userID, "level", result.Level)
	return result, nil
}

// Reset discards the user's onboarding state everywhere, returning them
// to the language step on next access.
func (s *Service) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)

	if err := s.store.Delete(userID); err != nil && !errors.Is(err, domain.ErrOnboardingNotFound) {
		return fmt.Errorf("reset onboarding state: %w", err)
	}
	if err := s.cache.Remove(local.NamespaceOnboarding, userID); err != nil {
		s.logger.Warn("onboarding cache invalidation failed", "user_id", userID, "error", err)
	}

	s.logger.Info("onboarding state reset", "user_id", userID)
	return nil
}

func (s *Service) publishAssessmentCompleted(ctx context.Context, userID string, t domain.AssessmentType) {
	if s.events == nil {
		return
	}
	event := domain.AssessmentCompletedEvent{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        t,
		CompletedAt: time.Now(),
	}
	if err := s.events.PublishAssessmentCompleted(ctx, event); err != nil {
		s.logger.Warn("publish assessment completed failed", "user_id", userID, "type", string(t), "error", err)
	}
}

func (s *Service) publishOnboardingCompleted(ctx context.Context, userID string, result *domain.AssessmentResult) {
	if s.events == nil {
		return
	}
	event := domain.OnboardingCompletedEvent{
		ID:          uuid.New(),
		UserID:      userID,
		Scores:      result.Scores,
		CompletedAt: time.Now(),
	}
	if err := s.events.PublishOnboardingCompleted(ctx, event); err != nil {
		s.logger.Warn("publish onboarding completed failed", "user_id", userID, "error", err)
	}
}
