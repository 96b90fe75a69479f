package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/cache"
	"github.com/felixgeelhaar/polyglot/internal/client"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/storage/local"
)

// memStore is an in-memory StateStore that snapshots states through a
// JSON round trip, like the real store does.
type memStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string][]byte)}
}

func (m *memStore) Save(userID string, state *domain.OnboardingState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = raw
	return nil
}

func (m *memStore) Get(userID string) (*domain.OnboardingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.states[userID]
	if !ok {
		return nil, domain.ErrOnboardingNotFound
	}
	var state domain.OnboardingState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *memStore) Delete(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

type eventRecorder struct {
	mu          sync.Mutex
	assessments []domain.AssessmentCompletedEvent
	onboardings []domain.OnboardingCompletedEvent
}

func (r *eventRecorder) PublishAssessmentCompleted(_ context.Context, e domain.AssessmentCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments = append(r.assessments, e)
	return nil
}

func (r *eventRecorder) PublishOnboardingCompleted(_ context.Context, e domain.OnboardingCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onboardings = append(r.onboardings, e)
	return nil
}

type testEnv struct {
	svc    *Service
	api    *client.FixtureOnboarding
	store  *memStore
	cache  *cache.SessionCache
	events *eventRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	localStore, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	env := &testEnv{
		api:    newFixtureAPI(t),
		store:  newMemStore(),
		cache:  cache.New(localStore),
		events: &eventRecorder{},
	}
	env.svc = NewService(env.api, env.store, env.cache, env.events, slog.Default())
	return env
}

func responseFor(at domain.AssessmentType) *domain.AssessmentResponse {
	resp := &domain.AssessmentResponse{Type: at}
	answers := &domain.AnswerResponse{Answers: map[string]string{"q1": "a"}}
	switch at {
	case domain.AssessmentPronunciation:
		resp.Pronunciation = &domain.PronunciationResponse{
			Recordings: map[string]domain.Recording{
				"t1": {URL: "https://example.com/r1.webm", DurationMs: 2100},
			},
		}
	case domain.AssessmentVocabulary:
		resp.Vocabulary = answers
	case domain.AssessmentGrammar:
		resp.Grammar = answers
	case domain.AssessmentComprehension:
		resp.Comprehension = answers
	}
	return resp
}

func TestServiceFullFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	state, err := env.svc.State(ctx, user)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state.CurrentStep != domain.StepLanguage {
		t.Fatalf("initial step = %q, want language", state.CurrentStep)
	}

	state, err = env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"})
	if err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}
	if state.CurrentStep != domain.StepAssessmentIntro || state.Progress != 10 {
		t.Errorf("after languages: step = %q progress = %v", state.CurrentStep, state.Progress)
	}

	state, err = env.svc.StartAssessment(ctx, user)
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}
	if state.CurrentStep != domain.StepAssessment || state.AssessmentType != domain.AssessmentPronunciation {
		t.Errorf("after start: step = %q active = %q", state.CurrentStep, state.AssessmentType)
	}
	if !state.PromptLoaded[domain.AssessmentPronunciation] {
		t.Error("first prompt not recorded as loaded")
	}

	for i, at := range domain.AssessmentOrder() {
		state, err = env.svc.SubmitAssessment(ctx, user, responseFor(at))
		if err != nil {
			t.Fatalf("SubmitAssessment(%s) error = %v", at, err)
		}
		wantProgress := 10 + 20*float64(i+1)
		if state.Progress != wantProgress {
			t.Errorf("progress after %s = %v, want %v", at, state.Progress, wantProgress)
		}
	}
	if !state.SubmittedAll() {
		t.Fatal("SubmittedAll() = false after all submissions")
	}

	result, err := env.svc.SubmitFinal(ctx, user)
	if err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}
	if result.Level != "A2" {
		t.Errorf("result level = %q, want A2", result.Level)
	}

	state, _ = env.svc.State(ctx, user)
	if state.CurrentStep != domain.StepComplete || state.Progress != 100 {
		t.Errorf("final: step = %q progress = %v", state.CurrentStep, state.Progress)
	}

	if len(env.events.assessments) != 4 {
		t.Errorf("assessment events = %d, want 4", len(env.events.assessments))
	}
	if len(env.events.onboardings) != 1 {
		t.Errorf("onboarding events = %d, want 1", len(env.events.onboardings))
	}
}

func TestServiceRejectsInvalidLanguages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		pair domain.LanguagePair
	}{
		{"missing target", domain.LanguagePair{Native: "en"}},
		{"same languages", domain.LanguagePair{Native: "de", Target: "de"}},
		{"not a code", domain.LanguagePair{Native: "english", Target: "de"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.SubmitLanguages(ctx, "u", tc.pair); !errors.Is(err, domain.ErrLanguagesRequired) {
				t.Errorf("SubmitLanguages() error = %v, want ErrLanguagesRequired", err)
			}
		})
	}
}

func TestServiceStepOrderEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	// Cannot start the assessment before selecting languages.
	if _, err := env.svc.StartAssessment(ctx, user); !errors.Is(err, domain.ErrInvalidStepTransition) {
		t.Errorf("StartAssessment() error = %v, want ErrInvalidStepTransition", err)
	}

	if _, err := env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"}); err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}

	// Cannot submit languages twice.
	if _, err := env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "fr"}); !errors.Is(err, domain.ErrInvalidStepTransition) {
		t.Errorf("second SubmitLanguages() error = %v, want ErrInvalidStepTransition", err)
	}

	if _, err := env.svc.StartAssessment(ctx, user); err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	// Submissions must target the active type.
	if _, err := env.svc.SubmitAssessment(ctx, user, responseFor(domain.AssessmentGrammar)); !errors.Is(err, domain.ErrWrongAssessmentType) {
		t.Errorf("out-of-order SubmitAssessment() error = %v, want ErrWrongAssessmentType", err)
	}

	// Final submission requires all four types.
	if _, err := env.svc.SubmitFinal(ctx, user); !errors.Is(err, domain.ErrAssessmentIncomplete) {
		t.Errorf("early SubmitFinal() error = %v, want ErrAssessmentIncomplete", err)
	}
}

func TestServiceStartAssessmentIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	if _, err := env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"}); err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}
	first, err := env.svc.StartAssessment(ctx, user)
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}
	again, err := env.svc.StartAssessment(ctx, user)
	if err != nil {
		t.Fatalf("second StartAssessment() error = %v", err)
	}
	if again.AssessmentType != first.AssessmentType || again.CurrentStep != domain.StepAssessment {
		t.Errorf("second start changed state: %+v", again)
	}
}

// failingSubmitAPI delegates to the fixture backend but fails every
// per-type submission.
type failingSubmitAPI struct {
	*client.FixtureOnboarding
	err error
}

func (f *failingSubmitAPI) SubmitAssessment(ctx context.Context, userID string, resp *domain.AssessmentResponse) error {
	return f.err
}

func TestServiceSubmissionFailureRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	boom := errors.New("backend rejected")
	env.svc = NewService(&failingSubmitAPI{env.api, boom}, env.store, env.cache, env.events, slog.Default())

	if _, err := env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"}); err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}
	if _, err := env.svc.StartAssessment(ctx, user); err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	if _, err := env.svc.SubmitAssessment(ctx, user, responseFor(domain.AssessmentPronunciation)); !errors.Is(err, boom) {
		t.Fatalf("SubmitAssessment() error = %v, want backend error", err)
	}

	state, err := env.svc.State(ctx, user)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	status := state.Submissions[domain.AssessmentPronunciation]
	if status.State != domain.SubmissionFailed || status.Error == "" {
		t.Errorf("submission status = %+v, want failed with error text", status)
	}
	if state.AssessmentType != domain.AssessmentPronunciation {
		t.Errorf("active type advanced past a failed submission: %q", state.AssessmentType)
	}
}

func TestServiceRehydratesFromStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	if _, err := env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"}); err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}
	if _, err := env.svc.StartAssessment(ctx, user); err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	// A new service instance over the same storage sees the same state.
	restarted := NewService(env.api, env.store, env.cache, env.events, slog.Default())
	state, err := restarted.State(ctx, user)
	if err != nil {
		t.Fatalf("State() after restart error = %v", err)
	}
	if state.CurrentStep != domain.StepAssessment {
		t.Errorf("rehydrated step = %q, want assessment", state.CurrentStep)
	}
	if state.Languages == nil || state.Languages.Target != "de" {
		t.Errorf("rehydrated languages = %+v", state.Languages)
	}
	if !state.PromptLoaded[domain.AssessmentPronunciation] {
		t.Error("persisted prompt not marked loaded after rehydrate")
	}
}

func TestServiceReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	if _, err := env.svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"}); err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}
	if err := env.svc.Reset(ctx, user); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	state, err := env.svc.State(ctx, user)
	if err != nil {
		t.Fatalf("State() after reset error = %v", err)
	}
	if state.CurrentStep != domain.StepLanguage || state.Languages != nil {
		t.Errorf("state after reset = %+v, want fresh language step", state)
	}

	// Resetting an absent user is fine.
	if err := env.svc.Reset(ctx, "nobody"); err != nil {
		t.Errorf("Reset(nobody) error = %v", err)
	}
}

// gatedPromptAPI fails comprehension fetches until armed, then blocks
// the next comprehension fetch until released. Other types pass through
// to the fixture backend.
type gatedPromptAPI struct {
	*client.FixtureOnboarding

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (a *gatedPromptAPI) arm() {
	a.mu.Lock()
	a.armed = true
	a.mu.Unlock()
}

func (a *gatedPromptAPI) Prompt(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error) {
	if t != domain.AssessmentComprehension {
		return a.FixtureOnboarding.Prompt(ctx, t)
	}
	a.mu.Lock()
	armed := a.armed
	a.mu.Unlock()
	if !armed {
		return nil, errors.New("comprehension backend busy")
	}
	a.entered <- struct{}{}
	<-a.release
	return a.FixtureOnboarding.Prompt(ctx, t)
}

func TestServicePromptDuringResetDropsStaleState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = "user-1"

	api := &gatedPromptAPI{
		FixtureOnboarding: env.api,
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	svc := NewService(api, env.store, env.cache, env.events, slog.Default())

	if _, err := svc.SubmitLanguages(ctx, user, domain.LanguagePair{Native: "en", Target: "de"}); err != nil {
		t.Fatalf("SubmitLanguages() error = %v", err)
	}
	if _, err := svc.StartAssessment(ctx, user); err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	// Wait out the background warm-up so the next comprehension fetch
	// goes to the backend instead of the warmed set.
	deadline := time.Now().Add(5 * time.Second)
	for svc.queue.FetchErr(domain.AssessmentComprehension) == nil {
		if time.Now().After(deadline) {
			t.Fatal("comprehension warm fetch never settled")
		}
		time.Sleep(2 * time.Millisecond)
	}
	api.arm()

	type promptResult struct {
		prompt *domain.Prompt
		err    error
	}
	done := make(chan promptResult, 1)
	go func() {
		p, err := svc.Prompt(ctx, user, domain.AssessmentComprehension)
		done <- promptResult{p, err}
	}()

	// The reset lands while the fetch is in flight.
	<-api.entered
	if err := svc.Reset(ctx, user); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	close(api.release)

	res := <-done
	if res.err != nil {
		t.Fatalf("Prompt() error = %v", res.err)
	}
	if res.prompt == nil {
		t.Fatal("Prompt() returned no prompt")
	}

	// The reset sticks: nothing from the old session is written back.
	if _, err := env.store.Get(user); !errors.Is(err, domain.ErrOnboardingNotFound) {
		t.Errorf("stored state after reset = %v, want ErrOnboardingNotFound", err)
	}
	state, err := svc.State(ctx, user)
	if err != nil {
		t.Fatalf("State() after reset error = %v", err)
	}
	if state.CurrentStep != domain.StepLanguage || state.Languages != nil {
		t.Errorf("state after reset = step %q languages %+v, want fresh language step", state.CurrentStep, state.Languages)
	}
}
