package client

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

//go:embed fixtures/*.json
var fixtureFS embed.FS

func loadFixture(name string, out any) error {
	raw, err := fixtureFS.ReadFile("fixtures/" + name)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse fixture %s: %w", name, err)
	}
	return nil
}

// FixtureOnboarding serves canned assessment prompts and results from
// embedded JSON. It stands in for the assessment backend in local runs
// and in tests. Latency and per-type failures can be injected.
type FixtureOnboarding struct {
	// Latency is added to every call before it returns.
	Latency time.Duration

	mu          sync.Mutex
	failures    map[domain.AssessmentType]error
	promptCalls map[domain.AssessmentType]int
	prompts     map[domain.AssessmentType]*domain.Prompt
	result      *domain.AssessmentResult
}

// NewFixtureOnboarding loads the embedded prompt and result fixtures.
func NewFixtureOnboarding() (*FixtureOnboarding, error) {
	f := &FixtureOnboarding{
		failures:    make(map[domain.AssessmentType]error),
		promptCalls: make(map[domain.AssessmentType]int),
		prompts:     make(map[domain.AssessmentType]*domain.Prompt),
	}

	for _, t := range domain.AssessmentOrder() {
		var prompt domain.Prompt
		if err := loadFixture(string(t)+".json", &prompt); err != nil {
			return nil, err
		}
		if err := prompt.Validate(); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", t, err)
		}
		f.prompts[t] = &prompt
	}

	var result domain.AssessmentResult
	if err := loadFixture("result.json", &result); err != nil {
		return nil, err
	}
	f.result = &result

	return f, nil
}

// FailWith makes Prompt return err for type t until cleared with a nil err.
func (f *FixtureOnboarding) FailWith(t domain.AssessmentType, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, t)
		return
	}
	f.failures[t] = err
}

// PromptCalls reports how many times Prompt has been invoked for t.
func (f *FixtureOnboarding) PromptCalls(t domain.AssessmentType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.promptCalls[t]
}

func (f *FixtureOnboarding) sleep(ctx context.Context) error {
	if f.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FixtureOnboarding) Prompt(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error) {
	f.mu.Lock()
	f.promptCalls[t]++
	failure := f.failures[t]
	prompt := f.prompts[t]
	f.mu.Unlock()

	if err := f.sleep(ctx); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if prompt == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrWrongAssessmentType, t)
	}
	return prompt, nil
}

func (f *FixtureOnboarding) SubmitLanguages(ctx context.Context, userID string, pair domain.LanguagePair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	return f.sleep(ctx)
}

func (f *FixtureOnboarding) SubmitAssessment(ctx context.Context, userID string, resp *domain.AssessmentResponse) error {
	if err := resp.Validate(); err != nil {
		return err
	}
	return f.sleep(ctx)
}

func (f *FixtureOnboarding) SubmitFinal(ctx context.Context, userID string, responses map[domain.AssessmentType]*domain.AssessmentResponse) (*domain.AssessmentResult, error) {
	for _, r := range responses {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	if err := f.sleep(ctx); err != nil {
		return nil, err
	}
	return f.result, nil
}

// FixtureAuth is an in-memory stand-in for the auth backend. Any signup
// succeeds; logins succeed for previously signed-up users and for the
// built-in demo account.
type FixtureAuth struct {
	mu     sync.Mutex
	users  map[string]fixtureAccount // by email
	tokens map[string]string         // token -> email
}

type fixtureAccount struct {
	id       string
	name     string
	password string
}

// NewFixtureAuth creates the fixture auth backend with the demo account
// demo@polyglot.dev / polyglot.
func NewFixtureAuth() *FixtureAuth {
	return &FixtureAuth{
		users: map[string]fixtureAccount{
			"demo@polyglot.dev": {id: uuid.NewString(), name: "Demo User", password: "polyglot"},
		},
		tokens: make(map[string]string),
	}
}

func (a *FixtureAuth) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	account, ok := a.users[email]
	if !ok || account.password != password {
		return nil, domain.ErrUnauthorized
	}

	token := uuid.NewString()
	a.tokens[token] = email
	return &AuthResult{
		User:  RemoteUser{ID: account.id, Email: email, Name: account.name},
		Token: token,
	}, nil
}

func (a *FixtureAuth) Signup(ctx context.Context, email, name, password string) (*AuthResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[email]; exists {
		return nil, domain.ErrConflict
	}

	account := fixtureAccount{id: uuid.NewString(), name: name, password: password}
	a.users[email] = account

	token := uuid.NewString()
	a.tokens[token] = email
	return &AuthResult{
		User:  RemoteUser{ID: account.id, Email: email, Name: name},
		Token: token,
	}, nil
}

func (a *FixtureAuth) SocialAuth(ctx context.Context, provider, accessToken string) (*AuthResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Derive a stable pseudo-account from the provider pair.
	email := provider + "+" + accessToken + "@social.polyglot.dev"
	account, ok := a.users[email]
	if !ok {
		account = fixtureAccount{id: uuid.NewString(), name: provider + " user"}
		a.users[email] = account
	}

	token := uuid.NewString()
	a.tokens[token] = email
	return &AuthResult{
		User:  RemoteUser{ID: account.id, Email: email, Name: account.name},
		Token: token,
	}, nil
}

func (a *FixtureAuth) CurrentUser(ctx context.Context, token string) (*RemoteUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	email, ok := a.tokens[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	account := a.users[email]
	return &RemoteUser{ID: account.id, Email: email, Name: account.name}, nil
}

func (a *FixtureAuth) Logout(ctx context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tokens, token)
	return nil
}

// FixtureExercising serves deterministic exercise content derived from
// the requested IDs, so path exercises built from any assessment result
// always resolve to something playable.
type FixtureExercising struct {
	mu      sync.Mutex
	reports map[string]*ExerciseReport // userID/exerciseID
}

func NewFixtureExercising() *FixtureExercising {
	return &FixtureExercising{reports: make(map[string]*ExerciseReport)}
}

func (e *FixtureExercising) Exercise(ctx context.Context, id string) (*ExerciseContent, error) {
	skill := skillFromExerciseID(id)
	if skill == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrExerciseNotFound, id)
	}

	content := &ExerciseContent{
		ID:           id,
		Skill:        skill,
		Title:        "Practice: " + strings.ReplaceAll(id, "_", " "),
		Instructions: "Work through each item and submit your answers.",
	}
	switch skill {
	case domain.AssessmentPronunciation:
		content.Targets = []domain.PronunciationTarget{
			{ID: id + "_t1", Text: "Das Wetter ist heute schön."},
			{ID: id + "_t2", Text: "Können Sie das bitte wiederholen?"},
		}
	case domain.AssessmentComprehension:
		content.VideoID = id + "_video"
	}
	return content, nil
}

func (e *FixtureExercising) Video(ctx context.Context, id string) (*VideoContent, error) {
	return &VideoContent{
		ID:         id,
		URL:        "https://fixtures.polyglot.dev/video/" + id + ".mp4",
		Title:      strings.ReplaceAll(id, "_", " "),
		DurationMs: 90_000,
	}, nil
}

func (e *FixtureExercising) SubmitRecording(ctx context.Context, userID string, attempt RecordingAttempt) (*RecordingResult, error) {
	if attempt.URL == "" || attempt.TargetID == "" {
		return nil, domain.ErrInvalidInput
	}
	// Longer attempts score better, capped below perfect.
	accuracy := 0.5 + float64(attempt.DurationMs%5000)/10000.0
	if accuracy > 0.95 {
		accuracy = 0.95
	}
	return &RecordingResult{
		Accuracy: accuracy,
		Passed:   accuracy >= 0.6,
		Feedback: "Keep practicing the stressed syllables.",
	}, nil
}

func (e *FixtureExercising) Report(ctx context.Context, userID, exerciseID string) (*ExerciseReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := userID + "/" + exerciseID
	report, ok := e.reports[key]
	if !ok {
		report = &ExerciseReport{ExerciseID: exerciseID}
		e.reports[key] = report
	}
	report.Attempts++
	report.LastAttempt = time.Now()
	return report, nil
}

// skillFromExerciseID maps the ID prefix convention used by the path
// builder ("pronunciation_critical_1") back to a skill.
func skillFromExerciseID(id string) domain.AssessmentType {
	for _, t := range domain.AssessmentOrder() {
		if strings.HasPrefix(id, string(t)+"_") || id == string(t) {
			return t
		}
	}
	return ""
}
