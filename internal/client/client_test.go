package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

func validVocabPrompt() *domain.Prompt {
	return &domain.Prompt{
		Type: domain.AssessmentVocabulary,
		Vocabulary: &domain.VocabularyPrompt{
			Items: []domain.VocabularyItem{
				{ID: "v1", ImageURL: "https://example.com/a.jpg", Choices: []string{"a", "b"}},
			},
		},
	}
}

func validVocabResponse() *domain.AssessmentResponse {
	return &domain.AssessmentResponse{
		Type:       domain.AssessmentVocabulary,
		Vocabulary: &domain.AnswerResponse{Answers: map[string]string{"v1": "a"}},
	}
}

func TestRESTOnboardingPrompt(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(validVocabPrompt())
	}))
	defer srv.Close()

	api := NewRESTOnboarding(srv.URL, "secret")
	prompt, err := api.Prompt(context.Background(), domain.AssessmentVocabulary)
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if prompt.Type != domain.AssessmentVocabulary || prompt.Vocabulary == nil {
		t.Errorf("Prompt() = %+v, want vocabulary payload", prompt)
	}
	if gotPath != "/v1/assessments/prompts/vocabulary" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestRESTOnboardingPromptRejectsInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Tag says grammar but the payload is vocabulary.
		p := validVocabPrompt()
		p.Type = domain.AssessmentGrammar
		json.NewEncoder(w).Encode(p)
	}))
	defer srv.Close()

	api := NewRESTOnboarding(srv.URL, "")
	if _, err := api.Prompt(context.Background(), domain.AssessmentGrammar); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Errorf("Prompt() error = %v, want ErrInvalidPrompt", err)
	}
}

func TestRESTOnboardingSubmitFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/assessments/final" {
			t.Errorf("request path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(domain.AssessmentResult{
			Scores: map[domain.AssessmentType]float64{domain.AssessmentVocabulary: 0.8},
			Level:  "B1",
		})
	}))
	defer srv.Close()

	api := NewRESTOnboarding(srv.URL, "")
	result, err := api.SubmitFinal(context.Background(), "user-1", map[domain.AssessmentType]*domain.AssessmentResponse{
		domain.AssessmentVocabulary: validVocabResponse(),
	})
	if err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}
	if result.Level != "B1" || result.Score(domain.AssessmentVocabulary) != 0.8 {
		t.Errorf("SubmitFinal() = %+v", result)
	}
}

func TestRESTOnboardingErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	api := NewRESTOnboarding(srv.URL, "")
	_, err := api.Prompt(context.Background(), domain.AssessmentGrammar)
	if err == nil {
		t.Fatal("Prompt() expected error for 503")
	}
	if !isRetryableHTTPError(err) {
		t.Errorf("error %v should be retryable", err)
	}
}

func TestRESTAuthLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Email != "a@b.c" {
			t.Errorf("email = %q", req.Email)
		}
		json.NewEncoder(w).Encode(AuthResult{
			User:  RemoteUser{ID: "u1", Email: req.Email, Name: "A"},
			Token: "tok",
		})
	}))
	defer srv.Close()

	api := NewRESTAuth(srv.URL)
	result, err := api.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token != "tok" || result.User.ID != "u1" {
		t.Errorf("Login() = %+v", result)
	}
}

func TestFixtureOnboardingPrompts(t *testing.T) {
	f, err := NewFixtureOnboarding()
	if err != nil {
		t.Fatalf("NewFixtureOnboarding() error = %v", err)
	}

	for _, at := range domain.AssessmentOrder() {
		prompt, err := f.Prompt(context.Background(), at)
		if err != nil {
			t.Fatalf("Prompt(%s) error = %v", at, err)
		}
		if prompt.Type != at {
			t.Errorf("Prompt(%s).Type = %s", at, prompt.Type)
		}
		if err := prompt.Validate(); err != nil {
			t.Errorf("Prompt(%s) invalid: %v", at, err)
		}
	}
	if calls := f.PromptCalls(domain.AssessmentGrammar); calls != 1 {
		t.Errorf("PromptCalls(grammar) = %d, want 1", calls)
	}
}

func TestFixtureOnboardingFailureInjection(t *testing.T) {
	f, err := NewFixtureOnboarding()
	if err != nil {
		t.Fatalf("NewFixtureOnboarding() error = %v", err)
	}

	boom := errors.New("injected")
	f.FailWith(domain.AssessmentVocabulary, boom)
	if _, err := f.Prompt(context.Background(), domain.AssessmentVocabulary); !errors.Is(err, boom) {
		t.Errorf("Prompt() error = %v, want injected failure", err)
	}

	f.FailWith(domain.AssessmentVocabulary, nil)
	if _, err := f.Prompt(context.Background(), domain.AssessmentVocabulary); err != nil {
		t.Errorf("Prompt() after clearing failure error = %v", err)
	}
}

func TestFixtureOnboardingFinalResult(t *testing.T) {
	f, err := NewFixtureOnboarding()
	if err != nil {
		t.Fatalf("NewFixtureOnboarding() error = %v", err)
	}

	result, err := f.SubmitFinal(context.Background(), "u1", map[domain.AssessmentType]*domain.AssessmentResponse{
		domain.AssessmentVocabulary: validVocabResponse(),
	})
	if err != nil {
		t.Fatalf("SubmitFinal() error = %v", err)
	}
	if result.Level == "" || len(result.Scores) != 4 {
		t.Errorf("SubmitFinal() = %+v, want four scores and a level", result)
	}
}

func TestFixtureAuthFlow(t *testing.T) {
	a := NewFixtureAuth()
	ctx := context.Background()

	if _, err := a.Login(ctx, "demo@polyglot.dev", "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Login with wrong password error = %v, want ErrUnauthorized", err)
	}

	result, err := a.Signup(ctx, "new@x.y", "New", "pw")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	user, err := a.CurrentUser(ctx, result.Token)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Email != "new@x.y" {
		t.Errorf("CurrentUser().Email = %q", user.Email)
	}

	if err := a.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := a.CurrentUser(ctx, result.Token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("CurrentUser after logout error = %v, want ErrUnauthorized", err)
	}
}

func TestFixtureExercisingContent(t *testing.T) {
	e := NewFixtureExercising()
	ctx := context.Background()

	content, err := e.Exercise(ctx, "pronunciation_critical_1")
	if err != nil {
		t.Fatalf("Exercise() error = %v", err)
	}
	if content.Skill != domain.AssessmentPronunciation || len(content.Targets) == 0 {
		t.Errorf("Exercise() = %+v, want pronunciation targets", content)
	}

	if _, err := e.Exercise(ctx, "unknown_thing"); !errors.Is(err, domain.ErrExerciseNotFound) {
		t.Errorf("Exercise(unknown) error = %v, want ErrExerciseNotFound", err)
	}
}

func TestResilientPromptRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(validVocabPrompt())
	}))
	defer srv.Close()

	api := NewResilientOnboarding(NewRESTOnboarding(srv.URL, ""), DefaultResilientConfig())
	defer api.Close()

	prompt, err := api.Prompt(context.Background(), domain.AssessmentVocabulary)
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if prompt.Vocabulary == nil {
		t.Errorf("Prompt() = %+v, want vocabulary payload", prompt)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("backend calls = %d, want 3 (two failures then success)", got)
	}
}

func TestResilientSubmitDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	api := NewResilientOnboarding(NewRESTOnboarding(srv.URL, ""), DefaultResilientConfig())
	defer api.Close()

	err := api.SubmitAssessment(context.Background(), "u1", validVocabResponse())
	if err == nil {
		t.Fatal("SubmitAssessment() expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, want exactly 1 (submissions are not retried)", got)
	}
}
