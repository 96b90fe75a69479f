package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/polyglot/internal/cache"
	"github.com/felixgeelhaar/polyglot/internal/client"
	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/learningpath"
	"github.com/felixgeelhaar/polyglot/internal/onboarding"
	"github.com/felixgeelhaar/polyglot/internal/storage/local"
	"github.com/felixgeelhaar/polyglot/internal/storage/sqlite"
)

// newTestRouter builds a router over fixture-backed services with no
// external infrastructure.
func newTestRouter(t *testing.T) *Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	sessionCache := cache.New(store)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	fixtures, err := client.NewFixtureOnboarding()
	if err != nil {
		t.Fatalf("NewFixtureOnboarding() error = %v", err)
	}

	app := &App{
		Config:     &config.Config{Debug: true, SessionMaxAge: 3600},
		Logger:     logger,
		DB:         db,
		Local:      store,
		Cache:      sessionCache,
		Onboarding: onboarding.NewService(fixtures, sqlite.NewOnboardingStore(db), sessionCache, nil, logger),
		Path:       learningpath.NewService(sqlite.NewPathStore(db), sessionCache, nil, logger),
		Exercising: client.NewFixtureExercising(),
		AuthAPI:    client.NewFixtureAuth(),
	}

	return NewRouter(app)
}

func do(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
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

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t)

	if rec := do(t, router, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("GET /health status = %d; want %d", rec.Code, http.StatusOK)
	}
	if rec := do(t, router, http.MethodGet, "/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("GET /ready status = %d; want %d", rec.Code, http.StatusOK)
	}
}

func TestRouterRemoteAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "demo@polyglot.dev", "password": "polyglot"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST login status = %d, body %s", rec.Code, rec.Body)
	}
	result := decode[client.AuthResult](t, rec)
	if result.Token == "" {
		t.Fatal("login returned no token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	mrec := httptest.NewRecorder()
	router.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK {
		t.Fatalf("GET me status = %d, body %s", mrec.Code, mrec.Body)
	}
	me := decode[client.RemoteUser](t, mrec)
	if me.Email != "demo@polyglot.dev" {
		t.Errorf("me email = %q, want demo@polyglot.dev", me.Email)
	}

	// A bearer token on a learning route resolves the backend user.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/onboarding", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	orec := httptest.NewRecorder()
	router.ServeHTTP(orec, req)
	if orec.Code != http.StatusOK {
		t.Fatalf("GET onboarding with token status = %d, body %s", orec.Code, orec.Body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/onboarding", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	brec := httptest.NewRecorder()
	router.ServeHTTP(brec, req)
	if brec.Code != http.StatusUnauthorized {
		t.Errorf("GET onboarding with bad token status = %d; want %d", brec.Code, http.StatusUnauthorized)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "demo@polyglot.dev", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST login bad password status = %d; want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRouterOnboardingFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/onboarding", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/onboarding status = %d, body %s", rec.Code, rec.Body)
	}
	state := decode[struct {
		CurrentStep string  `json:"current_step"`
		Progress    float64 `json:"progress"`
	}](t, rec)
	if state.CurrentStep != "language" {
		t.Fatalf("initial step = %q, want language", state.CurrentStep)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/onboarding/languages",
		domain.LanguagePair{Native: "en", Target: "de"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST languages status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST assessment/start status = %d, body %s", rec.Code, rec.Body)
	}
	started := decode[struct {
		CurrentStep    string `json:"current_step"`
		AssessmentType string `json:"assessment_type"`
	}](t, rec)
	if started.CurrentStep != "assessment" {
		t.Fatalf("step after start = %q, want assessment", started.CurrentStep)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/onboarding/assessment/prompts/vocabulary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET prompt status = %d, body %s", rec.Code, rec.Body)
	}
	prompt := decode[domain.Prompt](t, rec)
	if prompt.Type != domain.AssessmentVocabulary {
		t.Errorf("prompt type = %q, want vocabulary", prompt.Type)
	}

	for _, at := range domain.AssessmentOrder() {
		rec = do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/submit", responseFor(at))
		if rec.Code != http.StatusOK {
			t.Fatalf("submit %s status = %d, body %s", at, rec.Code, rec.Body)
		}
	}

	rec = do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/final", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST final status = %d, body %s", rec.Code, rec.Body)
	}
	final := decode[struct {
		Result *domain.AssessmentResult `json:"result"`
		Path   *domain.LearningPath     `json:"path"`
	}](t, rec)
	if final.Result == nil || final.Result.Level == "" {
		t.Fatal("final result missing level")
	}
	if final.Path == nil || len(final.Path.Progression.AvailableNodeIDs) == 0 {
		t.Fatal("final response missing initialized path")
	}

	rec = do(t, router, http.MethodGet, "/api/v1/path", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET path status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/path/nodes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET path/nodes status = %d, body %s", rec.Code, rec.Body)
	}
	nodes := decode[struct {
		NodeIDs []string `json:"node_ids"`
	}](t, rec)
	if len(nodes.NodeIDs) == 0 {
		t.Fatal("ordered node list is empty")
	}

	rec = do(t, router, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET stats status = %d, body %s", rec.Code, rec.Body)
	}
	stats := decode[struct {
		Cache struct {
			Hits   int64 `json:"hits"`
			Misses int64 `json:"misses"`
		} `json:"cache"`
	}](t, rec)
	if stats.Cache.Hits+stats.Cache.Misses == 0 {
		t.Error("cache counters never moved during the flow")
	}
}

func TestRouterFinalRetryKeepsPathProgress(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/onboarding/languages",
		domain.LanguagePair{Native: "en", Target: "de"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST languages status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/start", nil); rec.Code != http.StatusOK {
		t.Fatalf("POST assessment/start status = %d, body %s", rec.Code, rec.Body)
	}
	for _, at := range domain.AssessmentOrder() {
		if rec := do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/submit", responseFor(at)); rec.Code != http.StatusOK {
			t.Fatalf("submit %s status = %d, body %s", at, rec.Code, rec.Body)
		}
	}
	if rec := do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/final", nil); rec.Code != http.StatusOK {
		t.Fatalf("POST final status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/path/exercises/pronunciation_critical_1/complete",
		domain.CompletionMetrics{Accuracy: 0.9, AttemptNum: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete exercise status = %d, body %s", rec.Code, rec.Body)
	}

	// A client retry of the final submission must not rebuild the path.
	rec = do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/final", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retried final status = %d, body %s", rec.Code, rec.Body)
	}
	retried := decode[struct {
		Path *domain.LearningPath `json:"path"`
	}](t, rec)
	if retried.Path == nil {
		t.Fatal("retried final returned no path")
	}
	if got := retried.Path.Progress.Exercises.Completed; got != 1 {
		t.Fatalf("completed after retried final = %d, want 1", got)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/path", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET path status = %d, body %s", rec.Code, rec.Body)
	}
	path := decode[domain.LearningPath](t, rec)
	if got := path.Progress.Exercises.Completed; got != 1 {
		t.Fatalf("completed after retried final = %d, want 1", got)
	}
}

func TestRouterSubmitRejectsWrongStep(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/onboarding/assessment/submit",
		responseFor(domain.AssessmentVocabulary))
	if rec.Code != http.StatusConflict {
		t.Errorf("submit before assessment status = %d; want %d", rec.Code, http.StatusConflict)
	}
}

func TestRouterPathRequiresOnboarding(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/path", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET path before onboarding status = %d; want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRouterExerciseContent(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/exercises/vocabulary_critical_1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET exercise status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/recordings", client.RecordingAttempt{
		TargetID:   "t1",
		URL:        "https://example.com/r1.webm",
		DurationMs: 2100,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST recording status = %d, body %s", rec.Code, rec.Body)
	}
	result := decode[client.RecordingResult](t, rec)
	if result.Accuracy <= 0 {
		t.Errorf("recording accuracy = %v, want > 0", result.Accuracy)
	}
}
