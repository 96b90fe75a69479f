package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/learningpath"
	"github.com/felixgeelhaar/polyglot/internal/onboarding"
)

// OnboardingHandler handles the onboarding flow endpoints
type OnboardingHandler struct {
	onboarding *onboarding.Service
	paths      *learningpath.Service
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(svc *onboarding.Service, paths *learningpath.Service) *OnboardingHandler {
	return &OnboardingHandler{onboarding: svc, paths: paths}
}

// stateResponse is the wire view of the onboarding state. Prompt payloads
// are fetched separately so the state stays small.
type stateResponse struct {
	CurrentStep    domain.OnboardingStep `json:"current_step"`
	AssessmentType domain.AssessmentType `json:"assessment_type,omitempty"`
	Progress       float64               `json:"progress"`

	PromptLoaded map[domain.AssessmentType]bool                    `json:"prompt_loaded"`
	Submissions  map[domain.AssessmentType]domain.SubmissionStatus `json:"submissions"`

	Languages *domain.LanguagePair     `json:"languages,omitempty"`
	Result    *domain.AssessmentResult `json:"result,omitempty"`

	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toStateResponse(s *domain.OnboardingState) stateResponse {
	return stateResponse{
		CurrentStep:    s.CurrentStep,
		AssessmentType: s.AssessmentType,
		Progress:       s.Progress,
		PromptLoaded:   s.PromptLoaded,
		Submissions:    s.Submissions,
		Languages:      s.Languages,
		Result:         s.Result,
		Error:          s.Error,
		UpdatedAt:      s.UpdatedAt,
	}
}

// State handles GET /api/v1/onboarding
func (h *OnboardingHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.onboarding.State(r.Context(), UserID(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, toStateResponse(state))
}

// SubmitLanguages handles POST /api/v1/onboarding/languages
func (h *OnboardingHandler) SubmitLanguages(w http.ResponseWriter, r *http.Request) {
	var pair domain.LanguagePair
	if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	state, err := h.onboarding.SubmitLanguages(r.Context(), UserID(r), pair)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, toStateResponse(state))
}

// StartAssessment handles POST /api/v1/onboarding/assessment/start
func (h *OnboardingHandler) StartAssessment(w http.ResponseWriter, r *http.Request) {
	state, err := h.onboarding.StartAssessment(r.Context(), UserID(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, toStateResponse(state))
}

// Prompt handles GET /api/v1/onboarding/assessment/prompts/{type}
func (h *OnboardingHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	t := domain.AssessmentType(r.PathValue("type"))
	if !t.Valid() {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown assessment type")
		return
	}

	prompt, err := h.onboarding.Prompt(r.Context(), UserID(r), t)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, prompt)
}

// SubmitAssessment handles POST /api/v1/onboarding/assessment/submit
func (h *OnboardingHandler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var resp domain.AssessmentResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	state, err := h.onboarding.SubmitAssessment(r.Context(), UserID(r), &resp)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, toStateResponse(state))
}

type finalResponse struct {
	Result *domain.AssessmentResult `json:"result"`
	Path   *domain.LearningPath     `json:"path,omitempty"`
}

// SubmitFinal handles POST /api/v1/onboarding/assessment/final. On
// success the learning path is built from the assessment result in the
// same request so the client lands on a ready path.
func (h *OnboardingHandler) SubmitFinal(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)

	result, err := h.onboarding.SubmitFinal(r.Context(), userID)
	if err != nil {
		domainError(w, err)
		return
	}

	resp := finalResponse{Result: result}
	if h.paths != nil {
		// A retried final submission must not rebuild an existing path
		// and wipe its progress; the path lives until an explicit reset.
		path, err := h.paths.Path(r.Context(), userID)
		if errors.Is(err, domain.ErrPathNotFound) {
			path, err = h.paths.InitializePath(r.Context(), userID, result)
		}
		if err != nil {
			domainError(w, err)
			return
		}
		resp.Path = path
	}

	jsonResponse(w, http.StatusOK, resp)
}

// Reset handles POST /api/v1/onboarding/reset
func (h *OnboardingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)

	if err := h.onboarding.Reset(r.Context(), userID); err != nil {
		domainError(w, err)
		return
	}
	if h.paths != nil {
		if err := h.paths.Reset(r.Context(), userID); err != nil {
			domainError(w, err)
			return
		}
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "reset"})
}
