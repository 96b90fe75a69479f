package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/polyglot/internal/client"
)

// ExercisesHandler proxies exercise content from the exercising backend.
type ExercisesHandler struct {
	exercising client.ExercisingAPI
}

// NewExercisesHandler creates a new exercises handler
func NewExercisesHandler(exercising client.ExercisingAPI) *ExercisesHandler {
	return &ExercisesHandler{exercising: exercising}
}

// Exercise handles GET /api/v1/exercises/{id}
func (h *ExercisesHandler) Exercise(w http.ResponseWriter, r *http.Request) {
	content, err := h.exercising.Exercise(r.Context(), r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, content)
}

// Video handles GET /api/v1/videos/{id}
func (h *ExercisesHandler) Video(w http.ResponseWriter, r *http.Request) {
	video, err := h.exercising.Video(r.Context(), r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, video)
}

// SubmitRecording handles POST /api/v1/recordings
func (h *ExercisesHandler) SubmitRecording(w http.ResponseWriter, r *http.Request) {
	var attempt client.RecordingAttempt
	if err := json.NewDecoder(r.Body).Decode(&attempt); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if attempt.TargetID == "" {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "target_id is required")
		return
	}

	result, err := h.exercising.SubmitRecording(r.Context(), UserID(r), attempt)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Report handles GET /api/v1/exercises/{id}/report
func (h *ExercisesHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.exercising.Report(r.Context(), UserID(r), r.PathValue("id"))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}
