package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/learningpath"
)

// PathHandler handles learning path endpoints
type PathHandler struct {
	paths *learningpath.Service
}

// NewPathHandler creates a new path handler
func NewPathHandler(paths *learningpath.Service) *PathHandler {
	return &PathHandler{paths: paths}
}

// Get handles GET /api/v1/path
func (h *PathHandler) Get(w http.ResponseWriter, r *http.Request) {
	path, err := h.paths.Path(r.Context(), UserID(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, path)
}

type nodesResponse struct {
	NodeIDs []string `json:"node_ids"`
}

// Nodes handles GET /api/v1/path/nodes in dependency-aware display order
func (h *PathHandler) Nodes(w http.ResponseWriter, r *http.Request) {
	ids, err := h.paths.OrderedNodeIDs(r.Context(), UserID(r))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, nodesResponse{NodeIDs: ids})
}

type availabilityResponse struct {
	NodeID    string `json:"node_id"`
	Available bool   `json:"available"`
}

// Availability handles GET /api/v1/path/nodes/{id}/availability
func (h *PathHandler) Availability(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")

	available, err := h.paths.IsAvailable(r.Context(), UserID(r), nodeID)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, availabilityResponse{NodeID: nodeID, Available: available})
}

// CompleteExercise handles POST /api/v1/path/exercises/{id}/complete
func (h *PathHandler) CompleteExercise(w http.ResponseWriter, r *http.Request) {
	exerciseID := r.PathValue("id")

	var metrics domain.CompletionMetrics
	if err := json.NewDecoder(r.Body).Decode(&metrics); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	path, err := h.paths.CompleteExercise(r.Context(), UserID(r), exerciseID, metrics)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, path)
}
