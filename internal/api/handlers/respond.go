// Package handlers contains the HTTP handlers backing the REST API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

type contextKey string

// ContextKeyUser carries the authenticated user ID set by the auth middleware.
const ContextKeyUser contextKey = "user"

// UserID returns the authenticated user ID from the request context.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(ContextKeyUser).(string)
	return id
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

// domainError maps a domain error onto the matching HTTP status.
func domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOnboardingNotFound),
		errors.Is(err, domain.ErrPathNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrExerciseNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotFound):
		jsonError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidStepTransition),
		errors.Is(err, domain.ErrConflict):
		jsonError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrWrongAssessmentType),
		errors.Is(err, domain.ErrAssessmentIncomplete),
		errors.Is(err, domain.ErrLanguagesRequired),
		errors.Is(err, domain.ErrInvalidPrompt),
		errors.Is(err, domain.ErrInvalidResponse),
		errors.Is(err, domain.ErrInvalidInput):
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
	default:
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
	}
}
