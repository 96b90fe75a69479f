package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/polyglot/internal/client"
	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// RemoteAuthHandler exposes the auth backend through the local API when
// no session database is configured. Tokens are issued by the backend
// and passed through as bearer tokens.
type RemoteAuthHandler struct {
	api client.AuthAPI
}

// NewRemoteAuthHandler creates a new remote auth handler
func NewRemoteAuthHandler(api client.AuthAPI) *RemoteAuthHandler {
	return &RemoteAuthHandler{api: api}
}

// BearerToken extracts the bearer token from a request, empty if absent.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

// Login handles POST /api/v1/auth/login
func (h *RemoteAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	result, err := h.api.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err, "login failed")
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Signup handles POST /api/v1/auth/register
func (h *RemoteAuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Email == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "email and name are required")
		return
	}
	if len(req.Password) < 8 {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "password must be at least 8 characters")
		return
	}

	result, err := h.api.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeAuthError(w, err, "signup failed")
		return
	}
	jsonResponse(w, http.StatusCreated, result)
}

type remoteSocialRequest struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
}

// SocialAuth handles POST /api/v1/auth/social
func (h *RemoteAuthHandler) SocialAuth(w http.ResponseWriter, r *http.Request) {
	var req remoteSocialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Provider == "" || req.AccessToken == "" {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "provider and access_token are required")
		return
	}

	result, err := h.api.SocialAuth(r.Context(), req.Provider, req.AccessToken)
	if err != nil {
		h.writeAuthError(w, err, "social login failed")
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Me handles GET /api/v1/auth/me
func (h *RemoteAuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	user, err := h.api.CurrentUser(r.Context(), token)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token invalid or expired")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Logout handles POST /api/v1/auth/logout
func (h *RemoteAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := BearerToken(r); token != "" {
		_ = h.api.Logout(r.Context(), token)
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *RemoteAuthHandler) writeAuthError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
	case errors.Is(err, domain.ErrConflict):
		jsonError(w, http.StatusConflict, "CONFLICT", "email already registered")
	default:
		jsonError(w, http.StatusBadGateway, "UPSTREAM_ERROR", fallback)
	}
}
