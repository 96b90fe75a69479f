package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/auth"
	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *auth.Service
	cookieName   string
	cookieMaxAge time.Duration
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, sessionMaxAge time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieName:   "session",
		cookieMaxAge: sessionMaxAge,
		secureCookie: secureCookie,
	}
}

// CookieName returns the session cookie name.
func (h *AuthHandler) CookieName() string {
	return h.cookieName
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.authService.Register(r.Context(), auth.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			jsonError(w, http.StatusConflict, "CONFLICT", "email already registered")
			return
		}
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "registration failed")
		return
	}

	jsonResponse(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	result, err := h.authService.Login(r.Context(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password")
			return
		}
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed")
		return
	}

	h.setSessionCookie(w, result.Token)
	jsonResponse(w, http.StatusOK, loginResponse{User: toUserResponse(result.User), Token: result.Token})
}

type socialAuthRequest struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// SocialAuth handles POST /api/v1/auth/social. The identity provider
// token exchange happens upstream; this endpoint receives the verified
// identity and opens a session.
func (h *AuthHandler) SocialAuth(w http.ResponseWriter, r *http.Request) {
	var req socialAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if req.Provider == "" || req.Subject == "" {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "provider and subject are required")
		return
	}

	result, err := h.authService.SocialAuth(r.Context(), auth.SocialAuthRequest{
		Provider: req.Provider,
		Subject:  req.Subject,
		Email:    req.Email,
		Name:     req.Name,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "social login failed")
		return
	}

	h.setSessionCookie(w, result.Token)
	jsonResponse(w, http.StatusOK, loginResponse{User: toUserResponse(result.User), Token: result.Token})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		_ = h.authService.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	jsonResponse(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookieName)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	user, _, err := h.authService.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session invalid or expired")
		return
	}

	jsonResponse(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
