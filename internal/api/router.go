package api

import (
	"context"
	"net/http"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/api/handlers"
	"github.com/felixgeelhaar/polyglot/internal/api/middleware"
)

// localUserID identifies the single local user when session auth is not
// configured and the client sends no X-User-ID header.
const localUserID = "local"

// Router configures all HTTP routes
type Router struct {
	app     *App
	mux     *http.ServeMux
	handler http.Handler
}

// NewRouter creates a new router with all routes configured
func NewRouter(app *App) *Router {
	r := &Router{
		app: app,
		mux: http.NewServeMux(),
	}

	r.registerRoutes()
	r.handler = buildMiddlewareChain(r.mux, !app.Config.Debug)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerRoutes() {
	sessionMaxAge := time.Duration(r.app.Config.SessionMaxAge) * time.Second
	authHandler := handlers.NewAuthHandler(r.app.Auth, sessionMaxAge, !r.app.Config.Debug)
	onboardingHandler := handlers.NewOnboardingHandler(r.app.Onboarding, r.app.Path)
	pathHandler := handlers.NewPathHandler(r.app.Path)
	exercisesHandler := handlers.NewExercisesHandler(r.app.Exercising)

	// Health
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)
	r.mux.HandleFunc("GET /api/v1/stats", r.handleStats)

	// Auth: session-backed when Postgres is configured, otherwise the
	// auth backend client handles tokens directly.
	if r.app.Auth != nil {
		r.mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
		r.mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
		r.mux.HandleFunc("POST /api/v1/auth/social", authHandler.SocialAuth)
		r.mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
		r.mux.HandleFunc("GET /api/v1/auth/me", authHandler.Me)
	} else if r.app.AuthAPI != nil {
		remoteAuth := handlers.NewRemoteAuthHandler(r.app.AuthAPI)
		r.mux.HandleFunc("POST /api/v1/auth/register", remoteAuth.Signup)
		r.mux.HandleFunc("POST /api/v1/auth/login", remoteAuth.Login)
		r.mux.HandleFunc("POST /api/v1/auth/social", remoteAuth.SocialAuth)
		r.mux.HandleFunc("POST /api/v1/auth/logout", remoteAuth.Logout)
		r.mux.HandleFunc("GET /api/v1/auth/me", remoteAuth.Me)
	}

	// Onboarding
	r.mux.Handle("GET /api/v1/onboarding", r.requireAuth(authHandler, onboardingHandler.State))
	r.mux.Handle("POST /api/v1/onboarding/languages", r.requireAuth(authHandler, onboardingHandler.SubmitLanguages))
	r.mux.Handle("POST /api/v1/onboarding/assessment/start", r.requireAuth(authHandler, onboardingHandler.StartAssessment))
	r.mux.Handle("GET /api/v1/onboarding/assessment/prompts/{type}", r.requireAuth(authHandler, onboardingHandler.Prompt))
	r.mux.Handle("POST /api/v1/onboarding/assessment/submit", r.requireAuth(authHandler, onboardingHandler.SubmitAssessment))
	r.mux.Handle("POST /api/v1/onboarding/assessment/final", r.requireAuth(authHandler, onboardingHandler.SubmitFinal))
	r.mux.Handle("POST /api/v1/onboarding/reset", r.requireAuth(authHandler, onboardingHandler.Reset))

	// Learning path
	r.mux.Handle("GET /api/v1/path", r.requireAuth(authHandler, pathHandler.Get))
	r.mux.Handle("GET /api/v1/path/nodes", r.requireAuth(authHandler, pathHandler.Nodes))
	r.mux.Handle("GET /api/v1/path/nodes/{id}/availability", r.requireAuth(authHandler, pathHandler.Availability))
	r.mux.Handle("POST /api/v1/path/exercises/{id}/complete", r.requireAuth(authHandler, pathHandler.CompleteExercise))

	// Exercise content
	r.mux.Handle("GET /api/v1/exercises/{id}", r.requireAuth(authHandler, exercisesHandler.Exercise))
	r.mux.Handle("GET /api/v1/exercises/{id}/report", r.requireAuth(authHandler, exercisesHandler.Report))
	r.mux.Handle("GET /api/v1/videos/{id}", r.requireAuth(authHandler, exercisesHandler.Video))
	r.mux.Handle("POST /api/v1/recordings", r.requireAuth(authHandler, exercisesHandler.SubmitRecording))
}

func buildMiddlewareChain(handler http.Handler, rateLimited bool) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)
	if rateLimited {
		handler = middleware.RateLimit(middleware.DefaultRateLimitConfig())(handler)
	}
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(handler)
	return handler
}

// requireAuth resolves the acting user for a request. With session auth
// configured the session cookie is validated. Without it a bearer token
// is checked against the auth backend when present, and the X-User-ID
// header selects the user otherwise, defaulting to the single local user.
func (r *Router) requireAuth(authHandler *handlers.AuthHandler, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var userID string

		switch {
		case r.app.Auth != nil:
			cookie, err := req.Cookie(authHandler.CookieName())
			if err != nil {
				Unauthorized(w, req, "not authenticated")
				return
			}
			user, _, err := r.app.Auth.ValidateSession(req.Context(), cookie.Value)
			if err != nil {
				Unauthorized(w, req, "session invalid or expired")
				return
			}
			userID = user.ID.String()
		case r.app.AuthAPI != nil && handlers.BearerToken(req) != "":
			user, err := r.app.AuthAPI.CurrentUser(req.Context(), handlers.BearerToken(req))
			if err != nil {
				Unauthorized(w, req, "token invalid or expired")
				return
			}
			userID = user.ID
		default:
			userID = req.Header.Get("X-User-ID")
			if userID == "" {
				userID = localUserID
			}
		}

		ctx := context.WithValue(req.Context(), handlers.ContextKeyUser, userID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.app.DB.Ping(); err != nil {
		WriteError(w, req, http.StatusServiceUnavailable,
			NewAPIError("NOT_READY", "database unavailable").WithCause(err))
		return
	}

	status := map[string]any{"status": "ready"}
	if r.app.Queue != nil {
		status["queue_connected"] = r.app.Queue.IsConnected()
	}
	WriteJSON(w, http.StatusOK, status)
}

func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) {
	stats := map[string]any{"cache": r.app.Cache.Stats()}
	if r.app.Queue != nil {
		stats["queue_connected"] = r.app.Queue.IsConnected()
	}
	WriteJSON(w, http.StatusOK, stats)
}
