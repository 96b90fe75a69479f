// Package client holds the HTTP clients for the backend services the
// engine talks to: auth, onboarding assessment, and exercising content.
// Each API has a REST implementation and a fixture-backed one for local
// runs and tests.
package client

import (
	"context"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// RemoteUser is the user record as the auth backend reports it.
type RemoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResult is a successful login or signup.
type AuthResult struct {
	User  RemoteUser `json:"user"`
	Token string     `json:"token"`
}

// AuthAPI talks to the auth backend.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Signup(ctx context.Context, email, name, password string) (*AuthResult, error)
	SocialAuth(ctx context.Context, provider, accessToken string) (*AuthResult, error)
	CurrentUser(ctx context.Context, token string) (*RemoteUser, error)
	Logout(ctx context.Context, token string) error
}

// OnboardingAPI talks to the assessment backend. Prompt fetches are
// read-only and safe to retry; the submission calls are not.
type OnboardingAPI interface {
	Prompt(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error)
	SubmitLanguages(ctx context.Context, userID string, pair domain.LanguagePair) error
	SubmitAssessment(ctx context.Context, userID string, resp *domain.AssessmentResponse) error
	SubmitFinal(ctx context.Context, userID string, responses map[domain.AssessmentType]*domain.AssessmentResponse) (*domain.AssessmentResult, error)
}

// ExerciseContent is the learnable material behind a path exercise.
type ExerciseContent struct {
	ID           string                       `json:"id"`
	Skill        domain.AssessmentType        `json:"skill"`
	Title        string                       `json:"title"`
	Instructions string                       `json:"instructions"`
	Targets      []domain.PronunciationTarget `json:"targets,omitempty"`
	VideoID      string                       `json:"video_id,omitempty"`
}

// VideoContent is a playable video resource for comprehension exercises.
type VideoContent struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	DurationMs int    `json:"duration_ms"`
	Subtitles  string `json:"subtitles,omitempty"`
}

// RecordingAttempt is one uploaded pronunciation attempt.
type RecordingAttempt struct {
	TargetID   string `json:"target_id"`
	URL        string `json:"url"`
	DurationMs int    `json:"duration_ms"`
}

// RecordingResult is the backend's scoring of a recording attempt.
type RecordingResult struct {
	Accuracy float64 `json:"accuracy"`
	Passed   bool    `json:"passed"`
	Feedback string  `json:"feedback,omitempty"`
}

// ExerciseReport summarizes a user's attempts at one exercise.
type ExerciseReport struct {
	ExerciseID   string    `json:"exercise_id"`
	Attempts     int       `json:"attempts"`
	BestAccuracy float64   `json:"best_accuracy"`
	Completed    bool      `json:"completed"`
	LastAttempt  time.Time `json:"last_attempt"`
}

// ExercisingAPI talks to the exercising content backend.
type ExercisingAPI interface {
	Exercise(ctx context.Context, id string) (*ExerciseContent, error)
	Video(ctx context.Context, id string) (*VideoContent, error)
	SubmitRecording(ctx context.Context, userID string, attempt RecordingAttempt) (*RecordingResult, error)
	Report(ctx context.Context, userID, exerciseID string) (*ExerciseReport, error)
}
