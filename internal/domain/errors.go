package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// User errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidPassword   = errors.New("invalid password")
)

// Auth session errors
var (
	ErrAuthSessionNotFound = errors.New("auth session not found")
	ErrAuthSessionExpired  = errors.New("auth session expired")
)

// Onboarding errors
var (
	ErrOnboardingNotFound    = errors.New("onboarding state not found")
	ErrInvalidStepTransition = errors.New("invalid onboarding step transition")
	ErrLanguagesRequired     = errors.New("language preferences required before assessment")
	ErrWrongAssessmentType   = errors.New("assessment type is not the active one")
	ErrAssessmentIncomplete  = errors.New("not all assessment types submitted")
	ErrInvalidPrompt         = errors.New("invalid assessment prompt")
	ErrInvalidResponse       = errors.New("invalid assessment response")
)

// Learning path errors
var (
	ErrPathNotFound     = errors.New("learning path not found")
	ErrNodeNotFound     = errors.New("progression node not found")
	ErrExerciseNotFound = errors.New("exercise not found")
)

// General errors
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternalError = errors.New("internal error")
)
