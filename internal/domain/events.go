package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentCompletedEvent is published when one assessment type has been
// submitted and accepted.
type AssessmentCompletedEvent struct {
	ID          uuid.UUID      `json:"id"`
	UserID      string         `json:"user_id"`
	Type        AssessmentType `json:"type"`
	Score       float64        `json:"score,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// OnboardingCompletedEvent is published when the final assessment is
// submitted and the learning path has been initialized.
type OnboardingCompletedEvent struct {
	ID          uuid.UUID                  `json:"id"`
	UserID      string                     `json:"user_id"`
	Scores      map[AssessmentType]float64 `json:"scores"`
	CompletedAt time.Time                  `json:"completed_at"`
}

// ExerciseCompletedEvent is published for each completed path exercise.
type ExerciseCompletedEvent struct {
	ID          uuid.UUID      `json:"id"`
	UserID      string         `json:"user_id"`
	ExerciseID  string         `json:"exercise_id"`
	Skill       AssessmentType `json:"skill"`
	Accuracy    float64        `json:"accuracy"`
	CompletedAt time.Time      `json:"completed_at"`
}
