package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// Producer publishes onboarding and progression events. It satisfies
// the EventPublisher interfaces of the onboarding and learning path
// services.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishAssessmentCompleted publishes a per-type assessment completion
func (p *Producer) PublishAssessmentCompleted(ctx context.Context, event domain.AssessmentCompletedEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, AssessmentQueueName, event); err != nil {
		return fmt.Errorf("failed to publish assessment completed: %w", err)
	}

	slog.Info("published assessment completed",
		"event_id", event.ID,
		"user_id", event.UserID,
		"type", string(event.Type),
	)

	return nil
}

// PublishOnboardingCompleted publishes the end-of-onboarding event
func (p *Producer) PublishOnboardingCompleted(ctx context.Context, event domain.OnboardingCompletedEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, AssessmentQueueName, event); err != nil {
		return fmt.Errorf("failed to publish onboarding completed: %w", err)
	}

	slog.Info("published onboarding completed",
		"event_id", event.ID,
		"user_id", event.UserID,
	)

	return nil
}

// PublishExerciseCompleted publishes a path exercise completion
func (p *Producer) PublishExerciseCompleted(ctx context.Context, event domain.ExerciseCompletedEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, ProgressQueueName, event); err != nil {
		return fmt.Errorf("failed to publish exercise completed: %w", err)
	}

	slog.Info("published exercise completed",
		"event_id", event.ID,
		"user_id", event.UserID,
		"exercise_id", event.ExerciseID,
	)

	return nil
}
