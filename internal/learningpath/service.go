package learningpath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/polyglot/internal/cache"
	"github.com/felixgeelhaar/polyglot/internal/domain"
	"github.com/felixgeelhaar/polyglot/internal/storage/local"
)

// PathStore is the server-side record of learning paths.
type PathStore interface {
	Save(userID string, path *domain.LearningPath) error
	Get(userID string) (*domain.LearningPath, error)
	Delete(userID string) error
}

// EventPublisher emits path lifecycle events. Best effort only.
type EventPublisher interface {
	PublishExerciseCompleted(ctx context.Context, event domain.ExerciseCompletedEvent) error
}

// Service owns learning paths across users: initialization from
// assessment results, reads, completion updates, and reset. Like the
// onboarding service, the in-memory copy is authoritative for a running
// process and every mutation is mirrored to the cache and the store.
type Service struct {
	store  PathStore
	cache  *cache.SessionCache
	events EventPublisher
	logger *slog.Logger

	mu    sync.Mutex
	paths map[string]*domain.LearningPath
}

// NewService wires the learning path service. events may be nil when no
// broker is configured.
func NewService(store PathStore, sessionCache *cache.SessionCache, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  sessionCache,
		events: events,
		logger: logger,
		paths:  make(map[string]*domain.LearningPath),
	}
}

// InitializePath builds a fresh path from the assessment result and
// persists it, replacing any existing path for the user.
func (s *Service) InitializePath(ctx context.Context, userID string, result *domain.AssessmentResult) (*domain.LearningPath, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: assessment result required", domain.ErrInvalidInput)
	}

	path := BuildPath(userID, result)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.paths[userID] = path
	if err := s.persistLocked(userID, path); err != nil {
		return nil, err
	}

	s.logger.Info("learning path initialized",
		"user_id", userID,
		"exercises", path.Progress.Exercises.Total,
		"available", len(path.Progression.AvailableNodeIDs))
	return path, nil
}

// Path returns the user's learning path, rehydrating from the cache or
// store on first access. Returns domain.ErrPathNotFound when none exists.
func (s *Service) Path(ctx context.Context, userID string) (*domain.LearningPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathLocked(userID)
}

func (s *Service) pathLocked(userID string) (*domain.LearningPath, error) {
	if path, ok := s.paths[userID]; ok {
		return path, nil
	}

	var path domain.LearningPath
	err := s.cache.Get(local.NamespaceLearning, userID, &path)
	if errors.Is(err, local.ErrNotFound) {
		stored, serr := s.store.Get(userID)
		if serr != nil {
			if errors.Is(serr, domain.ErrPathNotFound) {
				return nil, domain.ErrPathNotFound
			}
			return nil, fmt.Errorf("load learning path: %w", serr)
		}
		stored.RebuildFrontier()
		s.paths[userID] = stored
		return stored, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load learning path: %w", err)
	}

	// The frontier cache is rebuilt rather than trusted across restarts.
	path.RebuildFrontier()
	s.paths[userID] = &path
	return &path, nil
}

// OrderedNodeIDs returns the user's nodes in dependency-aware display
// order.
func (s *Service) OrderedNodeIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathLocked(userID)
	if err != nil {
		return nil, err
	}
	return path.OrderedNodeIDs(), nil
}

// IsAvailable reports whether the given node is unlocked for the user.
func (s *Service) IsAvailable(ctx context.Context, userID, nodeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathLocked(userID)
	if err != nil {
		return false, err
	}
	if _, ok := path.Node(nodeID); !ok {
		return false, domain.ErrNodeNotFound
	}
	return path.IsAvailable(nodeID), nil
}

// CompleteExercise folds a completion into the path and persists the
// result. Completing an already-completed exercise is a no-op that
// emits no event.
func (s *Service) CompleteExercise(ctx context.Context, userID, exerciseID string, metrics domain.CompletionMetrics) (*domain.LearningPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathLocked(userID)
	if err != nil {
		return nil, err
	}

	ex, ok := path.Exercise(exerciseID)
	if !ok {
		return nil, domain.ErrExerciseNotFound
	}
	if ex.Status == domain.ExerciseCompleted {
		return path, nil
	}

	if err := path.CompleteExercise(exerciseID, metrics); err != nil {
		return nil, err
	}
	if err := s.persistLocked(userID, path); err != nil {
		return nil, err
	}

	s.publishExerciseCompleted(ctx, userID, ex, metrics)
	s.logger.Info("exercise completed",
		"user_id", userID,
		"exercise_id", exerciseID,
		"overall", path.Progress.Overall,
		"streak", path.Progress.Streak.Current)
	return path, nil
}

// Reset discards the user's path everywhere.
func (s *Service) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.paths, userID)

	if err := s.store.Delete(userID); err != nil && !errors.Is(err, domain.ErrPathNotFound) {
		return fmt.Errorf("reset learning path: %w", err)
	}
	if err := s.cache.Remove(local.NamespaceLearning, userID); err != nil {
		s.logger.Warn("learning path cache invalidation failed", "user_id", userID, "error", err)
	}

	s.logger.Info("learning path reset", "user_id", userID)
	return nil
}

func (s *Service) persistLocked(userID string, path *domain.LearningPath) error {
	if err := s.store.Save(userID, path); err != nil {
		return fmt.Errorf("save learning path: %w", err)
	}
	if err := s.cache.Set(local.NamespaceLearning, userID, path); err != nil {
		s.logger.Warn("learning path cache write failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *Service) publishExerciseCompleted(ctx context.Context, userID string, ex *domain.PathExercise, metrics domain.CompletionMetrics) {
	if s.events == nil {
		return
	}
	event := domain.ExerciseCompletedEvent{
		ID:          uuid.New(),
		UserID:      userID,
		ExerciseID:  ex.ID,
		Skill:       ex.Skill,
		Accuracy:    metrics.Accuracy,
		CompletedAt: time.Now(),
	}
	if err := s.events.PublishExerciseCompleted(ctx, event); err != nil {
		s.logger.Warn("publish exercise completed failed",
			"user_id", userID,
			"exercise_id", ex.ID,
			"error", err)
	}
}
