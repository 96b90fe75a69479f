package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// OnboardingStore persists onboarding state snapshots backed by SQLite.
type OnboardingStore struct {
	db *DB
}

// NewOnboardingStore creates a new SQLite-backed onboarding store.
func NewOnboardingStore(db *DB) *OnboardingStore {
	return &OnboardingStore{db: db}
}

// Save persists the state snapshot for a user (insert or update).
func (s *OnboardingStore) Save(userID string, state *domain.OnboardingState) error {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal onboarding state: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO onboarding_states (user_id, current_step, progress, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_step=excluded.current_step,
			progress=excluded.progress,
			state=excluded.state,
			updated_at=excluded.updated_at`,
		userID, string(state.CurrentStep), state.Progress, string(snapshot), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert onboarding state: %w", err)
	}
	return nil
}

// Get retrieves the state snapshot for a user.
func (s *OnboardingStore) Get(userID string) (*domain.OnboardingState, error) {
	var snapshot string
	err := s.db.QueryRow(
		"SELECT state FROM onboarding_states WHERE user_id = ?", userID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOnboardingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query onboarding state: %w", err)
	}

	var state domain.OnboardingState
	if err := json.Unmarshal([]byte(snapshot), &state); err != nil {
		return nil, fmt.Errorf("unmarshal onboarding state: %w", err)
	}
	return &state, nil
}

// Delete removes the state snapshot for a user.
func (s *OnboardingStore) Delete(userID string) error {
	result, err := s.db.Exec("DELETE FROM onboarding_states WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete onboarding state: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrOnboardingNotFound
	}
	return nil
}
