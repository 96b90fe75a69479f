package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// PathStore persists learning path snapshots backed by SQLite.
type PathStore struct {
	db *DB
}

// NewPathStore creates a new SQLite-backed learning path store.
func NewPathStore(db *DB) *PathStore {
	return &PathStore{db: db}
}

// Save persists the path snapshot for a user (insert or update).
func (s *PathStore) Save(userID string, path *domain.LearningPath) error {
	snapshot, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal learning path: %w", err)
	}

	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO learning_paths (user_id, overall, path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			overall=excluded.overall,
			path=excluded.path,
			updated_at=excluded.updated_at`,
		userID, path.Progress.Overall, string(snapshot), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert learning path: %w", err)
	}
	return nil
}

// Get retrieves the path snapshot for a user.
func (s *PathStore) Get(userID string) (*domain.LearningPath, error) {
	var snapshot string
	err := s.db.QueryRow(
		"SELECT path FROM learning_paths WHERE user_id = ?", userID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPathNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query learning path: %w", err)
	}

	var path domain.LearningPath
	if err := json.Unmarshal([]byte(snapshot), &path); err != nil {
		return nil, fmt.Errorf("unmarshal learning path: %w", err)
	}
	return &path, nil
}

// Delete removes the path snapshot for a user.
func (s *PathStore) Delete(userID string) error {
	result, err := s.db.Exec("DELETE FROM learning_paths WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete learning path: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrPathNotFound
	}
	return nil
}
