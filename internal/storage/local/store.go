package local

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Known namespaces. Callers may use others; these are the ones the engine
// itself writes.
const (
	NamespaceAuth       = "auth"
	NamespaceOnboarding = "onboarding"
	NamespaceLearning   = "learning"
	NamespaceExercising = "exercising"
)

// Store provides thread-safe namespaced JSON key-value storage on the
// filesystem. Reads fail closed (ErrNotFound) so callers can proceed with
// defaults; writes fail loud.
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates a new local JSON store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// Set persists a value under namespace/key. The value is JSON round-tripped
// before it touches disk so anything non-serializable is rejected up front
// and what lands on disk is exactly what a later Get will see.
func (s *Store) Set(namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	var roundTripped any
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		return fmt.Errorf("round-trip value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create namespace directory: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves a
	// half-written record behind.
	path := filepath.Join(dir, key+".json")
	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(roundTripped); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// Get reads the value stored under namespace/key into out. A missing or
// corrupt record returns ErrNotFound; corruption is logged but never
// propagated, since callers must function with default state.
func (s *Store) Get(namespace, key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.basePath, namespace, key+".json")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		slog.Warn("storage read failed", "namespace", namespace, "key", key, "error", err)
		return ErrNotFound
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(out); err != nil {
		slog.Warn("storage record corrupt", "namespace", namespace, "key", key, "error", err)
		return ErrNotFound
	}

	return nil
}

// Remove deletes the record under namespace/key. Removing a missing record
// is not an error.
func (s *Store) Remove(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.basePath, namespace, key+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove file: %w", err)
	}

	return nil
}

// Clear deletes every record in a namespace. Clearing a missing namespace
// is not an error.
func (s *Store) Clear(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, namespace)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear namespace: %w", err)
	}

	return nil
}

// Keys returns all keys in a namespace.
func (s *Store) Keys(namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.basePath, namespace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".json" {
			keys = append(keys, name[:len(name)-5])
		}
	}

	return keys, nil
}

// Exists checks if a record exists without decoding it.
func (s *Store) Exists(namespace, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.basePath, namespace, key+".json")
	_, err := os.Stat(path)
	return err == nil
}
