// Package cache provides a read-through in-memory mirror of the persistent
// key-value store. Reads hit memory first and backfill on a store hit;
// writes go to both layers, with the durable write deciding the outcome.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/storage/local"
)

const (
	defaultMaxEntries = 512
	defaultTTL        = 15 * time.Minute
)

type entry struct {
	raw       json.RawMessage
	expiresAt time.Time
	createdAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// SessionCache mirrors the persistent store's key space in memory.
type SessionCache struct {
	store *local.Store

	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	ttl        time.Duration

	hits   int64
	misses int64
}

// Option configures a SessionCache.
type Option func(*SessionCache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *SessionCache) { c.ttl = ttl }
}

// WithMaxEntries overrides the default size bound.
func WithMaxEntries(n int) Option {
	return func(c *SessionCache) { c.maxEntries = n }
}

// New creates a session cache in front of the given store.
func New(store *local.Store, opts ...Option) *SessionCache {
	c := &SessionCache{
		store:      store,
		entries:    make(map[string]*entry),
		maxEntries: defaultMaxEntries,
		ttl:        defaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(namespace, key string) string {
	return namespace + "/" + key
}

// Get reads namespace/key into out: memory first, then the persistent
// store with a memory backfill on hit. Returns local.ErrNotFound when the
// record exists in neither layer.
func (c *SessionCache) Get(namespace, key string, out any) error {
	ck := cacheKey(namespace, key)

	c.mu.RLock()
	e, ok := c.entries[ck]
	c.mu.RUnlock()

	if ok && !e.expired() {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		if err := json.Unmarshal(e.raw, out); err != nil {
			return fmt.Errorf("decode cached value: %w", err)
		}
		return nil
	}

	c.mu.Lock()
	c.misses++
	if ok {
		delete(c.entries, ck)
	}
	c.mu.Unlock()

	var raw json.RawMessage
	if err := c.store.Get(namespace, key, &raw); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return local.ErrNotFound
		}
		return err
	}

	c.put(ck, raw)

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode stored value: %w", err)
	}
	return nil
}

// Set writes namespace/key to both layers. The durable write is awaited
// and its error returned; the memory update never fails the call.
func (c *SessionCache) Set(namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	c.put(cacheKey(namespace, key), raw)

	return c.store.Set(namespace, key, value)
}

// Remove invalidates both layers.
func (c *SessionCache) Remove(namespace, key string) error {
	c.mu.Lock()
	delete(c.entries, cacheKey(namespace, key))
	c.mu.Unlock()

	return c.store.Remove(namespace, key)
}

// Clear invalidates a whole namespace in both layers.
func (c *SessionCache) Clear(namespace string) error {
	prefix := namespace + "/"
	c.mu.Lock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	return c.store.Clear(namespace)
}

// Stats returns a snapshot of the cache counters.
func (c *SessionCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// put stores a raw value, evicting the oldest entry at capacity.
func (c *SessionCache) put(ck string, raw json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries && c.entries[ck] == nil {
		oldestKey := ""
		var oldestTime time.Time
		for k, e := range c.entries {
			if oldestTime.IsZero() || e.createdAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.createdAt
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	now := time.Now()
	c.entries[ck] = &entry{
		raw:       raw,
		expiresAt: now.Add(c.ttl),
		createdAt: now,
	}
}
