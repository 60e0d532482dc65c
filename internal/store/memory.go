// internal/store/memory.go
//
// In-memory keyed store for live, process-local objects (quiz sessions,
// flashcard decks).
//
// Characteristics:
//   - Values keyed by ID in a map; concurrency-safe via RWMutex.
//   - Every Save and Get refreshes the entry's last-touched time.
//   - Reap evicts entries idle longer than a TTL; RunReaper does so on a
//     ticker until its context is cancelled.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Get and Delete for unknown IDs.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface for live objects keyed by ID.
type Store[T any] interface {
	Save(ctx context.Context, id string, v T) error
	Get(ctx context.Context, id string) (T, error)
	Delete(ctx context.Context, id string) error
}

type entry[T any] struct {
	v       T
	touched time.Time
}

// Memory is a map-backed Store.
type Memory[T any] struct {
	mu      sync.RWMutex
	items   map[string]*entry[T]
	now     func() time.Time
	onEvict func(id string, v T)
}

// MemoryOption customises a Memory store.
type MemoryOption[T any] func(*Memory[T])

// WithClock replaces time.Now (tests).
func WithClock[T any](now func() time.Time) MemoryOption[T] {
	return func(m *Memory[T]) { m.now = now }
}

// OnEvict registers a callback for entries removed by Delete or Reap.
// It runs outside the store's lock.
func OnEvict[T any](fn func(id string, v T)) MemoryOption[T] {
	return func(m *Memory[T]) { m.onEvict = fn }
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore[T any](opts ...MemoryOption[T]) *Memory[T] {
	m := &Memory[T]{items: make(map[string]*entry[T]), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save adds or replaces the value stored under id.
func (m *Memory[T]) Save(_ context.Context, id string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = &entry[T]{v: v, touched: m.now()}
	return nil
}

// Get looks up id.
func (m *Memory[T]) Get(_ context.Context, id string) (T, error) {
	// Touching mutates the entry, so a read lock is not enough.
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	e.touched = m.now()
	return e.v, nil
}

// Delete removes id.
func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.items[id]
	delete(m.items, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if m.onEvict != nil {
		m.onEvict(id, e.v)
	}
	return nil
}

// Len reports the number of stored entries.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Reap evicts entries not touched within ttl and returns their IDs.
func (m *Memory[T]) Reap(ttl time.Duration) []string {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var (
		ids     []string
		evicted []T
	)
	for id, e := range m.items {
		if e.touched.Before(cutoff) {
			ids = append(ids, id)
			evicted = append(evicted, e.v)
			delete(m.items, id)
		}
	}
	m.mu.Unlock()

	if m.onEvict != nil {
		for i, id := range ids {
			m.onEvict(id, evicted[i])
		}
	}
	return ids
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Memory[T]) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := m.Reap(ttl); len(ids) > 0 {
				log.Info().Int("count", len(ids)).Dur("ttl", ttl).Msg("reaped idle entries")
			}
		}
	}
}
