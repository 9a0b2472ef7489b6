// Package cache holds the summary caches: an in-process TTL LRU and a shared
// Redis store behind the same context-aware interface.
package cache

import (
	"context"
	"time"

	"budgeteer/internal/log"
)

// Cache is the synchronous in-process cache contract.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	DeletePrefix(prefix string) int
	Size() int
}

// Store is what services depend on. Remote implementations may fail, so
// every call takes a context and returns an error.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, data T) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Local adapts an in-process Cache to Store.
type Local[T any] struct {
	c Cache[T]
}

func NewLocal[T any](c Cache[T]) *Local[T] {
	return &Local[T]{c: c}
}

func (l *Local[T]) Get(_ context.Context, key string) (T, bool, error) {
	v, ok := l.c.Get(key)
	return v, ok, nil
}

func (l *Local[T]) Set(_ context.Context, key string, data T) error {
	l.c.Set(key, data)
	return nil
}

func (l *Local[T]) DeletePrefix(_ context.Context, prefix string) error {
	l.c.DeletePrefix(prefix)
	return nil
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	caches      []Cleaner
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		caches:      make([]Cleaner, 0),
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	if total > 0 {
		m.logger.Debug("Expired cache entries removed", log.FieldCount, total)
	}
	for _, c := range m.caches {
		if sc, ok := c.(interface{ Stats() Stats }); ok {
			st := sc.Stats()
			m.logger.Debug("Cache stats",
				"size", st.Size, "hits", st.Hits, "misses", st.Misses,
				"evictions", st.Evictions, "expired", st.Expired)
		}
	}
	return total
}

// Stop waits for the cleanup routine to exit. It must be called at most once,
// after StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
