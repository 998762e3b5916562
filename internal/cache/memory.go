package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process Store. Expired entries are dropped lazily on
// read and swept periodically on write.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[string]*memoryEntry
	tags    map[string]map[string]struct{}

	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	tags      []string
}

// NewMemoryStore creates an empty in-memory store. A nil clock uses real time.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:           clock,
		entries:         make(map[string]*memoryEntry),
		tags:            make(map[string]map[string]struct{}),
		lastCleanup:     clock.Now(),
		cleanupInterval: 5 * time.Minute,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set implements Store. A non-positive ttl stores nothing.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)
	s.entries[key] = &memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.clock.Now().Add(ttl),
		tags:      append([]string(nil), tags...),
	}
	for _, tag := range tags {
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}

	s.cleanupIfNeeded()
	return nil
}

// InvalidateByTag implements Store.
func (s *MemoryStore) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.tags[tag] {
		if _, ok := s.entries[key]; ok {
			s.removeLocked(key)
			removed++
		}
	}
	delete(s.tags, tag)
	return removed, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	for _, tag := range e.tags {
		if keys, ok := s.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.tags, tag)
			}
		}
	}
}

// cleanupIfNeeded removes expired entries if the cleanup interval has passed.
func (s *MemoryStore) cleanupIfNeeded() {
	now := s.clock.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			s.removeLocked(key)
		}
	}
}
