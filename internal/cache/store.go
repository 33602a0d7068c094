// Package cache defines the key/value capability used for process-shared
// state (catalog snapshot, onboarding conversations) and an in-process
// implementation of it.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a byte-oriented key/value store with optional expiry.
// A ttl of zero means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in a map; expired entries are dropped on read.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

// NewMemoryStore returns an empty store. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{m: make(map[string]memEntry), now: now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.m, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}
