package lockstore

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	count     int64
	expiresAt time.Time
}

// MemLockStore is an in-process LockStore for tests and single-node dev
// setups. TTLs are enforced lazily on read.
type MemLockStore struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// overridable for TTL tests
	now func() time.Time
}

var _ LockStore = (*MemLockStore)(nil)

func NewMemLockStore() *MemLockStore {
	return &MemLockStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (s *MemLockStore) live(key string) (memEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemLockStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = memEntry{expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemLockStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemLockStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

func (s *MemLockStore) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, _ := s.live(key)
	e.count += delta
	e.expiresAt = s.now().Add(ttl)
	s.entries[key] = e
	return e.count, nil
}

func (s *MemLockStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
