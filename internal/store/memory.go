package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local DeliveryStore. It resets on restart, so it
// only guards against redelivery within a single process lifetime; use the
// SQLite store for durability.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Seen reports whether an unexpired record exists for the delivery.
func (s *MemoryStore) Seen(ctx context.Context, deliveryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.records[deliveryID]
	if !ok {
		return false, nil
	}
	if s.now().After(expiresAt) {
		delete(s.records, deliveryID)
		return false, nil
	}
	return true, nil
}

// MarkProcessed performs a first-writer-wins insert under the store lock.
func (s *MemoryStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.records[deliveryID]; ok && !s.now().After(expiresAt) {
		return false, nil
	}
	s.records[deliveryID] = s.now().Add(ttl)
	return true, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
