package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore keyed by (user, kind). Calls
// are recorded into minute buckets under a single mutex, so the add is
// atomic with respect to concurrent requests for the same user.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[memKey]map[int64]int
}

type memKey struct {
	userID string
	kind   Kind
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[memKey]map[int64]int)}
}

// RecordCall atomically adds one call at the given instant.
func (s *MemoryStore) RecordCall(_ context.Context, userID string, kind Kind, at time.Time) error {
	bucket := at.Truncate(time.Minute).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey{userID: userID, kind: kind}
	if s.buckets[key] == nil {
		s.buckets[key] = make(map[int64]int)
	}
	s.buckets[key][bucket]++
	return nil
}

// CountSince returns the number of calls recorded at or after since.
func (s *MemoryStore) CountSince(_ context.Context, userID string, kind Kind, since time.Time) (int, error) {
	cutoff := since.Truncate(time.Minute).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for bucket, count := range s.buckets[memKey{userID: userID, kind: kind}] {
		if bucket >= cutoff {
			total += count
		}
	}
	return total, nil
}

// Prune discards buckets entirely before the cutoff.
func (s *MemoryStore) Prune(_ context.Context, before time.Time) error {
	cutoff := before.Truncate(time.Minute).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, buckets := range s.buckets {
		for bucket := range buckets {
			if bucket < cutoff {
				delete(buckets, bucket)
			}
		}
		if len(buckets) == 0 {
			delete(s.buckets, key)
		}
	}
	return nil
}
