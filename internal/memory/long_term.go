package memory

import (
	"context"
	"sync"
)

// LongTermStore is the durable, unordered record collection behind the
// long memory scope.
type LongTermStore interface {
	// Append adds a record to the collection.
	Append(ctx context.Context, r Record) error

	// ReplaceByID removes any existing records with the same ID, then
	// inserts r. The removal plus insert must be atomic.
	ReplaceByID(ctx context.Context, r Record) error

	// Query returns all records matching the filters.
	Query(ctx context.Context, filters Filters) ([]Record, error)
}

// MemoryLongTermStore is an in-memory LongTermStore for development and
// tests.
type MemoryLongTermStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryLongTermStore creates an empty in-memory long-term store.
func NewMemoryLongTermStore() *MemoryLongTermStore {
	return &MemoryLongTermStore{}
}

func (s *MemoryLongTermStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	s.records = append(s.records, r.clone())
	s.mu.Unlock()
	return nil
}

func (s *MemoryLongTermStore) ReplaceByID(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID != "" {
		kept := s.records[:0]
		for _, existing := range s.records {
			if existing.ID != r.ID {
				kept = append(kept, existing)
			}
		}
		s.records = kept
	}
	s.records = append(s.records, r.clone())
	return nil
}

func (s *MemoryLongTermStore) Query(_ context.Context, filters Filters) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if filters.matches(r) {
			out = append(out, r.clone())
		}
	}
	return out, nil
}
