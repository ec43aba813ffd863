package cases

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string]*Case
}

// NewMemoryStore creates an empty in-memory case store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string]*Case)}
}

func (s *MemoryStore) Create(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrCaseExists, c.ID)
	}
	s.cases[c.ID] = c.clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[c.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, c.ID)
	}
	s.cases[c.ID] = c.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return c.clone(), nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status Status) ([]*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Case
	for _, c := range s.cases {
		if c.Status == status {
			out = append(out, c.clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByAccount(_ context.Context, accountID string) ([]*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Case
	for _, c := range s.cases {
		if c.AccountID == accountID {
			out = append(out, c.clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(cs []*Case) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	})
}
