package baseline

import (
	"context"
	"sync"

	"github.com/mbd888/fraudwatch/internal/feature"
)

// maxHistoryPerAccount caps the in-memory ring per account.
const maxHistoryPerAccount = 500

// MemoryHistoryStore is an in-memory HistoryStore for demo mode and tests.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	history map[string][]*feature.Transaction
}

// Compile-time check.
var _ HistoryStore = (*MemoryHistoryStore)(nil)

// NewMemoryHistoryStore creates an empty in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{history: make(map[string][]*feature.Transaction)}
}

func (s *MemoryHistoryStore) Append(_ context.Context, tx *feature.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	entries := append(s.history[tx.AccountID], &cp)
	if len(entries) > maxHistoryPerAccount {
		entries = entries[len(entries)-maxHistoryPerAccount:]
	}
	s.history[tx.AccountID] = entries
	return nil
}

func (s *MemoryHistoryStore) RecentByAccount(_ context.Context, accountID string, limit int) ([]*feature.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[accountID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	out := make([]*feature.Transaction, 0, len(entries))
	for _, tx := range entries {
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}
