package memory

import (
	"sync"
	"time"
)

type shortEntry struct {
	record    Record
	writtenAt time.Time
}

// ShortTermStore is volatile working memory keyed by session. Within a
// session each sub-key holds only its most recent record.
type ShortTermStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]shortEntry
}

// NewShortTermStore creates an empty short-term store.
func NewShortTermStore() *ShortTermStore {
	return &ShortTermStore{sessions: make(map[string]map[string]shortEntry)}
}

// Put writes a record into its session slot, replacing any previous value
// under the same sub-key.
func (s *ShortTermStore) Put(r Record, writtenAt time.Time) {
	key := r.sessionKey()
	sub := r.subKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		session = make(map[string]shortEntry)
		s.sessions[key] = session
	}
	session[sub] = shortEntry{record: r.clone(), writtenAt: writtenAt}
}

// Query returns copies of all records matching the filters, across every
// session. Order is unspecified.
func (s *ShortTermStore) Query(filters Filters) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, session := range s.sessions {
		for _, entry := range session {
			if filters.matches(entry.record) {
				out = append(out, entry.record.clone())
			}
		}
	}
	return out
}

// ClearSession drops all working memory for one session.
func (s *ShortTermStore) ClearSession(sessionKey string) {
	s.mu.Lock()
	delete(s.sessions, sessionKey)
	s.mu.Unlock()
}
