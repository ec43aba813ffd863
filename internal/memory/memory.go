// Package memory implements the two-tier investigation memory: a volatile
// session-scoped working store and a durable long-term event store, routed
// behind one interface.
package memory

import (
	"errors"
	"fmt"
)

// Scope selects which tier a memory operation targets.
type Scope string

const (
	// ScopeShort is volatile, session-keyed working memory. Each session
	// holds the latest value per sub-key, last write wins.
	ScopeShort Scope = "short"

	// ScopeLong is the durable, unordered event collection.
	ScopeLong Scope = "long"
)

var ErrUnknownScope = errors.New("unknown memory scope")

// ValidScope reports whether s names a memory tier.
func ValidScope(s Scope) bool {
	return s == ScopeShort || s == ScopeLong
}

// Record is a single memory entry. Timestamp is an RFC 3339 string so that
// lexical comparison orders records chronologically; records with a missing
// timestamp compare as the empty string and sort last in descending reads.
type Record struct {
	ID        string         `json:"id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	CaseID    string         `json:"case_id,omitempty"`
	AccountID string         `json:"account_id,omitempty"`
	Type      string         `json:"type,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (r Record) clone() Record {
	out := r
	if r.Data != nil {
		out.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			out.Data[k] = v
		}
	}
	return out
}

// sessionKey picks the short-term partition for a record: explicit session
// first, then account.
func (r Record) sessionKey() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.AccountID
}

// subKey picks the slot a record occupies within its session: explicit ID
// first, then record type.
func (r Record) subKey() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Type
}

// Filters is an exact-match predicate over record fields. Keys name either
// a top-level field (id, session_id, case_id, account_id, type, timestamp)
// or a key inside Data. An empty filter matches everything.
type Filters map[string]string

func (f Filters) matches(r Record) bool {
	for key, want := range f {
		if !fieldEquals(r, key, want) {
			return false
		}
	}
	return true
}

func fieldEquals(r Record, key, want string) bool {
	switch key {
	case "id":
		return r.ID == want
	case "session_id":
		return r.SessionID == want
	case "case_id":
		return r.CaseID == want
	case "account_id":
		return r.AccountID == want
	case "type":
		return r.Type == want
	case "timestamp":
		return r.Timestamp == want
	}
	v, ok := r.Data[key]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == want
}
