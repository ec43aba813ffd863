// Package cases implements the fraud case lifecycle: creation, status
// transitions, and retrieval of tracked investigation units.
package cases

import (
	"errors"
	"time"
)

// Status is a fraud case lifecycle state.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusInvestigating Status = "INVESTIGATING"
	StatusEscalated     Status = "ESCALATED"
	StatusResolved      Status = "RESOLVED"
	StatusClosed        Status = "CLOSED"
)

// Severity grades how urgent a case is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var (
	ErrCaseNotFound    = errors.New("case not found")
	ErrCaseExists      = errors.New("case already exists")
	ErrInvalidStatus   = errors.New("invalid case status")
	ErrInvalidSeverity = errors.New("invalid case severity")
)

// legalTransitions lists the expected status changes. Transition legality is
// advisory: UpdateStatus applies any valid target status and leaves it to
// callers to stay on the ladder. LegalTransition lets them check.
var legalTransitions = map[Status][]Status{
	StatusOpen:          {StatusInvestigating, StatusEscalated},
	StatusInvestigating: {StatusEscalated, StatusResolved},
	StatusEscalated:     {StatusResolved},
	StatusResolved:      {StatusClosed},
	StatusClosed:        {},
}

// ValidStatus reports whether s is a recognized lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := legalTransitions[s]
	return ok
}

// ValidSeverity reports whether s is a recognized severity grade.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// LegalTransition reports whether moving from one status to another follows
// the expected lifecycle ladder.
func LegalTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a case in this status accepts no further
// transitions.
func Terminal(s Status) bool {
	return len(legalTransitions[s]) == 0 && ValidStatus(s)
}

// Case is a tracked fraud investigation unit. Instances returned from a
// Store are copies; mutating them does not affect the stored record.
type Case struct {
	ID          string            `json:"case_id" db:"case_id"`
	AccountID   string            `json:"account_id" db:"account_id"`
	Description string            `json:"description" db:"description"`
	Severity    Severity          `json:"severity" db:"severity"`
	Source      string            `json:"source" db:"source"`
	Flags       []string          `json:"flags" db:"flags"`
	Status      Status            `json:"status" db:"status"`
	Notes       string            `json:"notes,omitempty" db:"notes"`
	RiskScore   float64           `json:"risk_score" db:"risk_score"`
	Metadata    map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

func (c *Case) clone() *Case {
	out := *c
	if c.Flags != nil {
		out.Flags = append([]string(nil), c.Flags...)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
