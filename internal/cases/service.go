package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/fraudwatch/internal/idgen"
	"github.com/mbd888/fraudwatch/internal/syncutil"
)

// Service owns the case lifecycle on top of a Store. Status updates are
// serialized per case so concurrent transitions never interleave a stale
// read-modify-write.
type Service struct {
	store  Store
	logger *slog.Logger
	locks  syncutil.ShardedMutex
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a case lifecycle service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new case with a fresh ID and status OPEN.
func (s *Service) Create(ctx context.Context, accountID, description string, severity Severity, source string, flags []string) (*Case, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if severity == "" {
		severity = SeverityMedium
	}
	if !ValidSeverity(severity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}

	now := s.now().UTC()
	c := &Case{
		ID:          idgen.CaseID(),
		AccountID:   accountID,
		Description: description,
		Severity:    severity,
		Source:      source,
		Flags:       append([]string(nil), flags...),
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("case created",
		"case_id", c.ID,
		"account_id", c.AccountID,
		"severity", c.Severity,
		"source", c.Source)

	return c.clone(), nil
}

// UpdateStatus moves a case to a new status, recording notes and bumping
// updated_at. Returns false when no such case exists. Transition legality
// is advisory: an off-ladder move is applied but logged as a warning, since
// operators sometimes need to force a state.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, notes string) (bool, error) {
	if !ValidStatus(status) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrCaseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !LegalTransition(c.Status, status) {
		s.logger.Warn("case status transition off the expected ladder",
			"case_id", id,
			"from", c.Status,
			"to", status)
	}

	c.Status = status
	c.Notes = notes
	c.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, c); err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("case status updated", "case_id", id, "status", status)
	return true, nil
}

// Escalate moves a case to ESCALATED with the given reason as notes.
func (s *Service) Escalate(ctx context.Context, id, reason string) (bool, error) {
	return s.UpdateStatus(ctx, id, StatusEscalated, reason)
}

// Fetch returns a case by ID.
func (s *Service) Fetch(ctx context.Context, id string) (*Case, error) {
	return s.store.Get(ctx, id)
}

// FetchByStatus returns all cases in the given status, newest first.
func (s *Service) FetchByStatus(ctx context.Context, status Status) ([]*Case, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.ListByStatus(ctx, status)
}

// FetchByAccount returns all cases for an account, newest first.
func (s *Service) FetchByAccount(ctx context.Context, accountID string) ([]*Case, error) {
	return s.store.ListByAccount(ctx, accountID)
}
