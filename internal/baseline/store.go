package baseline

import (
	"context"
	"log/slog"

	"github.com/mbd888/fraudwatch/internal/feature"
)

// defaultHistoryWindow bounds how many recent transactions feed a rebuild.
const defaultHistoryWindow = 200

// HistoryStore persists per-account transaction history for baseline
// rebuilds.
type HistoryStore interface {
	Append(ctx context.Context, tx *feature.Transaction) error
	RecentByAccount(ctx context.Context, accountID string, limit int) ([]*feature.Transaction, error)
}

// Model rebuilds baselines on demand from stored history.
type Model struct {
	store  HistoryStore
	logger *slog.Logger
	window int
}

// Option configures a Model.
type Option func(*Model)

// WithHistoryWindow overrides how many recent transactions feed a rebuild.
// Non-positive values keep the default.
func WithHistoryWindow(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.window = n
		}
	}
}

// NewModel creates a baseline model over the given history store.
func NewModel(store HistoryStore, logger *slog.Logger, opts ...Option) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{store: store, logger: logger, window: defaultHistoryWindow}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ForAccount rebuilds the account's baseline from its bounded history
// window. A store failure degrades to the empty-history default profile;
// baselining must never block the scoring pipeline.
func (m *Model) ForAccount(ctx context.Context, accountID string) *Baseline {
	history, err := m.store.RecentByAccount(ctx, accountID, m.window)
	if err != nil {
		m.logger.Warn("baseline history fetch failed, using default profile",
			"account", accountID, "error", err)
		history = nil
	}
	return Build(accountID, history)
}

// Observe records a transaction into the account's history for future
// rebuilds. Best-effort: failures are logged, not returned.
func (m *Model) Observe(ctx context.Context, tx *feature.Transaction) {
	if err := m.store.Append(ctx, tx); err != nil {
		m.logger.Warn("history append failed", "account", tx.AccountID, "error", err)
	}
}
