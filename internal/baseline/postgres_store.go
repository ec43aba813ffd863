package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mbd888/fraudwatch/internal/feature"
)

// PostgresHistoryStore persists account transaction history in PostgreSQL.
type PostgresHistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check.
var _ HistoryStore = (*PostgresHistoryStore)(nil)

// NewPostgresHistoryStore creates a PostgreSQL-backed history store.
// Schema lives in migrations/ (account_history table).
func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db, logger: slog.Default()}
}

func (s *PostgresHistoryStore) Append(ctx context.Context, tx *feature.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO account_history (account_id, txn)
		VALUES ($1, $2)
	`, tx.AccountID, payload)
	if err != nil {
		return fmt.Errorf("append account history: %w", err)
	}
	return nil
}

// RecentByAccount returns the account's history oldest first. A
// non-positive limit returns everything, matching MemoryHistoryStore.
func (s *PostgresHistoryStore) RecentByAccount(ctx context.Context, accountID string, limit int) ([]*feature.Transaction, error) {
	query := `
		SELECT txn FROM account_history
		WHERE account_id = $1
		ORDER BY id DESC
	`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query account history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var newestFirst []*feature.Transaction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			s.logger.Warn("skipping unreadable history row", "account", accountID, "error", err)
			continue
		}
		var tx feature.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			s.logger.Warn("skipping malformed history row", "account", accountID, "error", err)
			continue
		}
		newestFirst = append(newestFirst, &tx)
	}

	// Oldest first, matching the memory store.
	out := make([]*feature.Transaction, len(newestFirst))
	for i, tx := range newestFirst {
		out[len(newestFirst)-1-i] = tx
	}
	return out, rows.Err()
}
