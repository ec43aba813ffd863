package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresLongTermStore is a LongTermStore backed by PostgreSQL. The full
// record is kept as jsonb alongside the indexed routing columns.
type PostgresLongTermStore struct {
	db *sql.DB
}

// NewPostgresLongTermStore creates a long-term store on top of an existing
// connection pool.
func NewPostgresLongTermStore(db *sql.DB) *PostgresLongTermStore {
	return &PostgresLongTermStore{db: db}
}

func (s *PostgresLongTermStore) Append(ctx context.Context, r Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_records (record_id, session_id, case_id, account_id, record_type, record_ts, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.SessionID, r.CaseID, r.AccountID, r.Type, r.Timestamp, body,
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (s *PostgresLongTermStore) ReplaceByID(ctx context.Context, r Record) error {
	if r.ID == "" {
		return s.Append(ctx, r)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_records WHERE record_id = $1`, r.ID); err != nil {
		return fmt.Errorf("delete prior records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memory_records (record_id, session_id, case_id, account_id, record_type, record_ts, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.SessionID, r.CaseID, r.AccountID, r.Type, r.Timestamp, body,
	); err != nil {
		return fmt.Errorf("insert replacement: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresLongTermStore) Query(ctx context.Context, filters Filters) ([]Record, error) {
	// Indexed columns narrow the scan in SQL; the remaining filter keys
	// (Data fields) are applied after decoding.
	query := `SELECT body FROM memory_records WHERE 1=1`
	var args []any
	addClause := func(column, value string) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}

	for key, want := range filters {
		switch key {
		case "id":
			addClause("record_id", want)
		case "session_id":
			addClause("session_id", want)
		case "case_id":
			addClause("case_id", want)
		case "account_id":
			addClause("account_id", want)
		case "type":
			addClause("record_type", want)
		case "timestamp":
			addClause("record_ts", want)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var r Record
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if filters.matches(r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}
