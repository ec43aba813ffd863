package cases

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a case store on top of an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *Case) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_cases (
			case_id, account_id, description, severity, source, flags,
			status, notes, risk_score, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.AccountID, c.Description, c.Severity, c.Source,
		pq.Array(c.Flags), c.Status, c.Notes, c.RiskScore, meta,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrCaseExists, c.ID)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, c *Case) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE fraud_cases SET
			account_id = $2, description = $3, severity = $4, source = $5,
			flags = $6, status = $7, notes = $8, risk_score = $9,
			metadata = $10, updated_at = $11
		WHERE case_id = $1`,
		c.ID, c.AccountID, c.Description, c.Severity, c.Source,
		pq.Array(c.Flags), c.Status, c.Notes, c.RiskScore, meta, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, c.ID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Case, error) {
	row := s.db.QueryRowContext(ctx, selectCases+` WHERE case_id = $1`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]*Case, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCases+` WHERE status = $1 ORDER BY created_at DESC, case_id`, status)
	if err != nil {
		return nil, fmt.Errorf("list cases by status: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string) ([]*Case, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCases+` WHERE account_id = $1 ORDER BY created_at DESC, case_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list cases by account: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

const selectCases = `
	SELECT case_id, account_id, description, severity, source, flags,
	       status, notes, risk_score, metadata, created_at, updated_at
	FROM fraud_cases`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*Case, error) {
	var c Case
	var meta []byte
	err := row.Scan(
		&c.ID, &c.AccountID, &c.Description, &c.Severity, &c.Source,
		pq.Array(&c.Flags), &c.Status, &c.Notes, &c.RiskScore, &meta,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}

func scanCases(rows *sql.Rows) ([]*Case, error) {
	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
