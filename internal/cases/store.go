package cases

import "context"

// Store persists fraud cases. Implementations must treat case IDs as unique
// and return copies from read operations.
type Store interface {
	// Create persists a new case. Returns ErrCaseExists if the ID is taken.
	Create(ctx context.Context, c *Case) error

	// Update overwrites an existing case record. Returns ErrCaseNotFound
	// if no case with that ID exists.
	Update(ctx context.Context, c *Case) error

	// Get fetches a case by ID. Returns ErrCaseNotFound if absent.
	Get(ctx context.Context, id string) (*Case, error)

	// ListByStatus returns all cases in the given status, newest first.
	ListByStatus(ctx context.Context, status Status) ([]*Case, error)

	// ListByAccount returns all cases for an account, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*Case, error)
}
