package repository

import (
	"context"

	"fleet/internal/domain"
)

// DriverRepository defines the read and registration operations for drivers.
// Wallet and status mutations go through LedgerStore.WithDriverTransaction.
type DriverRepository interface {
	// Create adds a newly registered driver. Returns ErrAlreadyExists if the key is taken.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByKey retrieves a driver by its key.
	GetByKey(ctx context.Context, key string) (*domain.Driver, error)

	// GetByExternalDispatchID retrieves a driver by the dispatch provider's id.
	GetByExternalDispatchID(ctx context.Context, externalID string) (*domain.Driver, error)

	// List retrieves drivers, optionally filtered by operational status ("" means all).
	List(ctx context.Context, status domain.OperationalStatus) ([]*domain.Driver, error)

	// ListTransactions retrieves a driver's ledger in commit order.
	// A positive limit keeps only the most recent entries.
	ListTransactions(ctx context.Context, key string, limit int) ([]*domain.Transaction, error)
}
