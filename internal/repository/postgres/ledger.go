package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// LedgerStore is a PostgreSQL implementation of repository.LedgerStore.
// The driver row is locked with SELECT ... FOR UPDATE for the duration of the
// callback, so concurrent writers for the same driver are serialized.
type LedgerStore struct {
	db         *sql.DB
	drivers    *DriverRepository
	maxRetries int
	now        func() time.Time
}

// NewLedgerStore creates a ledger store. maxRetries bounds how often a transaction
// that lost a serialization race is attempted again.
func NewLedgerStore(db *sql.DB, maxRetries int) *LedgerStore {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &LedgerStore{
		db:         db,
		drivers:    NewDriverRepository(db),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Ensure interfaces are satisfied.
var _ repository.LedgerStore = (*LedgerStore)(nil)

// GetDriver retrieves a driver by key.
func (s *LedgerStore) GetDriver(ctx context.Context, key string) (*domain.Driver, error) {
	return s.drivers.GetByKey(ctx, key)
}

// FindDriverByExternalDispatchID retrieves a driver by the dispatch provider's id.
func (s *LedgerStore) FindDriverByExternalDispatchID(ctx context.Context, externalID string) (*domain.Driver, error) {
	return s.drivers.GetByExternalDispatchID(ctx, externalID)
}

// WithDriverTransaction runs fn inside a database transaction holding the driver's row lock.
func (s *LedgerStore) WithDriverTransaction(ctx context.Context, key string, fn func(tx repository.DriverTx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = s.attempt(ctx, key, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("driver %s after %d attempts: %w", key, s.maxRetries+1, err)
}

func (s *LedgerStore) attempt(ctx context.Context, key string, fn func(tx repository.DriverTx) error) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		// Create transaction-scoped repository.
		txDriverRepo := NewDriverRepositoryWithTx(tx)

		driver, err := txDriverRepo.getForUpdate(ctx, key)
		if err != nil {
			return mapError(err)
		}

		buf := repository.NewTxBuffer(*driver, func(ctx context.Context, orderID string, kinds []domain.TransactionKind) (bool, error) {
			return txDriverRepo.hasOrder(ctx, key, orderID, kinds)
		}, s.now)

		if err := fn(buf); err != nil {
			return err
		}
		if !buf.Changed() {
			return nil
		}

		if err := txDriverRepo.updateState(ctx, buf.Result()); err != nil {
			return err
		}
		for _, t := range buf.Transactions() {
			if err := txDriverRepo.insertTransaction(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}
