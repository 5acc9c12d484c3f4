package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

const driverColumns = `key, uid, full_name, phone, application_status, operational_status,
	current_balance, debt_limit, external_dispatch_id, pro_level, pro_points, application,
	created_at, application_submitted_at, approved_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a newly registered driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	application, err := json.Marshal(driver.Application)
	if err != nil {
		return fmt.Errorf("encode application: %w", err)
	}

	query := `
		INSERT INTO drivers (key, uid, full_name, phone, application_status, operational_status,
			current_balance, debt_limit, external_dispatch_id, pro_level, pro_points, application, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.q.ExecContext(ctx, query,
		driver.Key,
		driver.UID,
		driver.FullName,
		driver.Phone,
		driver.ApplicationStatus,
		driver.OperationalStatus,
		driver.Wallet.CurrentBalance,
		driver.Wallet.DebtLimit,
		nullString(driver.ExternalDispatchID),
		driver.ProStatus.Level,
		driver.ProStatus.Points,
		application,
		driver.CreatedAt,
	)
	return mapError(err)
}

// GetByKey retrieves a driver by key.
func (r *DriverRepository) GetByKey(ctx context.Context, key string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE key = $1`
	return scanDriver(r.q.QueryRowContext(ctx, query, key))
}

// GetByExternalDispatchID retrieves a driver by the dispatch provider's id.
func (r *DriverRepository) GetByExternalDispatchID(ctx context.Context, externalID string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE external_dispatch_id = $1`
	return scanDriver(r.q.QueryRowContext(ctx, query, externalID))
}

// getForUpdate reads a driver and locks its row until the surrounding transaction ends.
func (r *DriverRepository) getForUpdate(ctx context.Context, key string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE key = $1 FOR UPDATE`
	return scanDriver(r.q.QueryRowContext(ctx, query, key))
}

// List retrieves drivers ordered by key, optionally filtered by status.
func (r *DriverRepository) List(ctx context.Context, status domain.OperationalStatus) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers`
	var args []any
	if status != "" {
		query += ` WHERE operational_status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY key`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// ListTransactions retrieves a driver's ledger in commit order.
func (r *DriverRepository) ListTransactions(ctx context.Context, key string, limit int) ([]*domain.Transaction, error) {
	if _, err := r.GetByKey(ctx, key); err != nil {
		return nil, err
	}

	query := `
		SELECT id, driver_key, kind, amount, COALESCE(external_order_id, ''), description, created_at
		FROM (
			SELECT * FROM wallet_transactions WHERE driver_key = $1
			ORDER BY seq DESC
			LIMIT NULLIF($2, 0)
		) recent
		ORDER BY seq ASC
	`

	rows, err := r.q.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.DriverKey, &t.Kind, &t.Amount, &t.ExternalOrderID, &t.Description, &t.Timestamp); err != nil {
			return nil, err
		}
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}

// hasOrder reports whether a committed transaction of the driver references the order.
// With kinds set, only those kinds are considered.
func (r *DriverRepository) hasOrder(ctx context.Context, key, externalOrderID string, kinds []domain.TransactionKind) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE driver_key = $1 AND external_order_id = $2)`
	args := []any{key, externalOrderID}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		query = `SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE driver_key = $1 AND external_order_id = $2 AND kind = ANY($3))`
		args = append(args, pq.Array(names))
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// updateState persists everything a driver transaction may change.
func (r *DriverRepository) updateState(ctx context.Context, driver domain.Driver) error {
	application, err := json.Marshal(driver.Application)
	if err != nil {
		return fmt.Errorf("encode application: %w", err)
	}

	query := `
		UPDATE drivers SET
			full_name = $2, phone = $3, application_status = $4, operational_status = $5,
			current_balance = $6, external_dispatch_id = $7, pro_level = $8, pro_points = $9,
			application = $10, application_submitted_at = $11, approved_at = $12
		WHERE key = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		driver.Key,
		driver.FullName,
		driver.Phone,
		driver.ApplicationStatus,
		driver.OperationalStatus,
		driver.Wallet.CurrentBalance,
		nullString(driver.ExternalDispatchID),
		driver.ProStatus.Level,
		driver.ProStatus.Points,
		application,
		nullTime(driver.ApplicationSubmittedAt),
		nullTime(driver.ApprovedAt),
	)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// insertTransaction appends a ledger entry.
func (r *DriverRepository) insertTransaction(ctx context.Context, t domain.Transaction) error {
	query := `
		INSERT INTO wallet_transactions (id, driver_key, kind, amount, external_order_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		t.ID,
		t.DriverKey,
		t.Kind,
		t.Amount,
		nullString(t.ExternalOrderID),
		t.Description,
		t.Timestamp,
	)
	return mapError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var (
		driver      domain.Driver
		externalID  sql.NullString
		application []byte
		submittedAt sql.NullTime
		approvedAt  sql.NullTime
	)

	err := row.Scan(
		&driver.Key,
		&driver.UID,
		&driver.FullName,
		&driver.Phone,
		&driver.ApplicationStatus,
		&driver.OperationalStatus,
		&driver.Wallet.CurrentBalance,
		&driver.Wallet.DebtLimit,
		&externalID,
		&driver.ProStatus.Level,
		&driver.ProStatus.Points,
		&application,
		&driver.CreatedAt,
		&submittedAt,
		&approvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if len(application) > 0 {
		if err := json.Unmarshal(application, &driver.Application); err != nil {
			return nil, fmt.Errorf("decode application: %w", err)
		}
	}
	driver.ExternalDispatchID = externalID.String
	driver.ApplicationSubmittedAt = submittedAt.Time
	driver.ApprovedAt = approvedAt.Time

	return &driver, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
