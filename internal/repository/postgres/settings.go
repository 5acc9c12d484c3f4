package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// SettingsRepository is a PostgreSQL implementation of repository.SettingsRepository.
// The singleton lives in the row with id = 1.
type SettingsRepository struct {
	q Querier
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{q: db}
}

// Get retrieves the current settings.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.OperationalSettings, error) {
	query := `
		SELECT base_commission, rain_fee_active, rain_fee_amount, incentives, version, updated_at
		FROM operational_settings WHERE id = 1
	`

	var (
		settings   domain.OperationalSettings
		incentives []byte
	)
	err := r.q.QueryRowContext(ctx, query).Scan(
		&settings.BaseCommission,
		&settings.RainFee.Active,
		&settings.RainFee.Amount,
		&incentives,
		&settings.Version,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(incentives, &settings.Incentives); err != nil {
		return nil, fmt.Errorf("decode incentives: %w", err)
	}

	return &settings, nil
}

// Save stores settings guarded by the expected version.
func (r *SettingsRepository) Save(ctx context.Context, settings *domain.OperationalSettings, expectedVersion int64) error {
	incentives := settings.Incentives
	if incentives == nil {
		incentives = []domain.Incentive{}
	}
	encoded, err := json.Marshal(incentives)
	if err != nil {
		return fmt.Errorf("encode incentives: %w", err)
	}

	now := time.Now().UTC()
	var query string
	if expectedVersion == 0 {
		query = `
			INSERT INTO operational_settings (id, base_commission, rain_fee_active, rain_fee_amount, incentives, version, updated_at)
			VALUES (1, $1, $2, $3, $4, $5 + 1, $6)
			ON CONFLICT (id) DO NOTHING
		`
	} else {
		query = `
			UPDATE operational_settings SET
				base_commission = $1, rain_fee_active = $2, rain_fee_amount = $3,
				incentives = $4, version = $5 + 1, updated_at = $6
			WHERE id = 1 AND version = $5
		`
	}

	result, err := r.q.ExecContext(ctx, query,
		settings.BaseCommission,
		settings.RainFee.Active,
		settings.RainFee.Amount,
		encoded,
		expectedVersion,
		now,
	)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	settings.Version = expectedVersion + 1
	settings.UpdatedAt = now
	return nil
}
