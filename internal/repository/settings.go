package repository

import (
	"context"

	"fleet/internal/domain"
)

// SettingsRepository persists the global operational settings singleton.
type SettingsRepository interface {
	// Get retrieves the current settings. Returns ErrNotFound if none were ever saved.
	Get(ctx context.Context) (*domain.OperationalSettings, error)

	// Save stores settings if the stored version still equals expectedVersion,
	// then bumps the version. Returns ErrConflict otherwise.
	Save(ctx context.Context, settings *domain.OperationalSettings, expectedVersion int64) error
}
