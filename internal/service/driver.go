package service

import (
	"context"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// DriverService serves the admin console's read models.
type DriverService struct {
	driverRepo repository.DriverRepository
}

// NewDriverService creates a new DriverService.
func NewDriverService(driverRepo repository.DriverRepository) *DriverService {
	return &DriverService{driverRepo: driverRepo}
}

// ListDrivers returns drivers, optionally filtered by operational status.
func (s *DriverService) ListDrivers(ctx context.Context, actor domain.Principal, status domain.OperationalStatus) ([]*domain.Driver, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.driverRepo.List(ctx, status)
}

// GetDriver returns a single driver.
func (s *DriverService) GetDriver(ctx context.Context, actor domain.Principal, driverKey string) (*domain.Driver, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(driverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}

	driver, err := s.driverRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return driver, nil
}

// GetTransactions returns a driver's ledger in commit order.
// A positive limit keeps only the most recent entries.
func (s *DriverService) GetTransactions(ctx context.Context, actor domain.Principal, driverKey string, limit int) ([]*domain.Transaction, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(driverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}

	if _, err := s.driverRepo.GetByKey(ctx, key); err != nil {
		return nil, mapStoreError(err)
	}
	return s.driverRepo.ListTransactions(ctx, key, limit)
}
