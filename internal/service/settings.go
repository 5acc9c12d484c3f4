package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fleet/internal/domain"
	"fleet/internal/redis"
	"fleet/internal/repository"
)

// maxSettingsRetries bounds optimistic retries when two admins update settings at once.
const maxSettingsRetries = 3

// SettingsService reads and updates the global operational settings.
// Reads go through the cache when one is configured; every update invalidates it.
type SettingsService struct {
	repo           repository.SettingsRepository
	cache          redis.SettingsCacheInterface
	baseCommission decimal.Decimal
	logger         *slog.Logger
}

// NewSettingsService creates a new SettingsService. cache may be nil.
// baseCommission is used until an admin stores settings.
func NewSettingsService(
	repo repository.SettingsRepository,
	cache redis.SettingsCacheInterface,
	baseCommission decimal.Decimal,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		repo:           repo,
		cache:          cache,
		baseCommission: baseCommission,
		logger:         logger,
	}
}

// Current returns the settings in force for an operation.
func (s *SettingsService) Current(ctx context.Context) (domain.OperationalSettings, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("settings cache read failed", "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	stored, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := domain.DefaultSettings()
		defaults.BaseCommission = s.baseCommission
		return defaults, nil
	}
	if err != nil {
		return domain.OperationalSettings{}, err
	}

	if s.cache != nil {
		cached, err := s.cache.Set(ctx, stored)
		if err != nil {
			s.logger.Warn("settings cache write failed", "error", err)
		} else if !cached {
			s.logger.Debug("stale settings not cached", "version", stored.Version)
		}
	}
	return *stored, nil
}

// Get returns the settings to an admin.
func (s *SettingsService) Get(ctx context.Context, actor domain.Principal) (domain.OperationalSettings, error) {
	if err := RequireAdmin(actor); err != nil {
		return domain.OperationalSettings{}, err
	}
	return s.Current(ctx)
}

// Update merges patch into the stored settings. Concurrent updates are retried
// against the latest version; the cache is invalidated after a successful save.
func (s *SettingsService) Update(ctx context.Context, actor domain.Principal, patch domain.SettingsPatch) (*domain.OperationalSettings, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxSettingsRetries; attempt++ {
		current, version, err := s.load(ctx)
		if err != nil {
			return nil, err
		}

		merged := patch.Apply(current)
		err = s.repo.Save(ctx, &merged, version)
		if errors.Is(err, repository.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidate(ctx, merged.Version)
		s.logger.Info("operational settings updated",
			"actor", actor.Subject,
			"version", merged.Version,
			"base_commission", merged.BaseCommission.StringFixed(2),
			"rain_fee_active", merged.RainFee.Active,
		)
		return &merged, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrConcurrencyConflict, lastErr)
}

// load reads the stored settings bypassing the cache.
func (s *SettingsService) load(ctx context.Context) (domain.OperationalSettings, int64, error) {
	stored, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := domain.DefaultSettings()
		defaults.BaseCommission = s.baseCommission
		return defaults, 0, nil
	}
	if err != nil {
		return domain.OperationalSettings{}, 0, err
	}
	return *stored, stored.Version, nil
}

func (s *SettingsService) invalidate(ctx context.Context, version int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, version); err != nil {
		s.logger.Error("settings cache invalidation failed", "error", err)
	}
}

func validatePatch(p *domain.SettingsPatch) error {
	if p.BaseCommission != nil {
		if p.BaseCommission.IsNegative() {
			return fmt.Errorf("%w: base commission must not be negative", ErrInvalidSettings)
		}
		if !domain.IsCents(*p.BaseCommission) {
			return fmt.Errorf("%w: base commission has more than two decimal places", ErrInvalidSettings)
		}
	}
	if p.RainFee != nil {
		if p.RainFee.Amount.IsNegative() {
			return fmt.Errorf("%w: rain fee must not be negative", ErrInvalidSettings)
		}
		if !domain.IsCents(p.RainFee.Amount) {
			return fmt.Errorf("%w: rain fee has more than two decimal places", ErrInvalidSettings)
		}
	}
	if p.Incentives != nil {
		seen := make(map[string]bool, len(*p.Incentives))
		for i := range *p.Incentives {
			inc := &(*p.Incentives)[i]
			if inc.Description == "" {
				return fmt.Errorf("%w: incentive description is required", ErrInvalidSettings)
			}
			if !inc.Amount.IsPositive() {
				return fmt.Errorf("%w: incentive amount must be positive", ErrInvalidSettings)
			}
			if !domain.IsCents(inc.Amount) {
				return fmt.Errorf("%w: incentive amount has more than two decimal places", ErrInvalidSettings)
			}
			if inc.ID == "" {
				inc.ID = uuid.New().String()
			}
			if seen[inc.ID] {
				return fmt.Errorf("%w: duplicate incentive id %s", ErrInvalidSettings, inc.ID)
			}
			seen[inc.ID] = true
		}
	}
	return nil
}
