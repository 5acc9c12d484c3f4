package redis

import (
	"context"
	"time"

	"fleet/internal/domain"
)

// LockStoreInterface guards driver approvals against concurrent admins.
type LockStoreInterface interface {
	AcquireApprovalLock(ctx context.Context, driverKey string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseApprovalLock(ctx context.Context, driverKey, token string) error
}

// SettingsCacheInterface caches the operational settings singleton.
// Get returns (nil, nil) on a cache miss. Set reports false when the settings
// are older than the last invalidated version.
type SettingsCacheInterface interface {
	Get(ctx context.Context) (*domain.OperationalSettings, error)
	Set(ctx context.Context, settings *domain.OperationalSettings) (bool, error)
	Invalidate(ctx context.Context, version int64) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface     = (*LockStore)(nil)
	_ SettingsCacheInterface = (*SettingsCache)(nil)
)
