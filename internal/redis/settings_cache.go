package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet/internal/domain"
)

const (
	settingsCacheKey = "cache:settings:global"

	// settingsFloorKey holds the newest version any update has invalidated.
	// Cache fills older than it are dropped.
	settingsFloorKey = "cache:settings:floor"
)

// setIfNotStale writes KEYS[1] unless KEYS[2] names a newer version than ARGV[2].
var setIfNotStale = redis.NewScript(`
local floor = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[2]) < floor then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// invalidateAt raises the floor to ARGV[1] and drops the cached settings.
var invalidateAt = redis.NewScript(`
local floor = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[1]) > floor then
	redis.call("SET", KEYS[2], ARGV[1])
end
redis.call("DEL", KEYS[1])
return 1
`)

// DefaultSettingsCacheTTL bounds staleness if an invalidation is ever lost.
const DefaultSettingsCacheTTL = 30 * time.Second

// SettingsCache stores the operational settings in Redis.
// The settings update path must call Invalidate after every successful write.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSettingsCache creates a new SettingsCache.
func NewSettingsCache(client *redis.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = DefaultSettingsCacheTTL
	}
	return &SettingsCache{client: client, ttl: ttl}
}

// Get retrieves the settings from cache.
func (c *SettingsCache) Get(ctx context.Context) (*domain.OperationalSettings, error) {
	data, err := c.client.Get(ctx, settingsCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var settings domain.OperationalSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Set stores the settings in cache. A read that raced an update carries an
// older version than the last invalidation and is not stored.
func (c *SettingsCache) Set(ctx context.Context, settings *domain.OperationalSettings) (bool, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return false, err
	}
	stored, err := setIfNotStale.Run(ctx, c.client,
		[]string{settingsCacheKey, settingsFloorKey},
		data, settings.Version, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate removes the cached settings and rejects later fills older than version.
func (c *SettingsCache) Invalidate(ctx context.Context, version int64) error {
	return invalidateAt.Run(ctx, c.client, []string{settingsCacheKey, settingsFloorKey}, version).Err()
}
