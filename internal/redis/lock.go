package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries the caller's token,
// so an approval that outlived its TTL cannot free a lock taken by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore serializes approvals of the same driver across instances.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func approvalLockKey(driverKey string) string {
	return "lock:approval:" + driverKey
}

// AcquireApprovalLock takes the approval lock for driverKey. ok is false when
// another approval holds it. The returned token is needed to release it.
func (s *LockStore) AcquireApprovalLock(ctx context.Context, driverKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, approvalLockKey(driverKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseApprovalLock frees the lock if token still owns it.
func (s *LockStore) ReleaseApprovalLock(ctx context.Context, driverKey, token string) error {
	return releaseScript.Run(ctx, s.client, []string{approvalLockKey(driverKey)}, token).Err()
}
