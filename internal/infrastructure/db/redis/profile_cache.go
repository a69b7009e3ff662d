package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clientportal/client-service/internal/core/domain"
)

const (
	defaultProfileTTL = 10 * time.Minute
	// tombstoneTTL must outlast the gap between a store read and the cache
	// write that follows it.
	tombstoneTTL = 30 * time.Second
)

// setUnlessGone writes KEYS[1] only while no tombstone KEYS[2] exists.
var setUnlessGone = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// ProfileCache keeps public client profiles in Redis.
// Key format: client:profile:<id>, tombstone client:profile:<id>:gone
// Only PublicProfile values are stored, so no digest ever reaches the cache.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a ProfileCache. A non-positive ttl selects the default.
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns the cached profile and whether it was present.
func (c *ProfileCache) Get(ctx context.Context, id string) (*domain.PublicProfile, bool, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profile cache get: %w", err)
	}

	var p domain.PublicProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.client.Del(ctx, key(id)).Err()
		return nil, false, nil
	}
	return &p, true, nil
}

// Set stores the profile until the TTL expires. It is a no-op while a recent
// Invalidate's tombstone is present, since p may predate that change.
func (c *ProfileCache) Set(ctx context.Context, p domain.PublicProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile cache encode: %w", err)
	}
	keys := []string{key(p.ID), tombstoneKey(p.ID)}
	if err := setUnlessGone.Run(ctx, c.client, keys, raw, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("profile cache set: %w", err)
	}
	return nil
}

// Invalidate removes the cached profile and leaves a short-lived tombstone
// that stops a concurrent reader from restoring the old value.
func (c *ProfileCache) Invalidate(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(id))
		pipe.Set(ctx, tombstoneKey(id), 1, tombstoneTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("profile cache invalidate: %w", err)
	}
	return nil
}

func key(id string) string {
	return "client:profile:" + id
}

func tombstoneKey(id string) string {
	return key(id) + ":gone"
}
