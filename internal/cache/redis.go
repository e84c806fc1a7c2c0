package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keys
const (
	DialerMappingKeyFmt = "dialer:mapping:%s"
	DialerActiveKey     = "settings:dialer_active"
)

var client *redis.Client

// Init initializes the Redis connection. On failure the package stays in
// no-op mode and every lookup misses.
func Init(addr, password string) error {
	client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// SetClient swaps the client, used by tests and the CLI
func SetClient(c *redis.Client) {
	client = c
}

// ============================================
// Dialer Mapping Cache
// ============================================

// GetCachedMapping returns the principal id mapped to an external dialer user
func GetCachedMapping(ctx context.Context, externalUserID string) (int, bool) {
	if client == nil {
		return 0, false
	}
	id, err := client.Get(ctx, fmt.Sprintf(DialerMappingKeyFmt, externalUserID)).Int()
	if err != nil {
		return 0, false
	}
	return id, true
}

// CacheMapping caches a mapping for 10 minutes
func CacheMapping(ctx context.Context, externalUserID string, principalID int) {
	if client == nil {
		return
	}
	client.Set(ctx, fmt.Sprintf(DialerMappingKeyFmt, externalUserID), principalID, 10*time.Minute)
}

// InvalidateMapping drops one mapping, called on upsert and delete
func InvalidateMapping(ctx context.Context, externalUserID string) {
	InvalidateKeys(ctx, fmt.Sprintf(DialerMappingKeyFmt, externalUserID))
}

// ============================================
// Dialer Active Flag
// ============================================

// GetCachedDialerActive returns (active, hit)
func GetCachedDialerActive(ctx context.Context) (bool, bool) {
	if client == nil {
		return false, false
	}
	val, err := client.Get(ctx, DialerActiveKey).Result()
	if err != nil {
		return false, false
	}
	active, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return active, true
}

// CacheDialerActive caches the flag for 1 minute
func CacheDialerActive(ctx context.Context, active bool) {
	if client == nil {
		return
	}
	client.Set(ctx, DialerActiveKey, strconv.FormatBool(active), time.Minute)
}

// ============================================
// Generic Cache Functions
// ============================================

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	keys, err := client.Keys(ctx, pattern).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateKeys removes specific cache keys
func InvalidateKeys(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// InvalidateDialerCaches clears every mapping and the active flag
// Called when: mappings are reseeded from the CLI
func InvalidateDialerCaches(ctx context.Context) {
	InvalidatePattern(ctx, "dialer:*")
	InvalidateKeys(ctx, DialerActiveKey)
}

// IsHealthy returns true if Redis connection is working
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}

// Close releases the connection pool on shutdown
func Close() {
	if client != nil {
		client.Close()
		client = nil
	}
}
