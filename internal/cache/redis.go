// Package cache stores license entitlements fetched from the license
// provider in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openstatushq/entitlements/internal/license"
)

// KeyPrefix namespaces every key written by RedisCache.
const KeyPrefix = "entitlements:license:"

// RedisCache implements license.EntitlementCache on Redis. Entries expire
// after TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

var _ license.EntitlementCache = (*RedisCache)(nil)

// New connects to the Redis server at url and pings it.
func New(ctx context.Context, url string, ttl time.Duration, logger zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     []string{opts.Addr},
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewWithClient(client, ttl, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "entitlement_cache").Logger(),
	}
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func cacheKey(licenseID string) string {
	return KeyPrefix + licenseID
}

// Get returns the cached entitlements of a license. A corrupt entry is
// deleted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, licenseID string) ([]license.RawEntitlement, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(licenseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached entitlements: %w", err)
	}

	var records []license.RawEntitlement
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn().Err(err).Str("license_id", licenseID).Msg("dropping corrupt cache entry")
		_ = c.client.Del(ctx, cacheKey(licenseID)).Err()
		return nil, false, nil
	}
	return records, true, nil
}

// Set caches the entitlements of a license for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, licenseID string, records []license.RawEntitlement) error {
	if records == nil {
		records = []license.RawEntitlement{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal entitlements: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(licenseID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached entitlements: %w", err)
	}
	return nil
}

// Invalidate drops the cached entitlements of a license.
func (c *RedisCache) Invalidate(ctx context.Context, licenseID string) error {
	if err := c.client.Del(ctx, cacheKey(licenseID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached entitlements: %w", err)
	}
	c.logger.Debug().Str("license_id", licenseID).Msg("invalidated cached entitlements")
	return nil
}

// InvalidateAll drops every cached license.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan cached entitlements: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("invalidate cached entitlements: %w", err)
			}
			deleted += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.logger.Debug().Int("keys", deleted).Msg("invalidated all cached entitlements")
	return nil
}
