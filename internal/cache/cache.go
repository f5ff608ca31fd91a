// Package cache memoizes dataset-region selections behind Redis: applying
// the same DataElement predicate against the same dataset is common across
// repeated queries, and a region selection re-encodes to a small byte
// string, so caching the encoded form avoids a full element scan on a
// cache hit. Adapted from the teacher's go-redis client.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contdb/queryview/internal/ref"
)

// ErrMiss is returned by GetRegionSelection when the key is absent.
var ErrMiss = errors.New("cache: miss")

// RegionCache wraps a go-redis client scoped to region-selection memoization.
type RegionCache struct {
	client *redis.Client
}

// New creates a RegionCache from a redis:// URL, e.g.
// "redis://localhost:6379" or "redis://:password@host:6379/0".
func New(ctx context.Context, url string) (*RegionCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return &RegionCache{client: client}, nil
}

// Close releases the underlying connection.
func (c *RegionCache) Close() error { return c.client.Close() }

// Ping verifies connectivity.
func (c *RegionCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// RegionKey builds the cache key for a (container, dataset path, predicate
// fingerprint) triple. Callers that want cache hits across repeated
// queries must pass a stable fingerprint of the evaluated predicate (e.g. a
// hash of its encoded form).
func RegionKey(containerName, objectPath, predicateFingerprint string) string {
	return strings.Join([]string{"queryview", "region", containerName, objectPath, predicateFingerprint}, ":")
}

// PutRegionSelection stores the encoded form of a region selection with the
// given TTL.
func (c *RegionCache) PutRegionSelection(ctx context.Context, key string, sel *ref.RegionSelection, ttl time.Duration) error {
	data, err := sel.MarshalBinary()
	if err != nil {
		return fmt.Errorf("cache: marshal region selection: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %q: %w", key, err)
	}
	return nil
}

// GetRegionSelection fetches and decodes a previously cached selection.
// Returns ErrMiss if the key is absent.
func (c *RegionCache) GetRegionSelection(ctx context.Context, key string) (*ref.RegionSelection, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %q: %w", key, err)
	}
	return ref.UnmarshalRegionSelection(data)
}

// Invalidate removes a cached region selection, used when the underlying
// dataset has been rewritten.
func (c *RegionCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}
