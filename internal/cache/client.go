// Package cache provides the short-TTL cache in front of the catalog provider.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss, including a stale entry.
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL is how long catalog responses stay fresh.
const DefaultTTL = 120 * time.Second

// Client defines the cache interface. Values are immutable byte snapshots; callers decode
// their own copy.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Key joins key parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
