// Package cache stores model responses keyed by prompt hash.
package cache

import (
	"context"
	"time"
)

// Store is a string key/value cache with per-entry TTL.
type Store interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}
