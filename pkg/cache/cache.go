// Package cache stores finished artifacts (encoded composite images) keyed
// by the bead fingerprint and render options.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON file per entry under a directory, for CLI use
//   - [RedisCache]: a shared Redis instance
//   - [NullCache]: stores nothing
//
// Keys come from a [Keyer]; [ScopedKeyer] adds a namespace prefix.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey is returned when Set is called with an empty key.
var ErrEmptyKey = errors.New("empty cache key")

// TTLArtifact is the default lifetime of a cached render.
const TTLArtifact = 7 * 24 * time.Hour

// Cache is a byte store with per-entry expiry. A ttl of 0 means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
