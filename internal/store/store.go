// Package store provides the keyed store behind runtime overrides, call
// sessions and recorded orders. A Redis URL selects the Redis backend;
// without one an in-process store keeps development and tests self-contained.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: not found")

// KV is the store surface the rest of the service depends on. String values
// carry JSON documents; the hash operations back the order index.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open selects the backend for the given URL. An empty URL yields the
// in-process store. Connections are established lazily, so a reachable
// server is not required at startup; callers can probe with Ping.
func Open(url string) (KV, error) {
	if url == "" {
		return NewMemory(), nil
	}
	return OpenRedis(url)
}
