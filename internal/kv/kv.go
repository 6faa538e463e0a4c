// Package kv is a small key-value layer used for the local-storage style
// repositories, per-session keys and the cross-process submit lock.
package kv

import (
	"context"
	"time"
)

// Store holds opaque byte values under string keys. Get returns
// common.ErrNotFound for missing keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Update applies fn to the current value atomically. cur is nil when the
	// key is absent.
	Update(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error
	// Acquire takes a best-effort lock that expires after ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
	Ping(ctx context.Context) error
}
