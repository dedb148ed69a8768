// Package cache is the small key/value and broadcast layer shared by the
// session gate and the weather client.
//
// Two implementations exist: Memory for a single process (and tests) and
// Redis when several server processes must agree on invalidations.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values with a time-to-live.
// Get reports a miss with ok == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Broadcaster fans a message out to every subscriber of a channel, in this
// process and (for Redis) in every other process.
type Broadcaster interface {
	Publish(ctx context.Context, channel, message string) error
	// Subscribe calls fn for each message until stop is called.
	Subscribe(ctx context.Context, channel string, fn func(message string)) (stop func())
}

// Store is both; every implementation in this package satisfies it.
type Store interface {
	Cache
	Broadcaster
	Close() error
}
