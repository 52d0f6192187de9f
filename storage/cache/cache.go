// Package cache holds the short lived counters & markers of the auth API:
// sign-in attempts per email and revoked session ids.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Incr increments the counter at key and returns its new value.
	// The ttl is set when the counter is created and never extended.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Set marks key as present for ttl.
	Set(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}
