// Package local persists small client-side values (the auth session) between runs.
package local

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("key not found")

type Storage interface {
	// Get returns ErrNotFound when nothing is stored at key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op when nothing is stored at key.
	Delete(ctx context.Context, key string) error
}
