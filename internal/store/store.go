// Package store provides the key-value storage surface shared by the user
// registry and the OAuth exchange. Keys are plain strings; values are opaque
// strings (JSON where the caller needs structure). Every operation is atomic
// per key, nothing is transactional across keys.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and GetDel when the key does not exist or
// has expired. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("store: key not found")

// Store is the contract both backends implement.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes a value with no expiry.
	Set(ctx context.Context, key, value string) error

	// SetEx writes a value that expires after ttl. A second SetEx for the
	// same key overwrites both value and expiry.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel atomically reads and removes a key. Exactly one concurrent
	// caller observes the value, all others get ErrNotFound.
	GetDel(ctx context.Context, key string) (string, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan returns up to count keys matching prefix starting from cursor.
	// A returned cursor of "" means the scan is complete.
	Scan(ctx context.Context, prefix, cursor string, count int64) ([]string, string, error)

	// Incr atomically increments a counter key, creating it at zero first.
	Incr(ctx context.Context, key string) (int64, error)

	// Decr atomically decrements a counter key, creating it at zero first.
	Decr(ctx context.Context, key string) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
