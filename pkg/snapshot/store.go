// Package snapshot persists exported engine snapshots.
//
// A Store is a byte-oriented key-value backend with optional expiry; the
// package layers snapshot encoding on top so hosts can park a collection's
// state (file for CLI usage, Redis for shared hosts) and restore it later.
package snapshot

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for snapshot storage.
var (
	// ErrNotFound is returned when a requested snapshot does not exist.
	ErrNotFound = errors.New("snapshot not found")
)

// Store is a pluggable persistence backend.
type Store interface {
	// Get retrieves raw bytes for a key. The second return is false on a
	// miss; expired entries count as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores raw bytes under a key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
