package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rowkit/rowkit/pkg/export"
)

// Save encodes a snapshot and stores it under key.
func Save(ctx context.Context, store Store, key string, snap export.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store snapshot %s: %w", key, err)
	}
	return nil
}

// Load retrieves and decodes the snapshot stored under key.
// Returns ErrNotFound on a miss.
func Load(ctx context.Context, store Store, key string) (export.Snapshot, error) {
	data, ok, err := store.Get(ctx, key)
	if err != nil {
		return export.Snapshot{}, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if !ok {
		return export.Snapshot{}, fmt.Errorf("snapshot %s: %w", key, ErrNotFound)
	}

	var snap export.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return export.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}
