// Package source defines the data-source contract consumed by the rowkit
// engine, the incremental patch model, and an in-memory reference adapter.
//
// A data source delivers the raw row collection. The engine only requires
// Init; refresh, incremental patch streams, and teardown are optional
// capabilities discovered by type assertion:
//
//	if sub, ok := src.(source.Subscribable); ok {
//	    cancel := sub.Subscribe(onPatch)
//	    defer cancel()
//	}
//
// Backend adapters live in subpackages (redis, mongo); Memory in this
// package serves tests, demos, and hosts that already hold their rows.
package source

import (
	"context"

	"github.com/google/uuid"

	"github.com/rowkit/rowkit/pkg/state"
)

// Result is the outcome of a data-source load.
type Result struct {
	// Rows is the loaded collection.
	Rows state.Rows
	// TotalCount is the upstream total when known; 0 means "len(Rows)".
	TotalCount int
	// Status optionally overrides the post-load status (e.g. streaming).
	// Empty means the engine picks ready or streaming itself.
	Status state.Status
}

// DataSource delivers the raw row collection. Init is called once per load;
// it must not retain the returned rows.
type DataSource interface {
	Init(ctx context.Context) (Result, error)
}

// Subscribable is an optional data-source capability: a live patch stream.
// Patches must be delivered sequentially; the engine applies them strictly
// in arrival order.
type Subscribable interface {
	Subscribe(fn func(Patch)) (cancel func())
}

// Refresher is an optional data-source capability: a cheaper re-load.
// Sources without it are refreshed by calling Init again.
type Refresher interface {
	Refresh(ctx context.Context) (Result, error)
}

// Destroyer is an optional data-source capability: explicit teardown.
type Destroyer interface {
	Destroy(ctx context.Context) error
}

// Kind discriminates incremental patch types.
type Kind string

// Patch kinds.
const (
	// KindReplaceAll swaps the whole collection.
	KindReplaceAll Kind = "replaceAll"
	// KindAppend adds one row.
	KindAppend Kind = "append"
	// KindUpdate replaces the row matching the patch row's id.
	KindUpdate Kind = "update"
	// KindRemove deletes the row matching ID.
	KindRemove Kind = "remove"
)

// Patch is an incremental, typed mutation instruction for the raw rows.
type Patch struct {
	Kind Kind `json:"type"`
	// Rows carries the full collection for KindReplaceAll.
	Rows state.Rows `json:"rows,omitempty"`
	// Row carries the affected record for KindAppend and KindUpdate.
	Row state.Row `json:"row,omitempty"`
	// ID identifies the record for KindRemove.
	ID string `json:"id,omitempty"`
}

// Apply produces a new row collection with the patch applied, locating
// affected rows via idKey. The input is never mutated. Patches referencing
// rows that do not exist are no-ops (an update with no match changes
// nothing; removing an absent id changes nothing).
func Apply(rows state.Rows, p Patch, idKey string) state.Rows {
	switch p.Kind {
	case KindReplaceAll:
		out := make(state.Rows, len(p.Rows))
		copy(out, p.Rows)
		return out

	case KindAppend:
		out := make(state.Rows, len(rows), len(rows)+1)
		copy(out, rows)
		return append(out, p.Row)

	case KindUpdate:
		id := p.Row.ID(idKey)
		i := rows.IndexOf(idKey, id)
		if i < 0 {
			return rows
		}
		out := make(state.Rows, len(rows))
		copy(out, rows)
		out[i] = p.Row
		return out

	case KindRemove:
		i := rows.IndexOf(idKey, p.ID)
		if i < 0 {
			return rows
		}
		out := make(state.Rows, 0, len(rows)-1)
		out = append(out, rows[:i]...)
		return append(out, rows[i+1:]...)
	}
	return rows
}

// EnsureIDs returns a collection where every row carries a non-empty
// identity under idKey, assigning a fresh UUID where one is absent. Rows
// that already have an id are shared, not copied.
func EnsureIDs(rows state.Rows, idKey string) state.Rows {
	if idKey == "" {
		return rows
	}
	out := make(state.Rows, len(rows))
	for i, r := range rows {
		if r.ID(idKey) != "" {
			out[i] = r
			continue
		}
		withID := r.Clone()
		if withID == nil {
			withID = state.Row{}
		}
		withID[idKey] = uuid.NewString()
		out[i] = withID
	}
	return out
}
