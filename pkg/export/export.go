// Package export captures engine state as a portable snapshot.
//
// A snapshot is a point-in-time, deep-copied view of a collection: the raw
// and visible rows plus the state slices of the standard features, flattened
// into a stable JSON shape. Snapshots feed debugging, SSR-style hydration,
// and the HTTP host's state endpoint.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/features/actions"
	"github.com/rowkit/rowkit/pkg/features/filter"
	"github.com/rowkit/rowkit/pkg/features/modal"
	"github.com/rowkit/rowkit/pkg/features/paginate"
	"github.com/rowkit/rowkit/pkg/features/selection"
	"github.com/rowkit/rowkit/pkg/features/sortby"
	"github.com/rowkit/rowkit/pkg/state"
)

// Snapshot is the exported view of one collection. Feature sections are nil
// when the corresponding feature is not registered. Extra carries the state
// slices of non-standard features keyed by feature id.
type Snapshot struct {
	Status      state.Status       `json:"status"`
	Error       string             `json:"error,omitempty"`
	RowsAll     state.Rows         `json:"rowsAll"`
	RowsVisible state.Rows         `json:"rowsVisible"`
	Filter      *filter.State      `json:"filter,omitempty"`
	Sort        *sortby.State      `json:"sort,omitempty"`
	Pagination  *paginate.State    `json:"pagination,omitempty"`
	Selection   *selection.State   `json:"selection,omitempty"`
	Modal       *modal.State       `json:"modal,omitempty"`
	Actions     *actions.State     `json:"actions,omitempty"`
	RowActions  *actions.State     `json:"rowActions,omitempty"`
	Extra       map[string]any     `json:"extra,omitempty"`
}

// Capture builds a snapshot from the engine's current state. The result
// shares nothing with live state: rows are cloned and feature slices are
// value copies.
func Capture(c *engine.Context) Snapshot {
	s := c.ExportState()

	snap := Snapshot{
		Status:      s.Status,
		RowsAll:     s.RawRows,
		RowsVisible: s.Rows,
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}

	for id, slice := range s.Features {
		switch v := slice.(type) {
		case filter.State:
			if id == filter.FeatureID {
				snap.Filter = &v
				continue
			}
		case sortby.State:
			if id == sortby.FeatureID {
				snap.Sort = &v
				continue
			}
		case paginate.State:
			if id == paginate.FeatureID {
				snap.Pagination = &v
				continue
			}
		case selection.State:
			if id == selection.FeatureID {
				snap.Selection = &v
				continue
			}
		case modal.State:
			if id == modal.FeatureID {
				snap.Modal = &v
				continue
			}
		case actions.State:
			switch id {
			case actions.GeneralFeatureID:
				snap.Actions = &v
				continue
			case actions.RowFeatureID:
				snap.RowActions = &v
				continue
			}
		}
		if snap.Extra == nil {
			snap.Extra = map[string]any{}
		}
		snap.Extra[id] = slice
	}
	return snap
}

// WriteJSON encodes a snapshot as indented JSON and writes it to w.
// The output can be re-read with [ReadJSON] for round-trip processing.
func WriteJSON(snap Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a snapshot to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(snap Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(snap, f)
}

// ReadJSON decodes a snapshot from r.
//
// Feature sections decode into their typed slices; unknown sections land in
// Extra as generic JSON values. ReadJSON does not close r.
func ReadJSON(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode: %w", err)
	}
	return snap, nil
}

// ImportJSON reads a JSON file at path and returns the decoded snapshot.
func ImportJSON(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
