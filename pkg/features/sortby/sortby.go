// Package sortby provides the standard sorting feature.
//
// Sorting is a pure, stable reorder of the visible rows driven by an ordered
// list of sort descriptors. Ties under the first descriptor fall through to
// the next; rows equal under all descriptors keep their incoming order. By
// convention the sort step runs after filtering and before pagination.
package sortby

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/slots"
	"github.com/rowkit/rowkit/pkg/state"
)

// FeatureID is the id the feature registers under and the key of its state
// slice in the feature bag.
const FeatureID = "sortby"

// Direction orders a field ascending or descending.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Descriptor names one field to sort by and its direction.
type Descriptor struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// State is the sort feature's state slice. An empty descriptor list leaves
// rows in source order.
type State struct {
	Descriptors []Descriptor `json:"descriptors"`
}

// CloneState returns a copy with its own descriptor slice.
func (s State) CloneState() any {
	s.Descriptors = slices.Clone(s.Descriptors)
	return s
}

// CompareFunc compares two field values, returning a negative number when a
// orders before b, zero when equal, positive otherwise. Descending direction
// is handled by the feature; comparators always express ascending order.
type CompareFunc func(field string, a, b any) int

// ApplyFunc replaces the whole sort step: it receives the current descriptor
// list and returns the reordered rows. The input slice must not be reordered
// in place. Direction handling is the function's own responsibility.
type ApplyFunc func(c *engine.Context, descriptors []Descriptor, rows state.Rows) state.Rows

// Config configures the sort feature.
type Config struct {
	// Apply replaces the comparator-based sort entirely, for sources whose
	// ordering cannot be expressed pairwise. When set, Compare is ignored.
	Apply ApplyFunc
	// Compare overrides value comparison for all fields. Nil uses
	// DefaultCompare.
	Compare CompareFunc
	// Initial is the starting descriptor list.
	Initial []Descriptor
	// UI optionally overrides the default UI contract.
	UI *engine.UIContract
}

// New creates the sort feature declaration. The feature runs after the
// filter step when both are registered.
func New(cfg Config) engine.Feature {
	compare := cfg.Compare
	if compare == nil {
		compare = DefaultCompare
	}

	ui := cfg.UI
	if ui == nil {
		ui = &engine.UIContract{
			Slots:            []string{slots.SortBar, slots.Table},
			RequiredHandlers: []string{"Set", "Toggle", "Clear", "Current"},
		}
	}

	return engine.Feature{
		ID:    FeatureID,
		After: []string{"filter"},
		Create: func(c *engine.Context) (any, error) {
			api := &API{c: c}
			if len(cfg.Initial) > 0 {
				api.Set(slices.Clone(cfg.Initial))
			}
			return api, nil
		},
		Derive: func(c *engine.Context, rows state.Rows) state.Rows {
			cur := engine.FeatureState(c, FeatureID, func() State { return State{} })
			if len(cur.Descriptors) == 0 {
				return rows
			}
			if cfg.Apply != nil {
				return cfg.Apply(c, slices.Clone(cur.Descriptors), rows)
			}
			return Sort(rows, cur.Descriptors, compare)
		},
		UI: ui,
	}
}

// Sort returns a stably sorted copy of rows. The input is never reordered.
func Sort(rows state.Rows, descriptors []Descriptor, compare CompareFunc) state.Rows {
	out := make(state.Rows, len(rows))
	copy(out, rows)
	slices.SortStableFunc(out, func(a, b state.Row) int {
		for _, d := range descriptors {
			c := compare(d.Field, a[d.Field], b[d.Field])
			if d.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return out
}

// DefaultCompare orders numbers numerically, strings and bools by their
// natural order, and everything else by formatted text. Nil sorts first.
func DefaultCompare(_ string, a, b any) int {
	if a == nil || b == nil {
		return boolToCmp(a != nil) - boolToCmp(b != nil)
	}

	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return cmp.Compare(af, bf)
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return cmp.Compare(as, bs)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return boolToCmp(ab) - boolToCmp(bb)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func boolToCmp(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// API is the sort feature's public surface, published under FeatureID in the
// shared namespace.
type API struct {
	c *engine.Context
}

// Set replaces the descriptor list and triggers a recompute.
func (a *API) Set(descriptors []Descriptor) {
	engine.UpdateFeatureState(a.c, FeatureID,
		func() State { return State{} },
		func(State) State { return State{Descriptors: slices.Clone(descriptors)} })
}

// Toggle cycles a field through asc -> desc -> unsorted. Toggling a field
// not currently sorted replaces the whole list with that field ascending.
func (a *API) Toggle(field string) {
	engine.UpdateFeatureState(a.c, FeatureID,
		func() State { return State{} },
		func(s State) State {
			if len(s.Descriptors) == 1 && s.Descriptors[0].Field == field {
				if s.Descriptors[0].Direction == Asc {
					return State{Descriptors: []Descriptor{{Field: field, Direction: Desc}}}
				}
				return State{}
			}
			return State{Descriptors: []Descriptor{{Field: field, Direction: Asc}}}
		})
}

// Clear removes all sort descriptors, restoring source order.
func (a *API) Clear() {
	a.Set(nil)
}

// Current returns the active descriptor list.
func (a *API) Current() []Descriptor {
	return slices.Clone(engine.FeatureState(a.c, FeatureID, func() State { return State{} }).Descriptors)
}
