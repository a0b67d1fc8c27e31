// Package filter provides the standard filtering feature.
//
// The engine imposes no filter semantics: the feature stores an opaque
// filter value in its state slice and delegates row matching to a
// caller-supplied apply function. By convention the filter step runs first
// in the derive pipeline, before sorting and pagination.
package filter

import (
	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/slots"
	"github.com/rowkit/rowkit/pkg/state"
)

// FeatureID is the id the feature registers under and the key of its state
// slice in the feature bag.
const FeatureID = "filter"

// State is the filter feature's state slice.
type State struct {
	// Value is the opaque filter value; nil means no filter is active.
	Value any `json:"value"`
}

// ApplyFunc decides which rows match the current filter value. It must be
// pure: no mutation of the input rows, same output for same inputs.
type ApplyFunc func(c *engine.Context, value any, rows state.Rows) state.Rows

// Config configures the filter feature.
type Config struct {
	// Apply is the row-matching function. Required.
	Apply ApplyFunc
	// Initial is the starting filter value; nil means inactive.
	Initial any
	// UI optionally overrides the default UI contract.
	UI *engine.UIContract
}

// New creates the filter feature declaration.
func New(cfg Config) engine.Feature {
	ui := cfg.UI
	if ui == nil {
		ui = &engine.UIContract{
			Slots:            []string{slots.Filters},
			RequiredHandlers: []string{"Set", "Clear", "Value"},
		}
	}

	return engine.Feature{
		ID: FeatureID,
		Validate: func(engine.ValidateInfo) error {
			if cfg.Apply == nil {
				return errors.New(errors.ErrCodeInvalidConfig, "filter: Apply function is required")
			}
			return nil
		},
		Create: func(c *engine.Context) (any, error) {
			api := &API{c: c}
			if cfg.Initial != nil {
				api.Set(cfg.Initial)
			}
			return api, nil
		},
		Derive: func(c *engine.Context, rows state.Rows) state.Rows {
			cur := engine.FeatureState(c, FeatureID, func() State { return State{} })
			if cur.Value == nil {
				return rows
			}
			return cfg.Apply(c, cur.Value, rows)
		},
		UI: ui,
	}
}

// API is the filter feature's public surface, published under FeatureID in
// the shared namespace.
type API struct {
	c *engine.Context
}

// Set stores a new filter value and triggers a recompute.
func (a *API) Set(value any) {
	engine.UpdateFeatureState(a.c, FeatureID,
		func() State { return State{} },
		func(State) State { return State{Value: value} })
}

// Clear removes the active filter.
func (a *API) Clear() {
	a.Set(nil)
}

// Value returns the current filter value, or nil when inactive.
func (a *API) Value() any {
	return engine.FeatureState(a.c, FeatureID, func() State { return State{} }).Value
}

// Current returns the full state slice.
func (a *API) Current() State {
	return engine.FeatureState(a.c, FeatureID, func() State { return State{} })
}
