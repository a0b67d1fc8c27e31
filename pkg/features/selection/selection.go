// Package selection provides the standard row-selection feature.
//
// Selection tracks row ids, not row indexes, so a selection survives
// filtering, sorting and live patches. It contributes no derive step: the
// visible rows are unaffected by what is selected. Ids of rows that have
// left the collection stay selected until explicitly cleared, which keeps a
// selection stable across transient filters.
package selection

import (
	"slices"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/slots"
)

// FeatureID is the id the feature registers under and the key of its state
// slice in the feature bag.
const FeatureID = "selection"

// Mode bounds how many rows may be selected at once.
type Mode string

// Selection modes.
const (
	// ModeNone disables selection; every mutating call is ignored.
	ModeNone Mode = "none"
	// ModeSingle keeps at most one selected row; selecting replaces.
	ModeSingle Mode = "single"
	// ModeMultiple allows any number of selected rows.
	ModeMultiple Mode = "multiple"
)

// State is the selection feature's state slice. SelectedIDs is ordered by
// selection time and free of duplicates.
type State struct {
	Mode        Mode     `json:"mode"`
	SelectedIDs []string `json:"selectedIds"`
}

// CloneState returns a copy with its own id slice, detaching exports from
// live state.
func (s State) CloneState() any {
	s.SelectedIDs = slices.Clone(s.SelectedIDs)
	return s
}

// Config configures the selection feature.
type Config struct {
	// Mode bounds the selection; empty defaults to ModeMultiple.
	Mode Mode
	// UI optionally overrides the default UI contract.
	UI *engine.UIContract
}

// New creates the selection feature declaration. Compilation fails with
// MISSING_ROW_ID_KEY when the engine has no row id key configured, since
// selection is meaningless without stable row identity.
func New(cfg Config) engine.Feature {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeMultiple
	}

	ui := cfg.UI
	if ui == nil {
		ui = &engine.UIContract{
			Slots:            []string{slots.Table, slots.Toolbar},
			RequiredHandlers: []string{"Toggle", "IsSelected", "Selected", "Clear"},
		}
	}

	initial := func() State { return State{Mode: mode} }

	return engine.Feature{
		ID: FeatureID,
		Validate: func(info engine.ValidateInfo) error {
			if info.Meta.RowIDKey == "" {
				return errors.New(errors.ErrCodeMissingRowIDKey,
					"selection requires a row id key")
			}
			switch mode {
			case ModeNone, ModeSingle, ModeMultiple:
				return nil
			}
			return errors.New(errors.ErrCodeInvalidConfig, "unknown selection mode %q", mode)
		},
		Create: func(c *engine.Context) (any, error) {
			return &API{c: c, mode: mode, initial: initial}, nil
		},
		UI: ui,
	}
}

// API is the selection feature's public surface, published under FeatureID
// in the shared namespace.
type API struct {
	c       *engine.Context
	mode    Mode
	initial func() State
}

// Select adds a row id to the selection. In single mode it replaces the
// current selection; selecting an already-selected id is a no-op.
func (a *API) Select(id string) {
	if a.mode == ModeNone {
		return
	}
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		if slices.Contains(s.SelectedIDs, id) {
			return s
		}
		if a.mode == ModeSingle {
			s.SelectedIDs = []string{id}
			return s
		}
		s.SelectedIDs = append(slices.Clone(s.SelectedIDs), id)
		return s
	})
}

// Deselect removes a row id from the selection.
func (a *API) Deselect(id string) {
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		i := slices.Index(s.SelectedIDs, id)
		if i < 0 {
			return s
		}
		s.SelectedIDs = slices.Delete(slices.Clone(s.SelectedIDs), i, i+1)
		return s
	})
}

// Toggle flips a row id in or out of the selection.
func (a *API) Toggle(id string) {
	if a.IsSelected(id) {
		a.Deselect(id)
		return
	}
	a.Select(id)
}

// SetSelected replaces the selection wholesale. Duplicates are dropped,
// first occurrence wins; single mode keeps only the first id.
func (a *API) SetSelected(ids []string) {
	if a.mode == ModeNone {
		return
	}
	deduped := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(deduped, id) {
			deduped = append(deduped, id)
		}
	}
	if a.mode == ModeSingle && len(deduped) > 1 {
		deduped = deduped[:1]
	}
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		s.SelectedIDs = deduped
		return s
	})
}

// SelectAllVisible selects every row currently visible after derivation. In
// single mode only the first visible row is selected.
func (a *API) SelectAllVisible() {
	rows := a.c.State().Rows
	a.SetSelected(rows.IDs(a.c.Meta().RowIDKey))
}

// Clear empties the selection.
func (a *API) Clear() {
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		s.SelectedIDs = nil
		return s
	})
}

// IsSelected reports whether a row id is in the selection.
func (a *API) IsSelected(id string) bool {
	return slices.Contains(a.current().SelectedIDs, id)
}

// Selected returns the selected ids in selection order.
func (a *API) Selected() []string {
	return slices.Clone(a.current().SelectedIDs)
}

// Count returns the number of selected rows.
func (a *API) Count() int {
	return len(a.current().SelectedIDs)
}

// Current returns the full state slice.
func (a *API) Current() State {
	return a.current()
}

func (a *API) current() State {
	return engine.FeatureState(a.c, FeatureID, a.initial)
}
