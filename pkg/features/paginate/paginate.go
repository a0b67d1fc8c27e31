// Package paginate provides the standard pagination feature.
//
// Pagination is the last derive step by convention: it slices the filtered,
// sorted rows down to the current page window and writes the resulting page
// metadata (total items, total pages, clamped page index) back into its own
// state slice so hosts can render pagers without recounting.
package paginate

import (
	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/slots"
	"github.com/rowkit/rowkit/pkg/state"
)

// FeatureID is the id the feature registers under and the key of its state
// slice in the feature bag.
const FeatureID = "paginate"

// State is the pagination feature's state slice. PageIndex is zero-based.
// TotalItems and TotalPages are derived metadata; writes to them by callers
// are overwritten on the next recompute.
type State struct {
	PageIndex  int `json:"pageIndex"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Config configures the pagination feature.
type Config struct {
	// PageSize is the initial page size. Zero or negative disables slicing:
	// every visible row is on the single page.
	PageSize int
	// UI optionally overrides the default UI contract.
	UI *engine.UIContract
}

// New creates the pagination feature declaration. The feature runs after
// filtering and sorting when those are registered.
func New(cfg Config) engine.Feature {
	ui := cfg.UI
	if ui == nil {
		ui = &engine.UIContract{
			Slots:            []string{slots.Pagination},
			RequiredHandlers: []string{"SetPage", "SetPageSize", "Next", "Prev", "Current"},
		}
	}

	initial := func() State { return State{PageSize: cfg.PageSize} }

	return engine.Feature{
		ID:    FeatureID,
		After: []string{"filter", "sortby"},
		Validate: func(engine.ValidateInfo) error {
			// Any page size is representable; nothing to reject.
			return nil
		},
		Create: func(c *engine.Context) (any, error) {
			return &API{c: c, initial: initial}, nil
		},
		Derive: func(c *engine.Context, rows state.Rows) state.Rows {
			cur := engine.FeatureState(c, FeatureID, initial)
			next := UpdateMeta(cur, len(rows))
			if next != cur {
				// Metadata writeback; the engine suppresses recompute
				// recursion while a derive pass is running.
				engine.UpdateFeatureState(c, FeatureID, initial, func(State) State { return next })
			}
			return Slice(rows, next)
		},
		UI: ui,
	}
}

// UpdateMeta recomputes the derived metadata for a total item count and
// clamps the page index into the valid range. It is pure.
func UpdateMeta(s State, totalItems int) State {
	s.TotalItems = totalItems
	if s.PageSize <= 0 {
		s.TotalPages = 1
		s.PageIndex = 0
		return s
	}

	s.TotalPages = (totalItems + s.PageSize - 1) / s.PageSize
	if s.TotalPages < 1 {
		s.TotalPages = 1
	}
	if s.PageIndex >= s.TotalPages {
		s.PageIndex = s.TotalPages - 1
	}
	if s.PageIndex < 0 {
		s.PageIndex = 0
	}
	return s
}

// Slice returns the rows of the current page. With slicing disabled it
// returns the input unchanged.
func Slice(rows state.Rows, s State) state.Rows {
	if s.PageSize <= 0 {
		return rows
	}
	start := s.PageIndex * s.PageSize
	if start >= len(rows) {
		return state.Rows{}
	}
	end := start + s.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// API is the pagination feature's public surface, published under FeatureID
// in the shared namespace.
type API struct {
	c       *engine.Context
	initial func() State
}

// SetPage moves to a zero-based page index. Out-of-range indexes are clamped
// on the next recompute. Negative indexes are rejected.
func (a *API) SetPage(index int) error {
	if index < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "page index %d is negative", index)
	}
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		s.PageIndex = index
		return s
	})
	return nil
}

// SetPageSize changes the page size and resets to the first page. Zero or
// negative disables slicing.
func (a *API) SetPageSize(size int) {
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		s.PageSize = size
		s.PageIndex = 0
		return s
	})
}

// Next advances one page, stopping at the last.
func (a *API) Next() {
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		if s.PageIndex+1 < s.TotalPages {
			s.PageIndex++
		}
		return s
	})
}

// Prev moves back one page, stopping at the first.
func (a *API) Prev() {
	engine.UpdateFeatureState(a.c, FeatureID, a.initial, func(s State) State {
		if s.PageIndex > 0 {
			s.PageIndex--
		}
		return s
	})
}

// Current returns the full state slice including derived metadata.
func (a *API) Current() State {
	return engine.FeatureState(a.c, FeatureID, a.initial)
}
