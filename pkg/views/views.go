// Package views provides named, persistent view presets.
//
// A view captures the user-adjustable knobs of a collection (filter value,
// sort order, page size) under a name so it can be reapplied later or shared
// between hosts. Views are stored as TOML files in a config directory, one
// file per view.
package views

import (
	"time"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/features/filter"
	"github.com/rowkit/rowkit/pkg/features/paginate"
	"github.com/rowkit/rowkit/pkg/features/sortby"
)

// View is one saved preset.
type View struct {
	Name        string              `toml:"name"`
	Description string              `toml:"description,omitempty"`
	Filter      any                 `toml:"filter,omitempty"`
	Sort        []sortby.Descriptor `toml:"sort,omitempty"`
	PageSize    int                 `toml:"page_size,omitempty"`
	CreatedAt   time.Time           `toml:"created_at"`
	UpdatedAt   time.Time           `toml:"updated_at"`
}

// Capture builds a view from the engine's current feature state. Features
// that are not registered contribute their zero value.
func Capture(c *engine.Context, name, description string) View {
	now := time.Now()
	v := View{Name: name, Description: description, CreatedAt: now, UpdatedAt: now}

	if api, ok := c.Feature(filter.FeatureID); ok {
		v.Filter = api.(*filter.API).Value()
	}
	if api, ok := c.Feature(sortby.FeatureID); ok {
		v.Sort = api.(*sortby.API).Current()
	}
	if api, ok := c.Feature(paginate.FeatureID); ok {
		v.PageSize = api.(*paginate.API).Current().PageSize
	}
	return v
}

// Apply pushes a view's settings into the engine. Settings whose feature is
// not registered are skipped.
func Apply(c *engine.Context, v View) {
	if api, ok := c.Feature(filter.FeatureID); ok {
		api.(*filter.API).Set(v.Filter)
	}
	if api, ok := c.Feature(sortby.FeatureID); ok {
		api.(*sortby.API).Set(v.Sort)
	}
	if v.PageSize > 0 {
		if api, ok := c.Feature(paginate.FeatureID); ok {
			api.(*paginate.API).SetPageSize(v.PageSize)
		}
	}
}
