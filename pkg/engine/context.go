package engine

import (
	"context"

	"github.com/rowkit/rowkit/pkg/state"
)

// Context is the stable collaboration surface passed to every feature.
//
// The Context value itself is never replaced for the lifetime of an engine;
// only the state behind it changes. Features hold on to the pointer handed
// to their Create hook and read fresh state through it on every call.
//
// All mutation goes through Update, which applies a copy-on-write updater to
// the backing store. Direct field writes on state snapshots are never
// observed by the engine.
type Context struct {
	store    *state.Store
	meta     Meta
	features map[string]any

	// refresh and afterUpdate are installed by the Engine once it exists.
	// Before that, Refresh is a no-op and updates do not trigger recompute.
	refresh     func(ctx context.Context) error
	afterUpdate func()
}

// NewContext creates the collaboration surface for one engine instance.
// The feature namespace starts empty and is filled in during compilation.
func NewContext(store *state.Store, meta Meta) *Context {
	return &Context{
		store:    store,
		meta:     meta,
		features: make(map[string]any),
	}
}

// State returns a snapshot of the current engine state.
// The snapshot must be treated as read-only.
func (c *Context) State() state.State {
	return c.store.Current()
}

// Update applies a copy-on-write updater to the engine state and notifies
// the engine so the derive pipeline re-runs against the new state.
// The updater receives its own clone and returns the next state.
func (c *Context) Update(fn func(state.State) state.State) {
	c.store.Update(fn)
	if c.afterUpdate != nil {
		c.afterUpdate()
	}
}

// Refresh asks the host to re-run the data-source load. It is a no-op until
// an Engine has been bound to this context.
func (c *Context) Refresh(ctx context.Context) error {
	if c.refresh == nil {
		return nil
	}
	return c.refresh(ctx)
}

// Feature returns the API object published under the given feature id.
// Consumers should defensively check for the methods they need; the
// namespace carries no static contract.
func (c *Context) Feature(id string) (any, bool) {
	api, ok := c.features[id]
	return api, ok
}

// Features returns the shared API namespace. The map identity is stable:
// it is the same object the compiled plan and the runtime expose. It is
// filled once at compile time and must not be modified afterwards.
func (c *Context) Features() map[string]any {
	return c.features
}

// Meta returns the read-only engine metadata.
func (c *Context) Meta() Meta {
	return c.meta
}

// StateCloner is implemented by feature state slices that hold internal
// references (slices, pointers). ExportState uses it to detach those from
// live state.
type StateCloner interface {
	// CloneState returns a copy sharing nothing with the receiver.
	CloneState() any
}

// ExportState returns a deep copy of the current state, safe for external
// persistence or debugging. Row maps are cloned and feature slices that
// implement [StateCloner] are detached; no internal references escape.
func (c *Context) ExportState() state.State {
	cur := c.store.Current()
	out := cur
	out.RawRows = cur.RawRows.Clone()
	out.Rows = cur.Rows.Clone()
	out.Features = make(map[string]any, len(cur.Features))
	for id, slice := range cur.Features {
		if cl, ok := slice.(StateCloner); ok {
			out.Features[id] = cl.CloneState()
			continue
		}
		out.Features[id] = slice
	}
	return out
}

// FeatureState returns the feature's state slice, or the result of init when
// no slice has been written yet. The slice is lazily initialized: reading
// never writes to the store.
func FeatureState[T any](c *Context, id string, init func() T) T {
	if v, ok := c.State().Feature(id); ok {
		if slice, ok := v.(T); ok {
			return slice
		}
	}
	return init()
}

// UpdateFeatureState applies fn to the feature's current slice (initialized
// via init when absent) and writes the result back copy-on-write.
func UpdateFeatureState[T any](c *Context, id string, init func() T, fn func(T) T) {
	c.Update(func(s state.State) state.State {
		cur := init()
		if v, ok := s.Feature(id); ok {
			if slice, ok := v.(T); ok {
				cur = slice
			}
		}
		return s.WithFeature(id, fn(cur))
	})
}
