package engine

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rowkit/rowkit/pkg/observability"
	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

// Options configures an Engine.
type Options struct {
	// Logger receives debug-level progress; defaults to a discard logger.
	Logger *log.Logger
}

// Engine binds a state store, a compiled runtime, and a data source into the
// control loop described by the orchestration core: load raw rows, run the
// derive pipeline, apply live patches in arrival order, and recompute after
// every feature-state mutation.
//
// Data-source failures are recovered as state (Status becomes StatusError
// and Err carries the cause); they never escape as returned errors. Only
// lifecycle hook failures propagate to the caller.
type Engine struct {
	store  *state.Store
	c      *Context
	rt     *Runtime
	src    source.DataSource
	logger *log.Logger

	unsub       func()
	recomputing atomic.Bool
}

// New creates an engine and installs its refresh and recompute triggers on
// the context, completing the collaboration surface handed to features.
func New(store *state.Store, c *Context, rt *Runtime, src source.DataSource, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	e := &Engine{store: store, c: c, rt: rt, src: src, logger: logger}
	c.refresh = e.Refresh
	c.afterUpdate = e.onMutation
	return e
}

// Load performs the initial data-source load, subscribes to the patch stream
// when the source offers one, recomputes the visible rows, and runs the init
// hooks in dependency order.
//
// A data-source error transitions the state to StatusError and returns nil;
// only an init hook error is returned.
func (e *Engine) Load(ctx context.Context) error {
	if !e.load(ctx, "init") {
		return nil
	}

	if e.unsub == nil {
		if sub, ok := e.src.(source.Subscribable); ok {
			e.unsub = sub.Subscribe(func(p source.Patch) { e.applyPatch(p) })
			e.setStatus(state.StatusStreaming)
		}
	}

	e.Recompute(ctx)
	return e.rt.Init(ctx)
}

// Refresh re-runs the data-source load (using the source's Refresh
// capability when present, Init otherwise) and then the refresh hooks.
// Overlapping refreshes are not tracked: the latest resolution wins by
// overwriting state.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.load(ctx, "refresh") {
		return nil
	}
	if e.unsub != nil {
		e.setStatus(state.StatusStreaming)
	}
	e.Recompute(ctx)
	return e.rt.Refresh(ctx)
}

// load runs one data-source load and installs the result. It reports whether
// the load succeeded; on failure the error has already been surfaced as
// state.
func (e *Engine) load(ctx context.Context, kind string) bool {
	e.setStatus(state.StatusLoading)
	observability.Source().OnLoadStart(ctx, kind)
	start := time.Now()

	var (
		res source.Result
		err error
	)
	if kind == "refresh" {
		if rf, ok := e.src.(source.Refresher); ok {
			res, err = rf.Refresh(ctx)
		} else {
			res, err = e.src.Init(ctx)
		}
	} else {
		res, err = e.src.Init(ctx)
	}

	observability.Source().OnLoadComplete(ctx, kind, len(res.Rows), time.Since(start), err)

	if err != nil {
		e.logger.Debug("data source load failed", "kind", kind, "err", err)
		e.store.Update(func(s state.State) state.State {
			s.Status = state.StatusError
			s.Err = err
			return s
		})
		return false
	}

	raw := source.EnsureIDs(res.Rows, e.c.meta.RowIDKey)
	status := res.Status
	if status == "" {
		status = state.StatusReady
	}

	e.logger.Debug("data source load complete", "kind", kind, "rows", len(raw))
	e.store.Update(func(s state.State) state.State {
		s.RawRows = raw
		s.Status = status
		s.Err = nil
		return s
	})
	return true
}

// Recompute re-runs the derive pipeline top-to-bottom against the current
// raw rows and stores the result as the visible rows. Mutations performed by
// derive steps themselves (pagination metadata updates) do not re-trigger
// recomputation.
func (e *Engine) Recompute(ctx context.Context) {
	if !e.recomputing.CompareAndSwap(false, true) {
		return
	}
	defer e.recomputing.Store(false)

	raw := e.store.Current().RawRows
	rows := e.rt.Derive(ctx, raw)
	e.store.Update(func(s state.State) state.State {
		s.Rows = rows
		return s
	})
}

// Close cancels the patch subscription, runs the destroy hooks (errors
// suppressed, teardown total), and tears down the source when it supports
// explicit teardown.
func (e *Engine) Close(ctx context.Context) error {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.rt.Destroy(ctx)
	if d, ok := e.src.(source.Destroyer); ok {
		return d.Destroy(ctx)
	}
	return nil
}

// State returns a snapshot of the current engine state.
func (e *Engine) State() state.State {
	return e.store.Current()
}

// Rows returns the current visible rows.
func (e *Engine) Rows() state.Rows {
	return e.store.Current().Rows
}

// Context returns the collaboration surface shared with features.
func (e *Engine) Context() *Context {
	return e.c
}

// Features returns the shared feature-API namespace.
func (e *Engine) Features() map[string]any {
	return e.c.features
}

// onMutation is the context's afterUpdate trigger: any feature-state
// mutation re-runs the pipeline, unless the mutation happened inside a
// derive step of an already-running recompute.
func (e *Engine) onMutation() {
	if e.recomputing.Load() {
		return
	}
	e.Recompute(context.Background())
}

func (e *Engine) setStatus(st state.Status) {
	e.store.Update(func(s state.State) state.State {
		s.Status = st
		return s
	})
}

// applyPatch installs one incremental patch, strictly in arrival order, and
// recomputes the visible rows.
func (e *Engine) applyPatch(p source.Patch) {
	ctx := context.Background()
	idKey := e.c.meta.RowIDKey

	e.store.Update(func(s state.State) state.State {
		s.RawRows = source.Apply(s.RawRows, p, idKey)
		return s
	})
	observability.Source().OnPatch(ctx, string(p.Kind), len(e.store.Current().RawRows))
	e.Recompute(ctx)
}
