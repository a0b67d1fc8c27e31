package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rowkit/rowkit/pkg/observability"
	"github.com/rowkit/rowkit/pkg/state"
)

// Runtime wraps a compiled Plan and a Context into an executable object.
//
// The hook arrays are defensively copied at construction, so later mutation
// of the plan cannot alter an already-created runtime's execution order.
type Runtime struct {
	c       *Context
	derive  []DeriveStep
	init    []Hook
	refresh []Hook
	destroy []Hook
}

// NewRuntime creates a runtime executing the given plan against the context
// the plan was compiled with.
func NewRuntime(plan *Plan, c *Context) *Runtime {
	return &Runtime{
		c:       c,
		derive:  slices.Clone(plan.DeriveSteps),
		init:    slices.Clone(plan.InitHooks),
		refresh: slices.Clone(plan.RefreshHooks),
		destroy: slices.Clone(plan.DestroyHooks),
	}
}

// Derive folds the ordered derive steps over the input rows, feeding each
// step's output to the next, and returns the final transformed sequence.
// Steps read mutable state through the shared context; with unchanged state
// the pipeline is pure, so re-running it on the same input yields identical
// output.
func (r *Runtime) Derive(ctx context.Context, rows state.Rows) state.Rows {
	start := time.Now()
	observability.Engine().OnDeriveStart(ctx, len(rows))

	out := rows
	for _, step := range r.derive {
		out = step.Fn(r.c, out)
	}

	observability.Engine().OnDeriveComplete(ctx, len(out), time.Since(start))
	return out
}

// Init executes the onInit hooks strictly in dependency order, waiting for
// each before starting the next. The first error aborts the sequence.
func (r *Runtime) Init(ctx context.Context) error {
	return r.runHooks(ctx, "init", r.init)
}

// Refresh executes the onRefresh hooks with the same contract as Init.
func (r *Runtime) Refresh(ctx context.Context) error {
	return r.runHooks(ctx, "refresh", r.refresh)
}

// Destroy executes the onDestroy hooks strictly in order. Teardown is
// best-effort and total: an error (or panic) from one hook is suppressed,
// reported through the engine hooks, and does not prevent subsequent hooks
// from running.
func (r *Runtime) Destroy(ctx context.Context) {
	for _, h := range r.destroy {
		if err := runGuarded(ctx, r.c, h.Fn); err != nil {
			observability.Engine().OnDestroyError(ctx, h.FeatureID, err)
		}
	}
}

// Features returns the merged feature-API namespace. The map identity is the
// same object exposed by the context the runtime executes against.
func (r *Runtime) Features() map[string]any {
	return r.c.features
}

func (r *Runtime) runHooks(ctx context.Context, stage string, hooks []Hook) error {
	for _, h := range hooks {
		start := time.Now()
		err := h.Fn(ctx, r.c)
		observability.Engine().OnLifecycle(ctx, stage, h.FeatureID, time.Since(start), err)
		if err != nil {
			return err
		}
	}
	return nil
}

// runGuarded invokes a hook, converting a panic into an error so teardown
// always completes.
func runGuarded(ctx context.Context, c *Context, fn HookFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook panicked: %v", rec)
		}
	}()
	return fn(ctx, c)
}
