// Package engine implements the feature orchestration core of rowkit.
//
// The engine presents a paginated, filterable, sortable collection of records
// through a plugin ("feature") architecture. Independently-authored features
// declare dependencies and ordering constraints; the registry resolves them
// into one deterministic execution order, compiles them into staged pipelines
// (derive, init, refresh, destroy), and exposes a shared collaboration
// surface (the Context) through which features cooperate without coupling to
// one another.
//
// # Architecture
//
// Compilation is a two-phase, single-use process:
//
//  1. Register: collect feature declarations on a Registry
//  2. Compile: resolve order, validate, instantiate feature APIs, and
//     assemble the ordered stage pipelines into a Plan
//
// A Runtime wraps a Plan and a Context into an executable object. The Engine
// binds a Runtime to a state store and a data source, feeding raw rows
// through the derive pipeline and applying incremental patches in arrival
// order.
//
// # Usage
//
//	store := state.NewStore()
//	ctx := engine.NewContext(store, engine.Meta{RowIDKey: "id"})
//
//	reg := engine.NewRegistry()
//	reg.Register(filter.New(filter.Config{Apply: byNamePrefix}))
//	reg.Register(sortby.New(sortby.Config{Compare: compareFields}))
//	reg.Register(paginate.New(paginate.Config{PageSize: 20}))
//
//	plan, err := reg.Compile(ctx)
//	if err != nil {
//	    return err
//	}
//
//	rt := engine.NewRuntime(plan, ctx)
//	eng := engine.New(store, ctx, rt, src, engine.Options{})
//	if err := eng.Load(context.Background()); err != nil {
//	    return err
//	}
//
// User intents go to the feature APIs (ctx.Feature("filter"), ...), which
// mutate their own state slice through the context's updater; the engine
// recomputes the visible rows after every mutation.
package engine
