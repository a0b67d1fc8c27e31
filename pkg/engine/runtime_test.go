package engine

import (
	"context"
	stderrors "errors"
	"slices"
	"testing"

	"github.com/rowkit/rowkit/pkg/state"
)

func compilePlan(t *testing.T, c *Context, features ...Feature) *Plan {
	t.Helper()
	reg := NewRegistry()
	for _, f := range features {
		reg.MustRegister(f)
	}
	plan, err := reg.Compile(c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return plan
}

func TestDeriveFoldsStepsInOrder(t *testing.T) {
	c := newTestContext()

	appendMarker := func(id string) DeriveFunc {
		return func(_ *Context, rows state.Rows) state.Rows {
			out := make(state.Rows, len(rows))
			copy(out, rows)
			return append(out, state.Row{"id": id})
		}
	}

	plan := compilePlan(t, c,
		Feature{ID: "second", DependsOn: []string{"first"}, Derive: appendMarker("second")},
		Feature{ID: "first", Derive: appendMarker("first")},
	)
	rt := NewRuntime(plan, c)

	got := rt.Derive(context.Background(), state.Rows{{"id": "seed"}})
	want := []string{"seed", "first", "second"}
	if !slices.Equal(got.IDs("id"), want) {
		t.Errorf("Derive = %v, want %v", got.IDs("id"), want)
	}
}

func TestDeriveIsIdempotentForFixedState(t *testing.T) {
	c := newTestContext()

	evens := func(_ *Context, rows state.Rows) state.Rows {
		var out state.Rows
		for _, r := range rows {
			if r["n"].(int)%2 == 0 {
				out = append(out, r)
			}
		}
		return out
	}

	plan := compilePlan(t, c, Feature{ID: "evens", Derive: evens})
	rt := NewRuntime(plan, c)

	input := state.Rows{{"n": 1}, {"n": 2}, {"n": 3}, {"n": 4}}
	first := rt.Derive(context.Background(), input)
	second := rt.Derive(context.Background(), input)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("derive lengths = %d, %d, want 2", len(first), len(second))
	}
	for i := range first {
		if first[i]["n"] != second[i]["n"] {
			t.Errorf("pipeline not idempotent at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestInitRunsInOrderAndStopsOnError(t *testing.T) {
	c := newTestContext()

	var calls []string
	hook := func(id string, err error) HookFunc {
		return func(context.Context, *Context) error {
			calls = append(calls, id)
			return err
		}
	}

	failure := stderrors.New("init failed")
	plan := compilePlan(t, c,
		Feature{ID: "a", OnInit: hook("a", nil)},
		Feature{ID: "b", DependsOn: []string{"a"}, OnInit: hook("b", failure)},
		Feature{ID: "c", DependsOn: []string{"b"}, OnInit: hook("c", nil)},
	)
	rt := NewRuntime(plan, c)

	err := rt.Init(context.Background())
	if !stderrors.Is(err, failure) {
		t.Errorf("Init error = %v, want wrapped failure", err)
	}
	if want := []string{"a", "b"}; !slices.Equal(calls, want) {
		t.Errorf("init calls = %v, want %v (stop after failure)", calls, want)
	}
}

func TestDestroySuppressesErrorsAndPanics(t *testing.T) {
	c := newTestContext()

	var calls []string
	plan := compilePlan(t, c,
		Feature{ID: "a", OnDestroy: func(context.Context, *Context) error {
			calls = append(calls, "a")
			return stderrors.New("destroy failed")
		}},
		Feature{ID: "b", DependsOn: []string{"a"}, OnDestroy: func(context.Context, *Context) error {
			calls = append(calls, "b")
			panic("misbehaving plugin")
		}},
		Feature{ID: "c", DependsOn: []string{"b"}, OnDestroy: func(context.Context, *Context) error {
			calls = append(calls, "c")
			return nil
		}},
	)
	rt := NewRuntime(plan, c)

	rt.Destroy(context.Background()) // must not panic
	if want := []string{"a", "b", "c"}; !slices.Equal(calls, want) {
		t.Errorf("destroy calls = %v, want %v (teardown total)", calls, want)
	}
}

func TestRuntimeCopiesHookArrays(t *testing.T) {
	c := newTestContext()

	var calls int
	plan := compilePlan(t, c, Feature{ID: "a", OnInit: func(context.Context, *Context) error {
		calls++
		return nil
	}})
	rt := NewRuntime(plan, c)

	// Mutating the plan after construction must not affect the runtime.
	plan.InitHooks = append(plan.InitHooks, Hook{FeatureID: "rogue", Fn: func(context.Context, *Context) error {
		calls += 100
		return nil
	}})

	if err := rt.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (hook arrays must be defensively copied)", calls)
	}
}

func TestRuntimeFeaturesSharesContextNamespace(t *testing.T) {
	c := newTestContext()
	plan := compilePlan(t, c, Feature{ID: "a", Create: func(*Context) (any, error) { return "api", nil }})
	rt := NewRuntime(plan, c)

	if rt.Features()["a"] != "api" {
		t.Errorf("Features() = %v", rt.Features())
	}
	c.Features()["probe"] = true
	if _, ok := rt.Features()["probe"]; !ok {
		t.Error("runtime namespace should share identity with the context")
	}
}
