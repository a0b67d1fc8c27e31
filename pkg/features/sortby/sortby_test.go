package sortby

import (
	"context"
	"slices"
	"testing"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/state"
)

func compileSort(t *testing.T, cfg Config) (*engine.Runtime, *API) {
	t.Helper()
	c := engine.NewContext(state.NewStore(), engine.Meta{RowIDKey: "id"})
	reg := engine.NewRegistry()
	reg.MustRegister(New(cfg))
	plan, err := reg.Compile(c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	api, _ := c.Feature(FeatureID)
	return engine.NewRuntime(plan, c), api.(*API)
}

func sampleRows() state.Rows {
	return state.Rows{
		{"id": "1", "name": "carol", "age": 31},
		{"id": "2", "name": "alice", "age": 54},
		{"id": "3", "name": "bob", "age": 31},
	}
}

func TestDerivePassesThroughWithoutDescriptors(t *testing.T) {
	rt, _ := compileSort(t, Config{})
	got := rt.Derive(context.Background(), sampleRows())
	if want := []string{"1", "2", "3"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("unsorted order = %v, want %v", got.IDs("id"), want)
	}
}

func TestApplyReplacesComparatorSort(t *testing.T) {
	// Apply reverses the incoming rows, ignoring fields entirely; a
	// comparator is configured too and must never be consulted.
	var gotDescriptors []Descriptor
	cfg := Config{
		Apply: func(_ *engine.Context, descriptors []Descriptor, rows state.Rows) state.Rows {
			gotDescriptors = descriptors
			out := make(state.Rows, len(rows))
			for i, r := range rows {
				out[len(rows)-1-i] = r
			}
			return out
		},
		Compare: func(string, any, any) int {
			t.Error("Compare consulted despite Apply being set")
			return 0
		},
	}
	rt, api := compileSort(t, cfg)

	api.Set([]Descriptor{{Field: "name", Direction: Asc}})
	got := rt.Derive(context.Background(), sampleRows())
	if want := []string{"3", "2", "1"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("applied order = %v, want %v", got.IDs("id"), want)
	}
	if len(gotDescriptors) != 1 || gotDescriptors[0].Field != "name" {
		t.Errorf("apply received descriptors %v, want the set ones", gotDescriptors)
	}

	// Without descriptors the step still passes rows through untouched.
	api.Clear()
	got = rt.Derive(context.Background(), sampleRows())
	if want := []string{"1", "2", "3"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("cleared order = %v, want %v", got.IDs("id"), want)
	}
}

func TestSortAscendingAndDescending(t *testing.T) {
	rt, api := compileSort(t, Config{})

	api.Set([]Descriptor{{Field: "name", Direction: Asc}})
	got := rt.Derive(context.Background(), sampleRows())
	if want := []string{"2", "3", "1"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("asc by name = %v, want %v", got.IDs("id"), want)
	}

	api.Set([]Descriptor{{Field: "name", Direction: Desc}})
	got = rt.Derive(context.Background(), sampleRows())
	if want := []string{"1", "3", "2"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("desc by name = %v, want %v", got.IDs("id"), want)
	}
}

func TestMultiFieldTieBreak(t *testing.T) {
	rt, api := compileSort(t, Config{})

	api.Set([]Descriptor{
		{Field: "age", Direction: Asc},
		{Field: "name", Direction: Asc},
	})
	got := rt.Derive(context.Background(), sampleRows())
	// bob and carol tie on age 31; name breaks the tie.
	if want := []string{"3", "1", "2"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("multi-field order = %v, want %v", got.IDs("id"), want)
	}
}

func TestSortIsStableForEqualRows(t *testing.T) {
	rt, api := compileSort(t, Config{})
	api.Set([]Descriptor{{Field: "age", Direction: Asc}})

	rows := state.Rows{
		{"id": "x", "age": 1},
		{"id": "y", "age": 1},
		{"id": "z", "age": 1},
	}
	got := rt.Derive(context.Background(), rows)
	if want := []string{"x", "y", "z"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("equal rows reordered: %v, want %v", got.IDs("id"), want)
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	rows := sampleRows()
	Sort(rows, []Descriptor{{Field: "name", Direction: Asc}}, DefaultCompare)
	if want := []string{"1", "2", "3"}; !slices.Equal(rows.IDs("id"), want) {
		t.Errorf("input rows reordered: %v", rows.IDs("id"))
	}
}

func TestToggleCycle(t *testing.T) {
	_, api := compileSort(t, Config{})

	api.Toggle("name")
	if cur := api.Current(); len(cur) != 1 || cur[0].Direction != Asc {
		t.Fatalf("first toggle = %v, want name asc", cur)
	}
	api.Toggle("name")
	if cur := api.Current(); len(cur) != 1 || cur[0].Direction != Desc {
		t.Fatalf("second toggle = %v, want name desc", cur)
	}
	api.Toggle("name")
	if cur := api.Current(); len(cur) != 0 {
		t.Fatalf("third toggle = %v, want unsorted", cur)
	}
}

func TestToggleDifferentFieldReplaces(t *testing.T) {
	_, api := compileSort(t, Config{Initial: []Descriptor{{Field: "age", Direction: Desc}}})

	api.Toggle("name")
	cur := api.Current()
	if len(cur) != 1 || cur[0].Field != "name" || cur[0].Direction != Asc {
		t.Errorf("toggle new field = %v, want name asc only", cur)
	}
}

func TestDefaultCompareNilsFirst(t *testing.T) {
	rt, api := compileSort(t, Config{})
	api.Set([]Descriptor{{Field: "age", Direction: Asc}})

	rows := state.Rows{
		{"id": "1", "age": 2},
		{"id": "2"},
		{"id": "3", "age": 1},
	}
	got := rt.Derive(context.Background(), rows)
	if want := []string{"2", "3", "1"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("nil ordering = %v, want %v", got.IDs("id"), want)
	}
}

func TestCustomCompare(t *testing.T) {
	// Rank order instead of lexical order.
	rank := map[string]int{"low": 0, "mid": 1, "high": 2}
	rt, api := compileSort(t, Config{Compare: func(_ string, a, b any) int {
		return rank[a.(string)] - rank[b.(string)]
	}})
	api.Set([]Descriptor{{Field: "severity", Direction: Desc}})

	rows := state.Rows{
		{"id": "1", "severity": "mid"},
		{"id": "2", "severity": "high"},
		{"id": "3", "severity": "low"},
	}
	got := rt.Derive(context.Background(), rows)
	if want := []string{"2", "1", "3"}; !slices.Equal(got.IDs("id"), want) {
		t.Errorf("custom compare order = %v, want %v", got.IDs("id"), want)
	}
}
