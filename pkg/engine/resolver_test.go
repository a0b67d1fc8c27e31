package engine

import (
	"slices"
	"strings"
	"testing"

	"github.com/rowkit/rowkit/pkg/errors"
)

func TestResolveOrdersDependencies(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
		want     []string
	}{
		{
			"no constraints keeps registration order",
			[]Feature{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			[]string{"a", "b", "c"},
		},
		{
			"dependsOn puts prerequisite first",
			[]Feature{{ID: "b", DependsOn: []string{"a"}}, {ID: "a"}},
			[]string{"a", "b"},
		},
		{
			"before inverts into target dependency",
			[]Feature{{ID: "a"}, {ID: "b", DependsOn: []string{"a"}}, {ID: "c", Before: []string{"a"}}},
			[]string{"c", "a", "b"},
		},
		{
			"after orders behind present feature",
			[]Feature{{ID: "x", After: []string{"y"}}, {ID: "y"}},
			[]string{"y", "x"},
		},
		{
			"after ignores absent feature",
			[]Feature{{ID: "x", After: []string{"ghost"}}, {ID: "y"}},
			[]string{"x", "y"},
		},
		{
			"diamond",
			[]Feature{
				{ID: "d", DependsOn: []string{"b", "c"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"a"}},
				{ID: "a"},
			},
			[]string{"a", "b", "c", "d"},
		},
	}

	for _, tt := range tests {
		got, err := Resolve(tt.features)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: Resolve = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolveEveryDependencyPrecedes(t *testing.T) {
	features := []Feature{
		{ID: "pagination", DependsOn: []string{"sort"}},
		{ID: "sort", DependsOn: []string{"filter"}},
		{ID: "filter"},
		{ID: "selection", After: []string{"pagination"}},
		{ID: "toolbar", Before: []string{"filter"}},
	}

	got, err := Resolve(features)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	pos := make(map[string]int, len(got))
	for i, id := range got {
		pos[id] = i
	}

	precedes := [][2]string{
		{"filter", "sort"},
		{"sort", "pagination"},
		{"pagination", "selection"},
		{"toolbar", "filter"},
	}
	for _, p := range precedes {
		if pos[p[0]] >= pos[p[1]] {
			t.Errorf("%q should precede %q in %v", p[0], p[1], got)
		}
	}
}

func TestResolveCycle(t *testing.T) {
	features := []Feature{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}

	_, err := Resolve(features)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, errors.ErrCodeDependencyCycle) {
		t.Errorf("code = %v, want DEPENDENCY_CYCLE", errors.GetCode(err))
	}
	for _, id := range []string{"a", "b", "c"} {
		if !strings.Contains(err.Error(), id) {
			t.Errorf("cycle error %q should list %q", err.Error(), id)
		}
	}
	if !strings.Contains(err.Error(), " -> ") {
		t.Errorf("cycle ids should be joined by an arrow separator: %q", err.Error())
	}
}

func TestResolveUnknownReferences(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
	}{
		{"unknown before", []Feature{{ID: "a", Before: []string{"missing"}}}},
		{"unknown dependsOn", []Feature{{ID: "a", DependsOn: []string{"missing"}}}},
	}

	for _, tt := range tests {
		_, err := Resolve(tt.features)
		if !errors.Is(err, errors.ErrCodeUnknownFeature) {
			t.Errorf("%s: error = %v, want UNKNOWN_FEATURE", tt.name, err)
		}
	}
}

func TestResolveSelfCycle(t *testing.T) {
	_, err := Resolve([]Feature{{ID: "a", DependsOn: []string{"a"}}})
	if !errors.Is(err, errors.ErrCodeDependencyCycle) {
		t.Errorf("self-dependency should be a cycle, got %v", err)
	}
}

func TestEdges(t *testing.T) {
	features := []Feature{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", Before: []string{"a"}, After: []string{"ghost", "b"}},
	}

	got := Edges(features)
	want := []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}}

	if len(got) != len(want) {
		t.Fatalf("Edges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
