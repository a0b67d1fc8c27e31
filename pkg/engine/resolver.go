package engine

import (
	"strings"

	"github.com/rowkit/rowkit/pkg/errors"
)

// node is the resolver-internal wrapper around a feature declaration.
// The deps set is consumed during the topological sort; nodes are created
// per compilation and discarded once ordering completes.
type node struct {
	id   string
	deps map[string]struct{}
}

// Resolve topologically orders feature declarations given their explicit
// dependencies and relative before/after constraints.
//
// Each feature's working dependency set is DependsOn ∪ After; every entry in
// Before is inverted ("I must run before T" becomes "T depends on me").
// Referencing an unregistered id in DependsOn or Before is a configuration
// error; an unregistered id in After is ignored, since After is a soft hint.
//
// The sort is Kahn's algorithm: nodes with an empty dependency set are
// extracted in registration order, and extraction releases the extracted id
// from all remaining nodes. Ties among simultaneously-ready nodes are broken
// by registration order, so the result is deterministic for a fixed input.
// If nodes remain once the ready queue drains, a cycle exists and the error
// lists the unresolved ids joined by " -> ".
//
// Complexity is O(V+E) in features and constraint edges.
func Resolve(features []Feature) ([]string, error) {
	index := make(map[string]*node, len(features))
	order := make([]*node, 0, len(features))

	for _, f := range features {
		n := &node{id: f.ID, deps: make(map[string]struct{})}
		index[f.ID] = n
		order = append(order, n)
	}

	for _, f := range features {
		for _, dep := range f.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, errors.New(errors.ErrCodeUnknownFeature,
					"feature %q depends on unregistered feature %q", f.ID, dep)
			}
			index[f.ID].deps[dep] = struct{}{}
		}
		for _, after := range f.After {
			if _, ok := index[after]; !ok {
				continue // soft hint: ignore absent features
			}
			index[f.ID].deps[after] = struct{}{}
		}
		for _, before := range f.Before {
			target, ok := index[before]
			if !ok {
				return nil, errors.New(errors.ErrCodeUnknownFeature,
					"feature %q declares order before unregistered feature %q", f.ID, before)
			}
			target.deps[f.ID] = struct{}{}
		}
	}

	result := make([]string, 0, len(order))
	queued := make(map[string]bool, len(order))

	var ready []*node
	for _, n := range order {
		if len(n.deps) == 0 {
			ready = append(ready, n)
			queued[n.id] = true
		}
	}

	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		result = append(result, n.id)

		// Release the extracted id; scan in registration order so newly-ready
		// nodes queue deterministically.
		for _, m := range order {
			if queued[m.id] {
				continue
			}
			delete(m.deps, n.id)
			if len(m.deps) == 0 {
				ready = append(ready, m)
				queued[m.id] = true
			}
		}
	}

	if len(result) != len(order) {
		var unresolved []string
		for _, n := range order {
			if !queued[n.id] {
				unresolved = append(unresolved, n.id)
			}
		}
		return nil, errors.New(errors.ErrCodeDependencyCycle,
			"dependency cycle among features: %s", strings.Join(unresolved, " -> "))
	}

	return result, nil
}

// Edge is one directed ordering constraint between two features, pointing
// from prerequisite to dependent. Used for visualizing the feature graph.
type Edge struct {
	From string // runs first
	To   string // runs after From
}

// Edges returns the ordering constraints implied by the declarations, with
// Before entries already inverted. Soft After hints referencing absent
// features are omitted.
func Edges(features []Feature) []Edge {
	present := make(map[string]bool, len(features))
	for _, f := range features {
		present[f.ID] = true
	}

	var edges []Edge
	for _, f := range features {
		for _, dep := range f.DependsOn {
			edges = append(edges, Edge{From: dep, To: f.ID})
		}
		for _, after := range f.After {
			if present[after] {
				edges = append(edges, Edge{From: after, To: f.ID})
			}
		}
		for _, before := range f.Before {
			edges = append(edges, Edge{From: f.ID, To: before})
		}
	}
	return edges
}
