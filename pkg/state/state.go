// Package state holds the canonical mutable state for a rowkit engine.
//
// The engine keeps a single State value per collection: the raw rows as
// delivered by the data source, the derived rows produced by the feature
// pipeline, a per-feature state bag, and a load status. All mutation flows
// through a single copy-on-write entry point ([Store.Update]); no component
// is permitted to mutate rows or feature slices in place.
//
// # Architecture
//
// Store is a single-writer cell guarded by a mutex. Updaters receive a clone
// of the current state and return the next state; the result is swapped in
// atomically and subscribers are notified synchronously afterwards. This
// preserves the engine's serialization assumption: intervening reads always
// observe a fully-settled prior state.
package state

import (
	"fmt"
	"maps"
	"sync"
)

// Status describes the load state of a collection.
type Status string

// Collection load states.
const (
	// StatusIdle means no load has been requested yet.
	StatusIdle Status = "idle"
	// StatusLoading means a data-source init or refresh is in flight.
	StatusLoading Status = "loading"
	// StatusReady means rows are loaded and derivable.
	StatusReady Status = "ready"
	// StatusError means the last load failed; see State.Err.
	StatusError Status = "error"
	// StatusStreaming means rows are loaded and live patches are being applied.
	StatusStreaming Status = "streaming"
)

// Row is a single record. Field access is by key; the identity field is
// configured on the engine (see engine.Meta.RowIDKey).
type Row map[string]any

// ID returns the row's identity under the given key, stringified.
// Returns "" if the key is absent or nil.
func (r Row) ID(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a copy of the row with its own field map.
// Field values are copied shallowly; rows are treated as immutable records,
// so nested values must not be mutated in place.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Rows is an ordered collection of records.
type Rows []Row

// Clone returns a copy of the collection with each row cloned.
func (rs Rows) Clone() Rows {
	if rs == nil {
		return nil
	}
	out := make(Rows, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// IDs returns the identity of every row under the given key, in order.
func (rs Rows) IDs(key string) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID(key)
	}
	return ids
}

// IndexOf returns the position of the row whose identity under key equals id,
// or -1 if no such row exists.
func (rs Rows) IndexOf(key, id string) int {
	for i, r := range rs {
		if r.ID(key) == id {
			return i
		}
	}
	return -1
}

// State is the canonical engine state.
//
// Rows is always derivable from RawRows plus the feature bag via the compiled
// derive pipeline; it is never independently mutated.
type State struct {
	// RawRows is the unmodified data-source output plus applied patches.
	RawRows Rows
	// Rows is the post-pipeline projection presented to hosts.
	Rows Rows
	// Features holds each feature's private state slice, keyed by feature id.
	Features map[string]any
	// Status is the collection load state.
	Status Status
	// Err holds the last data-source error when Status is StatusError.
	Err error
}

// Clone returns a copy of the state safe to hand to an updater.
// Row slices are copied (the rows themselves are immutable by convention)
// and the feature bag gets its own map.
func (s State) Clone() State {
	next := s
	if s.RawRows != nil {
		next.RawRows = make(Rows, len(s.RawRows))
		copy(next.RawRows, s.RawRows)
	}
	if s.Rows != nil {
		next.Rows = make(Rows, len(s.Rows))
		copy(next.Rows, s.Rows)
	}
	if s.Features != nil {
		next.Features = maps.Clone(s.Features)
	} else {
		next.Features = map[string]any{}
	}
	return next
}

// Feature returns the state slice stored under the given feature id.
func (s State) Feature(id string) (any, bool) {
	v, ok := s.Features[id]
	return v, ok
}

// WithFeature returns a copy of the state with the given feature slice
// replaced. The original state is untouched.
func (s State) WithFeature(id string, slice any) State {
	next := s
	next.Features = maps.Clone(s.Features)
	if next.Features == nil {
		next.Features = map[string]any{}
	}
	next.Features[id] = slice
	return next
}

// Store is the single-writer cell holding the current State.
// All mutation goes through Update; reads through Current are snapshots.
//
// Store serializes updates with a mutex so it is safe for concurrent use,
// but the engine's design assumes cooperative, non-interleaved updates:
// subscribers are notified synchronously and must not block.
type Store struct {
	mu      sync.Mutex
	current State
	subs    map[int]func(State)
	nextSub int
}

// NewStore creates a store holding an idle, empty state.
func NewStore() *Store {
	return &Store{
		current: State{Status: StatusIdle, Features: map[string]any{}},
		subs:    map[int]func(State){},
	}
}

// Current returns a snapshot of the current state.
// The snapshot shares row slices with the store; callers must treat it as
// read-only and go through Update for any change.
func (st *Store) Current() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Update applies fn to a clone of the current state and swaps the result in.
// The updater must be pure with respect to the store: it receives its own
// copy and returns the next state without touching shared references.
// Subscribers are notified synchronously after the swap, outside the lock.
func (st *Store) Update(fn func(State) State) {
	st.mu.Lock()
	next := fn(st.current.Clone())
	st.current = next
	listeners := make([]func(State), 0, len(st.subs))
	for _, sub := range st.subs {
		listeners = append(listeners, sub)
	}
	st.mu.Unlock()

	for _, sub := range listeners {
		sub(next)
	}
}

// Subscribe registers fn to be called after every state change.
// The returned cancel function removes the subscription; it is safe to call
// more than once.
func (st *Store) Subscribe(fn func(State)) (cancel func()) {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}
