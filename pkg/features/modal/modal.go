// Package modal provides the confirmation-modal coordinator feature.
//
// The coordinator owns a single piece of truth: which modal, if any, is
// currently open. Other features (actions, custom host flows) ask it to open
// a modal and learn the outcome through resolution subscribers; the
// coordinator itself knows nothing about what a confirmation means. Each open
// modal carries an unguessable token so a stale confirm or cancel from a
// previous modal can never resolve the current one.
package modal

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/observability"
	"github.com/rowkit/rowkit/pkg/slots"
)

// FeatureID is the id the feature registers under and the key of its state
// slice in the feature bag.
const FeatureID = "modal"

// Scope classifies what kind of flow opened a modal.
type Scope string

// Modal scopes.
const (
	ScopeRowAction     Scope = "row-action"
	ScopeGeneralAction Scope = "general-action"
	ScopeCustom        Scope = "custom"
)

// Outcome is how a modal was resolved.
type Outcome string

// Resolution outcomes.
const (
	// OutcomeConfirmed means the user accepted the modal.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeCancelled means the user rejected the modal.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeClosed means the modal was displaced by a newer one.
	OutcomeClosed Outcome = "closed"
)

// Descriptor describes one open modal. Token is assigned by the coordinator
// and correlates resolutions with the modal they belong to.
type Descriptor struct {
	Token    string `json:"token"`
	Scope    Scope  `json:"scope"`
	ActionID string `json:"actionId,omitempty"`
	RowID    string `json:"rowId,omitempty"`
	Title    string `json:"title,omitempty"`
	// Payload carries scope-specific data for the host to render.
	Payload any `json:"payload,omitempty"`
}

// Resolution records how a modal ended.
type Resolution struct {
	Token    string `json:"token"`
	Scope    Scope  `json:"scope"`
	ActionID string `json:"actionId,omitempty"`
	RowID    string `json:"rowId,omitempty"`
	Outcome  Outcome `json:"outcome"`
	// Payload carries confirmation data supplied by the host (form values).
	Payload any `json:"payload,omitempty"`
}

// Confirmed reports whether the modal ended in confirmation.
func (r Resolution) Confirmed() bool { return r.Outcome == OutcomeConfirmed }

// State is the modal feature's state slice. Active is nil when no modal is
// open; the descriptor value is replaced, never mutated. Version increases
// on every open so hosts can detect a replaced modal.
type State struct {
	Active         *Descriptor `json:"active,omitempty"`
	Version        int         `json:"version"`
	LastResolution *Resolution `json:"lastResolution,omitempty"`
}

// CloneState returns a copy with its own descriptor and resolution values.
func (s State) CloneState() any {
	if s.Active != nil {
		active := *s.Active
		s.Active = &active
	}
	if s.LastResolution != nil {
		res := *s.LastResolution
		s.LastResolution = &res
	}
	return s
}

// SubscriberFunc receives every resolution. Subscribers run synchronously in
// registration order; a panicking subscriber is recovered and skipped.
type SubscriberFunc func(Resolution)

// Config configures the modal coordinator.
type Config struct {
	// StrictSingle rejects Open while a modal is active instead of
	// replacing it.
	StrictSingle bool
	// UI optionally overrides the default UI contract.
	UI *engine.UIContract
}

// New creates the modal coordinator feature declaration.
func New(cfg Config) engine.Feature {
	ui := cfg.UI
	if ui == nil {
		ui = &engine.UIContract{
			Slots:            []string{slots.Modal},
			RequiredHandlers: []string{"Active", "Confirm", "Cancel"},
		}
	}

	return engine.Feature{
		ID: FeatureID,
		Create: func(c *engine.Context) (any, error) {
			return &API{c: c, strict: cfg.StrictSingle}, nil
		},
		UI: ui,
	}
}

// API is the modal coordinator's public surface, published under FeatureID
// in the shared namespace.
type API struct {
	c      *engine.Context
	strict bool

	mu   sync.Mutex
	subs []SubscriberFunc
}

func initialState() State { return State{} }

// Open opens a modal described by d and returns the descriptor with its
// assigned token. In strict-single mode an already-active modal makes Open
// fail with MODAL_ACTIVE; otherwise the active modal is resolved as closed
// and replaced.
func (a *API) Open(d Descriptor) (Descriptor, error) {
	cur := engine.FeatureState(a.c, FeatureID, initialState)
	if cur.Active != nil {
		if a.strict {
			return Descriptor{}, errors.New(errors.ErrCodeModalActive,
				"modal %q is already open", cur.Active.Token)
		}
		a.resolve(cur.Active.Token, OutcomeClosed, nil)
	}

	d.Token = uuid.NewString()
	engine.UpdateFeatureState(a.c, FeatureID, initialState, func(s State) State {
		active := d
		s.Active = &active
		s.Version++
		return s
	})

	observability.Action().OnModalOpen(context.Background(), string(d.Scope), d.ActionID, d.RowID)
	return d, nil
}

// Confirm resolves the active modal as confirmed. The token must match the
// active modal; a stale token is ignored and Confirm reports false.
func (a *API) Confirm(token string, payload any) bool {
	return a.resolve(token, OutcomeConfirmed, payload)
}

// Cancel resolves the active modal as cancelled. A stale token is ignored.
func (a *API) Cancel(token string) bool {
	return a.resolve(token, OutcomeCancelled, nil)
}

// Close dismisses the active modal programmatically, whatever its token.
// Close is an escape hatch, not a resolution: subscribers are not notified
// and LastResolution is untouched. It is a no-op when no modal is open.
func (a *API) Close() {
	engine.UpdateFeatureState(a.c, FeatureID, initialState, func(s State) State {
		s.Active = nil
		return s
	})
}

// Active returns the open modal descriptor, or nil.
func (a *API) Active() *Descriptor {
	return engine.FeatureState(a.c, FeatureID, initialState).Active
}

// Version returns the monotonic open counter.
func (a *API) Version() int {
	return engine.FeatureState(a.c, FeatureID, initialState).Version
}

// LastResolution returns the most recent resolution, or nil before the
// first one.
func (a *API) LastResolution() *Resolution {
	return engine.FeatureState(a.c, FeatureID, initialState).LastResolution
}

// OnResolve registers a subscriber for every resolution. The returned cancel
// function removes it.
func (a *API) OnResolve(fn SubscriberFunc) (cancel func()) {
	a.mu.Lock()
	a.subs = append(a.subs, fn)
	i := len(a.subs) - 1
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		a.subs[i] = nil
		a.mu.Unlock()
	}
}

func (a *API) resolve(token string, outcome Outcome, payload any) bool {
	var res Resolution
	matched := false

	engine.UpdateFeatureState(a.c, FeatureID, initialState, func(s State) State {
		if s.Active == nil || s.Active.Token != token {
			return s
		}
		matched = true
		res = Resolution{
			Token:    s.Active.Token,
			Scope:    s.Active.Scope,
			ActionID: s.Active.ActionID,
			RowID:    s.Active.RowID,
			Outcome:  outcome,
			Payload:  payload,
		}
		s.Active = nil
		s.LastResolution = &res
		return s
	})
	if !matched {
		return false
	}

	observability.Action().OnResolve(context.Background(), string(res.Scope), res.ActionID, res.Confirmed())

	a.mu.Lock()
	subs := make([]SubscriberFunc, len(a.subs))
	copy(subs, a.subs)
	a.mu.Unlock()

	for _, sub := range subs {
		if sub == nil {
			continue
		}
		notifyGuarded(sub, res)
	}
	return true
}

// notifyGuarded keeps one misbehaving subscriber from breaking resolution
// delivery to the rest.
func notifyGuarded(fn SubscriberFunc, res Resolution) {
	defer func() { _ = recover() }()
	fn(res)
}
