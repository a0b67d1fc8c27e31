// Package actions provides the general-action and row-action features.
//
// An action is a named command a host can trigger: general actions operate
// on the collection ("export all", "reload"), row actions on a single row
// ("delete", "duplicate"). Actions that need confirmation declare a modal
// factory; the trigger then opens a modal through the coordinator feature
// and the handler runs only when that modal is confirmed. Pending triggers
// are correlated with resolutions by the modal token, so a handler runs at
// most once per trigger no matter how a modal is resolved or replaced.
package actions

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/features/modal"
	"github.com/rowkit/rowkit/pkg/observability"
	"github.com/rowkit/rowkit/pkg/slots"
	"github.com/rowkit/rowkit/pkg/state"
)

// Feature ids for the two action scopes.
const (
	GeneralFeatureID = "actions"
	RowFeatureID     = "row-actions"
)

// ReadContext is the read-only snapshot handed to enabled-predicates and
// modal factories. Row and RowID are zero for general actions.
type ReadContext struct {
	RowID string
	Row   state.Row
	// Visible is the post-pipeline projection at trigger time.
	Visible state.Rows
	// Raw is the unfiltered collection at trigger time.
	Raw state.Rows
}

// HandlerContext is what an action handler receives when it runs.
type HandlerContext struct {
	ReadContext
	// Payload is the modal confirmation payload; nil for non-modal actions.
	Payload any
	// UpdateRows mutates the raw collection through the engine's single
	// write path; the derive pipeline recomputes afterwards.
	UpdateRows func(fn func(state.Rows) state.Rows)
}

// HandlerFunc performs the action.
type HandlerFunc func(ctx context.Context, hc HandlerContext) error

// EnabledFunc decides whether an action may run right now. Nil means always
// enabled.
type EnabledFunc func(rc ReadContext) bool

// ModalFunc builds the confirmation modal for a trigger. Returning a
// descriptor opens it; the feature fills in scope, action id, row id and
// token. Nil on the Action means the handler runs without confirmation.
type ModalFunc func(rc ReadContext) modal.Descriptor

// Action declares one command.
type Action struct {
	ID        string
	Label     string
	IsEnabled EnabledFunc
	Modal     ModalFunc
	Handler   HandlerFunc
}

// Marker records a trigger waiting for its modal to resolve.
type Marker struct {
	Token    string `json:"token"`
	ActionID string `json:"actionId"`
	RowID    string `json:"rowId,omitempty"`
}

// State is the action feature's state slice: the triggers currently waiting
// on a confirmation modal.
type State struct {
	Pending []Marker `json:"pending"`
}

// CloneState returns a copy with its own marker slice.
func (s State) CloneState() any {
	s.Pending = slices.Clone(s.Pending)
	return s
}

// Config configures an action feature instance.
type Config struct {
	Actions []Action
	// UI optionally overrides the default UI contract.
	UI *engine.UIContract
}

// NewGeneral creates the general-action feature declaration.
func NewGeneral(cfg Config) engine.Feature {
	return newFeature(GeneralFeatureID, modal.ScopeGeneralAction, slots.Toolbar, cfg)
}

// NewRow creates the row-action feature declaration.
func NewRow(cfg Config) engine.Feature {
	return newFeature(RowFeatureID, modal.ScopeRowAction, slots.Table, cfg)
}

func newFeature(featureID string, scope modal.Scope, slot string, cfg Config) engine.Feature {
	ui := cfg.UI
	if ui == nil {
		ui = &engine.UIContract{
			Slots:            []string{slot},
			RequiredHandlers: []string{"Trigger", "List", "Enabled"},
		}
	}

	return engine.Feature{
		ID: featureID,
		// Resolve after the coordinator when it is registered; the hint is
		// ignored otherwise.
		After: []string{modal.FeatureID},
		Validate: func(engine.ValidateInfo) error {
			seen := map[string]bool{}
			for _, a := range cfg.Actions {
				if a.ID == "" {
					return errors.New(errors.ErrCodeInvalidConfig,
						"%s: action with empty id", featureID)
				}
				if seen[a.ID] {
					return errors.New(errors.ErrCodeInvalidConfig,
						"%s: duplicate action %q", featureID, a.ID)
				}
				seen[a.ID] = true
				if a.Handler == nil {
					return errors.New(errors.ErrCodeInvalidConfig,
						"%s: action %q has no handler", featureID, a.ID)
				}
			}
			return nil
		},
		Create: func(c *engine.Context) (any, error) {
			byID := make(map[string]Action, len(cfg.Actions))
			for _, a := range cfg.Actions {
				byID[a.ID] = a
			}
			return &API{
				c:         c,
				featureID: featureID,
				scope:     scope,
				actions:   slices.Clone(cfg.Actions),
				byID:      byID,
			}, nil
		},
		OnInit: func(_ context.Context, c *engine.Context) error {
			api, _ := c.Feature(featureID)
			api.(*API).bindCoordinator()
			return nil
		},
		UI: ui,
	}
}

// API is an action feature's public surface, published under its feature id
// in the shared namespace.
type API struct {
	c         *engine.Context
	featureID string
	scope     modal.Scope
	actions   []Action
	byID      map[string]Action

	mu      sync.Mutex
	coord   *modal.API
	bound   bool
	lastErr error
}

func initialState() State { return State{} }

// Trigger runs an action. Row actions take the target row id; general
// actions pass "". Triggering a disabled action is a no-op. Actions with a
// modal factory open their confirmation modal and return; the handler runs
// when the modal is confirmed. Actions without one run their handler before
// Trigger returns.
func (a *API) Trigger(ctx context.Context, actionID, rowID string) error {
	action, ok := a.byID[actionID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "unknown action %q", actionID)
	}

	rc, err := a.readContext(rowID)
	if err != nil {
		return err
	}

	// A failing guard makes the trigger a no-op, not an error; the hook
	// still observes the attempt. Hosts gate affordances through Enabled.
	enabled := action.IsEnabled == nil || action.IsEnabled(rc)
	observability.Action().OnTrigger(ctx, actionID, rowID, enabled)
	if !enabled {
		return nil
	}

	if action.Modal == nil {
		return a.run(ctx, action, rc, nil)
	}

	coord := a.coordinator()
	if coord == nil {
		return errors.New(errors.ErrCodeMissingCoordinator,
			"action %q needs a confirmation modal but no coordinator is registered", actionID)
	}

	d := action.Modal(rc)
	d.Scope = a.scope
	d.ActionID = actionID
	d.RowID = rowID
	opened, err := coord.Open(d)
	if err != nil {
		return err
	}

	engine.UpdateFeatureState(a.c, a.featureID, initialState, func(s State) State {
		s.Pending = append(slices.Clone(s.Pending),
			Marker{Token: opened.Token, ActionID: actionID, RowID: rowID})
		return s
	})
	return nil
}

// List returns the declared actions in registration order.
func (a *API) List() []Action {
	return slices.Clone(a.actions)
}

// Enabled reports whether an action may run for the given row id right now.
// Unknown actions are not enabled.
func (a *API) Enabled(actionID, rowID string) bool {
	action, ok := a.byID[actionID]
	if !ok {
		return false
	}
	rc, err := a.readContext(rowID)
	if err != nil {
		return false
	}
	return action.IsEnabled == nil || action.IsEnabled(rc)
}

// Pending returns the triggers waiting on a confirmation modal.
func (a *API) Pending() []Marker {
	return slices.Clone(engine.FeatureState(a.c, a.featureID, initialState).Pending)
}

// LastError returns the most recent confirmed-handler error. Handlers that
// run during Trigger report their error from Trigger directly; handlers
// that run on modal confirmation have no caller, so their error lands here.
func (a *API) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// bindCoordinator subscribes to modal resolutions. Called once from OnInit;
// without a registered coordinator the feature stays unbound and modal
// actions fail on first use.
func (a *API) bindCoordinator() {
	coord := a.coordinator()
	if coord == nil {
		return
	}
	coord.OnResolve(a.onResolve)
}

func (a *API) coordinator() *modal.API {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.bound {
		a.bound = true
		if v, ok := a.c.Feature(modal.FeatureID); ok {
			if coord, ok := v.(*modal.API); ok {
				a.coord = coord
			}
		}
	}
	return a.coord
}

func (a *API) onResolve(res modal.Resolution) {
	var marker Marker
	matched := false

	engine.UpdateFeatureState(a.c, a.featureID, initialState, func(s State) State {
		i := slices.IndexFunc(s.Pending, func(m Marker) bool { return m.Token == res.Token })
		if i < 0 {
			return s
		}
		matched = true
		marker = s.Pending[i]
		s.Pending = slices.Delete(slices.Clone(s.Pending), i, i+1)
		return s
	})
	if !matched || !res.Confirmed() {
		return
	}

	action, ok := a.byID[marker.ActionID]
	if !ok {
		return
	}
	rc, err := a.readContext(marker.RowID)
	if err != nil {
		a.setLastErr(err)
		return
	}
	if err := a.run(context.Background(), action, rc, res.Payload); err != nil {
		a.setLastErr(err)
	}
}

func (a *API) run(ctx context.Context, action Action, rc ReadContext, payload any) error {
	hc := HandlerContext{
		ReadContext: rc,
		Payload:     payload,
		UpdateRows: func(fn func(state.Rows) state.Rows) {
			a.c.Update(func(s state.State) state.State {
				s.RawRows = fn(s.RawRows)
				return s
			})
		},
	}

	start := time.Now()
	err := action.Handler(ctx, hc)
	observability.Action().OnHandlerComplete(ctx, action.ID, time.Since(start), err)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "action %q failed", action.ID)
	}
	return nil
}

func (a *API) readContext(rowID string) (ReadContext, error) {
	s := a.c.State()
	rc := ReadContext{RowID: rowID, Visible: s.Rows, Raw: s.RawRows}

	if a.scope == modal.ScopeRowAction {
		if rowID == "" {
			return ReadContext{}, errors.New(errors.ErrCodeInvalidInput,
				"row action requires a row id")
		}
		i := s.RawRows.IndexOf(a.c.Meta().RowIDKey, rowID)
		if i < 0 {
			return ReadContext{}, errors.New(errors.ErrCodeNotFound, "row %q not found", rowID)
		}
		rc.Row = s.RawRows[i]
	}
	return rc, nil
}

func (a *API) setLastErr(err error) {
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
}
