package actions

import (
	"context"
	"testing"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/features/modal"
	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

func newActionEngine(t *testing.T, rows state.Rows, features ...engine.Feature) (*engine.Engine, *engine.Context) {
	t.Helper()
	store := state.NewStore()
	c := engine.NewContext(store, engine.Meta{RowIDKey: "id"})

	reg := engine.NewRegistry()
	for _, f := range features {
		reg.MustRegister(f)
	}
	plan, err := reg.Compile(c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	eng := engine.New(store, c, engine.NewRuntime(plan, c), source.NewMemory(rows, "id"), engine.Options{})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return eng, c
}

func rowAPI(t *testing.T, c *engine.Context) *API {
	t.Helper()
	v, ok := c.Feature(RowFeatureID)
	if !ok {
		t.Fatal("row-actions API missing from namespace")
	}
	return v.(*API)
}

func generalAPI(t *testing.T, c *engine.Context) *API {
	t.Helper()
	v, ok := c.Feature(GeneralFeatureID)
	if !ok {
		t.Fatal("actions API missing from namespace")
	}
	return v.(*API)
}

func modalAPI(t *testing.T, c *engine.Context) *modal.API {
	t.Helper()
	v, ok := c.Feature(modal.FeatureID)
	if !ok {
		t.Fatal("modal API missing from namespace")
	}
	return v.(*modal.API)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	handler := func(context.Context, HandlerContext) error { return nil }
	tests := []struct {
		name    string
		actions []Action
	}{
		{"empty id", []Action{{ID: "", Handler: handler}}},
		{"duplicate id", []Action{{ID: "a", Handler: handler}, {ID: "a", Handler: handler}}},
		{"missing handler", []Action{{ID: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := engine.NewContext(state.NewStore(), engine.Meta{RowIDKey: "id"})
			reg := engine.NewRegistry()
			reg.MustRegister(NewGeneral(Config{Actions: tt.actions}))
			if _, err := reg.Compile(c); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Compile = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestNonModalActionRunsImmediately(t *testing.T) {
	var calls int
	feature := NewGeneral(Config{Actions: []Action{{
		ID: "reload",
		Handler: func(_ context.Context, hc HandlerContext) error {
			calls++
			if hc.Payload != nil {
				t.Errorf("non-modal payload = %v, want nil", hc.Payload)
			}
			return nil
		},
	}}})

	_, c := newActionEngine(t, state.Rows{{"id": "r1"}}, feature)
	api := generalAPI(t, c)

	if err := api.Trigger(context.Background(), "reload", ""); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestUnknownActionFails(t *testing.T) {
	_, c := newActionEngine(t, state.Rows{}, NewGeneral(Config{}))
	err := generalAPI(t, c).Trigger(context.Background(), "missing", "")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Trigger = %v, want NOT_FOUND", err)
	}
}

func TestDisabledActionDoesNotRun(t *testing.T) {
	var calls int
	feature := NewGeneral(Config{Actions: []Action{{
		ID:        "guarded",
		IsEnabled: func(ReadContext) bool { return false },
		Handler:   func(context.Context, HandlerContext) error { calls++; return nil },
	}}})

	_, c := newActionEngine(t, state.Rows{}, feature)
	api := generalAPI(t, c)

	if err := api.Trigger(context.Background(), "guarded", ""); err != nil {
		t.Errorf("disabled trigger = %v, want silent no-op", err)
	}
	if calls != 0 {
		t.Error("disabled action handler ran")
	}
	if api.Enabled("guarded", "") {
		t.Error("Enabled should report false")
	}
}

func TestRowActionRequiresExistingRow(t *testing.T) {
	feature := NewRow(Config{Actions: []Action{{
		ID:      "delete",
		Handler: func(context.Context, HandlerContext) error { return nil },
	}}})
	_, c := newActionEngine(t, state.Rows{{"id": "r1"}}, feature)
	api := rowAPI(t, c)

	if err := api.Trigger(context.Background(), "delete", "ghost"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing row = %v, want NOT_FOUND", err)
	}
	if err := api.Trigger(context.Background(), "delete", ""); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty row id = %v, want INVALID_INPUT", err)
	}
}

func TestModalActionWithoutCoordinatorFails(t *testing.T) {
	feature := NewRow(Config{Actions: []Action{{
		ID:      "delete",
		Modal:   func(ReadContext) modal.Descriptor { return modal.Descriptor{Title: "Delete?"} },
		Handler: func(context.Context, HandlerContext) error { return nil },
	}}})
	_, c := newActionEngine(t, state.Rows{{"id": "r1"}}, feature)

	err := rowAPI(t, c).Trigger(context.Background(), "delete", "r1")
	if !errors.Is(err, errors.ErrCodeMissingCoordinator) {
		t.Errorf("Trigger = %v, want MISSING_COORDINATOR", err)
	}
}

func TestConfirmedRowActionRunsHandlerOnce(t *testing.T) {
	var calls int
	feature := NewRow(Config{Actions: []Action{{
		ID:    "delete",
		Modal: func(rc ReadContext) modal.Descriptor { return modal.Descriptor{Title: "Delete " + rc.RowID + "?"} },
		Handler: func(_ context.Context, hc HandlerContext) error {
			calls++
			hc.UpdateRows(func(rows state.Rows) state.Rows {
				i := rows.IndexOf("id", hc.RowID)
				if i < 0 {
					return rows
				}
				return append(rows[:i:i], rows[i+1:]...)
			})
			return nil
		},
	}}})

	eng, c := newActionEngine(t, state.Rows{{"id": "r1"}, {"id": "r2"}}, modal.New(modal.Config{}), feature)
	api := rowAPI(t, c)
	coord := modalAPI(t, c)

	if err := api.Trigger(context.Background(), "delete", "r1"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if calls != 0 {
		t.Fatal("handler ran before confirmation")
	}

	active := coord.Active()
	if active == nil || active.ActionID != "delete" || active.RowID != "r1" {
		t.Fatalf("Active = %+v, want delete modal for r1", active)
	}
	if p := api.Pending(); len(p) != 1 || p[0].Token != active.Token {
		t.Fatalf("Pending = %+v, want one marker for the open modal", p)
	}

	if !coord.Confirm(active.Token, nil) {
		t.Fatal("Confirm failed")
	}

	if calls != 1 {
		t.Errorf("handler ran %d times, want exactly 1", calls)
	}
	if got := eng.State().RawRows.IDs("id"); len(got) != 1 || got[0] != "r2" {
		t.Errorf("raw rows = %v, want [r2]", got)
	}
	if len(api.Pending()) != 0 {
		t.Error("pending marker should be cleared after resolution")
	}
	if err := api.LastError(); err != nil {
		t.Errorf("LastError = %v", err)
	}
}

func TestCancelledModalSkipsHandler(t *testing.T) {
	var calls int
	feature := NewGeneral(Config{Actions: []Action{{
		ID:      "export",
		Modal:   func(ReadContext) modal.Descriptor { return modal.Descriptor{Title: "Export?"} },
		Handler: func(context.Context, HandlerContext) error { calls++; return nil },
	}}})

	_, c := newActionEngine(t, state.Rows{}, modal.New(modal.Config{}), feature)
	api := generalAPI(t, c)
	coord := modalAPI(t, c)

	if err := api.Trigger(context.Background(), "export", ""); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	coord.Cancel(coord.Active().Token)

	if calls != 0 {
		t.Error("cancelled modal must not run the handler")
	}
	if len(api.Pending()) != 0 {
		t.Error("pending marker should be cleared on cancel")
	}
}

func TestReplacedModalClearsPendingWithoutRunning(t *testing.T) {
	var calls int
	feature := NewGeneral(Config{Actions: []Action{{
		ID:      "export",
		Modal:   func(ReadContext) modal.Descriptor { return modal.Descriptor{} },
		Handler: func(context.Context, HandlerContext) error { calls++; return nil },
	}}})

	_, c := newActionEngine(t, state.Rows{}, modal.New(modal.Config{}), feature)
	api := generalAPI(t, c)
	coord := modalAPI(t, c)

	if err := api.Trigger(context.Background(), "export", ""); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	first := coord.Active().Token

	// A second trigger replaces the first modal; its closed resolution
	// clears the first marker.
	if err := api.Trigger(context.Background(), "export", ""); err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if p := api.Pending(); len(p) != 1 || p[0].Token == first {
		t.Fatalf("Pending = %+v, want only the second marker", p)
	}

	coord.Confirm(coord.Active().Token, nil)
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1 (only the confirmed trigger)", calls)
	}
}

func TestConfirmPayloadReachesHandler(t *testing.T) {
	var got any
	feature := NewGeneral(Config{Actions: []Action{{
		ID:    "export",
		Modal: func(ReadContext) modal.Descriptor { return modal.Descriptor{} },
		Handler: func(_ context.Context, hc HandlerContext) error {
			got = hc.Payload
			return nil
		},
	}}})

	_, c := newActionEngine(t, state.Rows{}, modal.New(modal.Config{}), feature)
	api := generalAPI(t, c)
	coord := modalAPI(t, c)

	if err := api.Trigger(context.Background(), "export", ""); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	coord.Confirm(coord.Active().Token, map[string]any{"format": "csv"})

	payload, ok := got.(map[string]any)
	if !ok || payload["format"] != "csv" {
		t.Errorf("payload = %v, want format csv", got)
	}
}

func TestGeneralAndRowActionsCoexist(t *testing.T) {
	var generalCalls, rowCalls int
	general := NewGeneral(Config{Actions: []Action{{
		ID:      "reload",
		Handler: func(context.Context, HandlerContext) error { generalCalls++; return nil },
	}}})
	row := NewRow(Config{Actions: []Action{{
		ID:      "inspect",
		Handler: func(context.Context, HandlerContext) error { rowCalls++; return nil },
	}}})

	_, c := newActionEngine(t, state.Rows{{"id": "r1"}}, modal.New(modal.Config{}), general, row)

	if err := generalAPI(t, c).Trigger(context.Background(), "reload", ""); err != nil {
		t.Fatalf("general Trigger: %v", err)
	}
	if err := rowAPI(t, c).Trigger(context.Background(), "inspect", "r1"); err != nil {
		t.Fatalf("row Trigger: %v", err)
	}
	if generalCalls != 1 || rowCalls != 1 {
		t.Errorf("calls = general:%d row:%d, want 1 each", generalCalls, rowCalls)
	}
}
