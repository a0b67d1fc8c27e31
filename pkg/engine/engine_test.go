package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

type failingSource struct{ err error }

func (f failingSource) Init(context.Context) (source.Result, error) {
	return source.Result{}, f.err
}

// limitFeature caps the visible rows at the limit stored in its state slice.
// It stands in for the real derivation plugins in engine-level tests.
func limitFeature(id string) Feature {
	return Feature{
		ID: id,
		Create: func(c *Context) (any, error) {
			return &limitAPI{c: c, id: id}, nil
		},
		Derive: func(c *Context, rows state.Rows) state.Rows {
			limit := FeatureState(c, id, func() int { return -1 })
			if limit < 0 || limit >= len(rows) {
				return rows
			}
			return rows[:limit]
		},
	}
}

type limitAPI struct {
	c  *Context
	id string
}

func (a *limitAPI) SetLimit(n int) {
	UpdateFeatureState(a.c, a.id, func() int { return -1 }, func(int) int { return n })
}

func newTestEngine(t *testing.T, src source.DataSource, features ...Feature) (*Engine, *Context) {
	t.Helper()
	store := state.NewStore()
	c := NewContext(store, Meta{RowIDKey: "id"})

	reg := NewRegistry()
	for _, f := range features {
		reg.MustRegister(f)
	}
	plan, err := reg.Compile(c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return New(store, c, NewRuntime(plan, c), src, Options{}), c
}

func TestEngineLoad(t *testing.T) {
	src := source.NewMemory(state.Rows{{"id": "a"}, {"id": "b"}}, "id")
	eng, _ := newTestEngine(t, src, limitFeature("limit"))

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s := eng.State()
	if s.Status != state.StatusStreaming {
		t.Errorf("status = %q, want streaming (subscribable source)", s.Status)
	}
	if len(s.RawRows) != 2 || len(s.Rows) != 2 {
		t.Errorf("rows = %d raw / %d visible, want 2/2", len(s.RawRows), len(s.Rows))
	}
}

func TestEngineLoadErrorSurfacesAsState(t *testing.T) {
	boom := stderrors.New("connection refused")
	eng, _ := newTestEngine(t, failingSource{err: boom})

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load should not return data-source errors, got %v", err)
	}

	s := eng.State()
	if s.Status != state.StatusError {
		t.Errorf("status = %q, want error", s.Status)
	}
	if !stderrors.Is(s.Err, boom) {
		t.Errorf("state error = %v, want %v", s.Err, boom)
	}
}

func TestEngineMutationTriggersRecompute(t *testing.T) {
	src := source.NewMemory(state.Rows{{"id": "a"}, {"id": "b"}, {"id": "c"}}, "id")
	eng, c := newTestEngine(t, src, limitFeature("limit"))

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	api, _ := c.Feature("limit")
	api.(*limitAPI).SetLimit(1)

	if got := len(eng.Rows()); got != 1 {
		t.Errorf("visible rows after mutation = %d, want 1 (recompute on update)", got)
	}
	if got := len(eng.State().RawRows); got != 3 {
		t.Errorf("raw rows = %d, want 3 (derive never touches raw)", got)
	}
}

func TestEnginePatchesApplyInArrivalOrder(t *testing.T) {
	src := source.NewMemory(state.Rows{}, "id")
	eng, _ := newTestEngine(t, src)

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	src.Publish(source.Patch{Kind: source.KindAppend, Row: state.Row{"id": "1"}})
	src.Publish(source.Patch{Kind: source.KindRemove, ID: "1"})

	if got := len(eng.State().RawRows); got != 0 {
		t.Errorf("raw rows after append+remove = %d, want 0", got)
	}

	src.Publish(source.Patch{Kind: source.KindAppend, Row: state.Row{"id": "2"}})
	src.Publish(source.Patch{Kind: source.KindUpdate, Row: state.Row{"id": "2", "n": 5}})

	s := eng.State()
	if len(s.Rows) != 1 || s.Rows[0]["n"] != 5 {
		t.Errorf("visible rows = %v, want updated row", s.Rows)
	}
}

func TestEngineRefreshLastWriteWins(t *testing.T) {
	src := source.NewMemory(state.Rows{{"id": "old"}}, "id")
	eng, c := newTestEngine(t, src)

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	src.Publish(source.Patch{Kind: source.KindReplaceAll, Rows: state.Rows{{"id": "new"}}})
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	s := eng.State()
	if len(s.RawRows) != 1 || s.RawRows[0].ID("id") != "new" {
		t.Errorf("raw rows after refresh = %v, want [new]", s.RawRows.IDs("id"))
	}
	if s.Status != state.StatusStreaming {
		t.Errorf("status = %q, want streaming after refresh", s.Status)
	}
}

func TestEngineLifecycleHooksRun(t *testing.T) {
	var inits, refreshes, destroys int
	f := Feature{
		ID:        "lifecycle",
		OnInit:    func(context.Context, *Context) error { inits++; return nil },
		OnRefresh: func(context.Context, *Context) error { refreshes++; return nil },
		OnDestroy: func(context.Context, *Context) error { destroys++; return nil },
	}

	src := source.NewMemory(state.Rows{}, "id")
	eng, _ := newTestEngine(t, src, f)

	ctx := context.Background()
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := eng.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := eng.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if inits != 1 || refreshes != 1 || destroys != 1 {
		t.Errorf("hooks = init:%d refresh:%d destroy:%d, want 1 each", inits, refreshes, destroys)
	}
}

func TestEngineLoadAssignsRowIDs(t *testing.T) {
	src := source.NewMemory(state.Rows{{"name": "anonymous"}}, "id")
	eng, _ := newTestEngine(t, src)

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id := eng.State().RawRows[0].ID("id"); id == "" {
		t.Error("rows without the configured id key should be assigned one")
	}
}

func TestContextExportStateIsDefensive(t *testing.T) {
	src := source.NewMemory(state.Rows{{"id": "a", "n": 1}}, "id")
	eng, c := newTestEngine(t, src)

	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := c.ExportState()
	snap.RawRows[0]["n"] = 99
	snap.Features["rogue"] = true

	s := eng.State()
	if s.RawRows[0]["n"] != 1 {
		t.Error("mutating an exported snapshot changed engine state")
	}
	if _, ok := s.Features["rogue"]; ok {
		t.Error("exported feature bag shares identity with engine state")
	}
}
