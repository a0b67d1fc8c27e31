package cli

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

func rowsFixture() state.Rows {
	return state.Rows{
		{"id": "r1", "name": "Widget", "stock": 42},
		{"id": "r2", "name": "Gadget", "stock": 7},
		{"id": "r3", "name": "Sprocket", "stock": 13},
	}
}

// newTestHost builds an engine over an in-memory source with the standard
// feature set, mirroring what buildEngine does for the file backend.
func newTestHost(t *testing.T, cfg EngineConfig) *engine.Context {
	t.Helper()

	store := state.NewStore()
	ec := engine.NewContext(store, engine.Meta{RowIDKey: "id"})

	reg := engine.NewRegistry()
	for _, f := range standardFeatures(cfg, "id", ec) {
		if err := reg.Register(f); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}
	plan, err := reg.Compile(ec)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	src := source.NewMemory(rowsFixture(), "id")
	eng := engine.New(store, ec, engine.NewRuntime(plan, ec), src, engine.Options{
		Logger: log.NewWithOptions(io.Discard, log.Options{}),
	})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s := eng.State(); s.Err != nil {
		t.Fatalf("load failed: %v", s.Err)
	}

	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return ec
}

func TestStandardFeaturesCompile(t *testing.T) {
	ec := newTestHost(t, EngineConfig{PageSize: 2})

	wantFeatures := []string{"filter", "sortby", "paginate", "selection", "modal", "actions", "row-actions"}
	for _, id := range wantFeatures {
		if _, ok := ec.Feature(id); !ok {
			t.Errorf("feature %q not registered", id)
		}
	}

	// PageSize 2 slices the three fixture rows down to the first page.
	if got := len(ec.State().Rows); got != 2 {
		t.Errorf("visible rows = %d, want 2", got)
	}
}
