package paginate

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

func TestUpdateMeta(t *testing.T) {
	tests := []struct {
		name       string
		in         State
		totalItems int
		want       State
	}{
		{
			name:       "clamps page index past the end",
			in:         State{PageIndex: 2, PageSize: 10},
			totalItems: 15,
			want:       State{PageIndex: 1, PageSize: 10, TotalItems: 15, TotalPages: 2},
		},
		{
			name:       "exact multiple",
			in:         State{PageIndex: 0, PageSize: 5},
			totalItems: 10,
			want:       State{PageIndex: 0, PageSize: 5, TotalItems: 10, TotalPages: 2},
		},
		{
			name:       "empty collection keeps one page",
			in:         State{PageIndex: 3, PageSize: 10},
			totalItems: 0,
			want:       State{PageIndex: 0, PageSize: 10, TotalItems: 0, TotalPages: 1},
		},
		{
			name:       "disabled slicing",
			in:         State{PageIndex: 4, PageSize: 0},
			totalItems: 42,
			want:       State{PageIndex: 0, PageSize: 0, TotalItems: 42, TotalPages: 1},
		},
		{
			name:       "negative index clamps to zero",
			in:         State{PageIndex: -2, PageSize: 10},
			totalItems: 15,
			want:       State{PageIndex: 0, PageSize: 10, TotalItems: 15, TotalPages: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UpdateMeta(tt.in, tt.totalItems); got != tt.want {
				t.Errorf("UpdateMeta(%+v, %d) = %+v, want %+v", tt.in, tt.totalItems, got, tt.want)
			}
		})
	}
}

func TestSlice(t *testing.T) {
	rows := make(state.Rows, 15)
	for i := range rows {
		rows[i] = state.Row{"id": fmt.Sprintf("%02d", i)}
	}

	got := Slice(rows, State{PageIndex: 1, PageSize: 10})
	if len(got) != 5 || got[0].ID("id") != "10" {
		t.Errorf("second page = %v", got.IDs("id"))
	}

	if got := Slice(rows, State{PageIndex: 9, PageSize: 10}); len(got) != 0 {
		t.Errorf("out-of-range page = %v, want empty", got.IDs("id"))
	}

	if got := Slice(rows, State{PageSize: 0}); len(got) != 15 {
		t.Errorf("disabled slicing kept %d rows, want 15", len(got))
	}
}

func newPagedEngine(t *testing.T, rowCount, pageSize int) (*engine.Engine, *API) {
	t.Helper()
	rows := make(state.Rows, rowCount)
	for i := range rows {
		rows[i] = state.Row{"id": fmt.Sprintf("%02d", i)}
	}

	store := state.NewStore()
	c := engine.NewContext(store, engine.Meta{RowIDKey: "id"})
	reg := engine.NewRegistry()
	reg.MustRegister(New(Config{PageSize: pageSize}))
	plan, err := reg.Compile(c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	eng := engine.New(store, c, engine.NewRuntime(plan, c), source.NewMemory(rows, "id"), engine.Options{})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	api, _ := c.Feature(FeatureID)
	return eng, api.(*API)
}

func TestDeriveWritesMetadataBack(t *testing.T) {
	_, api := newPagedEngine(t, 15, 10)

	cur := api.Current()
	if cur.TotalItems != 15 || cur.TotalPages != 2 {
		t.Errorf("metadata = %+v, want totalItems 15, totalPages 2", cur)
	}
}

func TestSetPageClampsViaRecompute(t *testing.T) {
	eng, api := newPagedEngine(t, 15, 10)

	if err := api.SetPage(2); err != nil {
		t.Fatalf("SetPage: %v", err)
	}

	cur := api.Current()
	if cur.PageIndex != 1 || cur.TotalPages != 2 {
		t.Errorf("state = %+v, want pageIndex 1 of 2", cur)
	}
	if got := len(eng.Rows()); got != 5 {
		t.Errorf("visible rows = %d, want 5 (last partial page)", got)
	}
}

func TestSetPageRejectsNegative(t *testing.T) {
	_, api := newPagedEngine(t, 15, 10)
	if err := api.SetPage(-1); err == nil {
		t.Error("SetPage(-1) should fail")
	}
}

func TestSetPageSizeResetsIndex(t *testing.T) {
	eng, api := newPagedEngine(t, 15, 5)

	if err := api.SetPage(2); err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	api.SetPageSize(10)

	cur := api.Current()
	if cur.PageIndex != 0 || cur.PageSize != 10 {
		t.Errorf("state after SetPageSize = %+v, want first page of size 10", cur)
	}
	if want := []string{"00", "01", "02", "03", "04", "05", "06", "07", "08", "09"}; !slices.Equal(eng.Rows().IDs("id"), want) {
		t.Errorf("visible rows = %v, want %v", eng.Rows().IDs("id"), want)
	}
}

func TestNextAndPrevStopAtBounds(t *testing.T) {
	_, api := newPagedEngine(t, 15, 10)

	api.Prev()
	if cur := api.Current(); cur.PageIndex != 0 {
		t.Errorf("Prev at first page moved to %d", cur.PageIndex)
	}

	api.Next()
	api.Next()
	api.Next()
	if cur := api.Current(); cur.PageIndex != 1 {
		t.Errorf("Next past last page moved to %d, want 1", cur.PageIndex)
	}
}

func TestShrinkingDataClampsCurrentPage(t *testing.T) {
	rows := make(state.Rows, 15)
	for i := range rows {
		rows[i] = state.Row{"id": fmt.Sprintf("%02d", i)}
	}
	src := source.NewMemory(rows, "id")

	store := state.NewStore()
	c := engine.NewContext(store, engine.Meta{RowIDKey: "id"})
	reg := engine.NewRegistry()
	reg.MustRegister(New(Config{PageSize: 10}))
	plan, err := reg.Compile(c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	eng := engine.New(store, c, engine.NewRuntime(plan, c), src, engine.Options{})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	api, _ := c.Feature(FeatureID)
	if err := api.(*API).SetPage(1); err != nil {
		t.Fatalf("SetPage: %v", err)
	}

	// Shrink to a single page; the live patch must pull the index back.
	src.Publish(source.Patch{Kind: source.KindReplaceAll, Rows: rows[:3]})

	cur := api.(*API).Current()
	if cur.PageIndex != 0 || cur.TotalPages != 1 || cur.TotalItems != 3 {
		t.Errorf("state after shrink = %+v, want first page of one", cur)
	}
	if got := len(eng.Rows()); got != 3 {
		t.Errorf("visible rows = %d, want 3", got)
	}
}
