package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/features/actions"
	"github.com/rowkit/rowkit/pkg/features/filter"
	"github.com/rowkit/rowkit/pkg/features/modal"
	"github.com/rowkit/rowkit/pkg/features/paginate"
	"github.com/rowkit/rowkit/pkg/features/selection"
	"github.com/rowkit/rowkit/pkg/features/sortby"
	"github.com/rowkit/rowkit/pkg/slots"
	"github.com/rowkit/rowkit/pkg/snapshot"
	"github.com/rowkit/rowkit/pkg/source"
	mongosource "github.com/rowkit/rowkit/pkg/source/mongo"
	redissource "github.com/rowkit/rowkit/pkg/source/redis"
	"github.com/rowkit/rowkit/pkg/state"
	"github.com/rowkit/rowkit/pkg/views"
)

// host bundles a loaded engine with its teardown.
type host struct {
	eng   *engine.Engine
	c     *engine.Context
	store *state.Store
}

// close tears the engine down and releases the data-source backend.
func (h *host) close(ctx context.Context, cleanup func() error) error {
	err := h.eng.Close(ctx)
	if cleanup != nil {
		if cerr := cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

// standardFeatures builds the default feature set every host uses: substring
// filter, sort, pagination, selection, modal coordinator and the built-in
// actions.
func standardFeatures(cfg EngineConfig, idKey string, ec *engine.Context) []engine.Feature {
	mode := selection.Mode(cfg.SelectionMode)
	if cfg.SelectionMode == "" {
		mode = selection.ModeMultiple
	}

	return []engine.Feature{
		filter.New(filter.Config{Apply: containsFilter}),
		sortby.New(sortby.Config{}),
		paginate.New(paginate.Config{PageSize: cfg.PageSize}),
		selection.New(selection.Config{Mode: mode}),
		modal.New(modal.Config{StrictSingle: cfg.StrictModal}),
		actions.NewGeneral(actions.Config{Actions: []actions.Action{resetAction(ec)}}),
		actions.NewRow(actions.Config{Actions: []actions.Action{deleteAction(idKey)}}),
	}
}

// containsFilter matches rows whose stringified fields contain the query,
// case-insensitively.
func containsFilter(_ *engine.Context, value any, rows state.Rows) state.Rows {
	query, _ := value.(string)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}

	var out state.Rows
	for _, r := range rows {
		for _, v := range r {
			if strings.Contains(strings.ToLower(fmt.Sprint(v)), query) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// resetAction clears filter, sort and selection in one step.
func resetAction(ec *engine.Context) actions.Action {
	return actions.Action{
		ID:    "reset",
		Label: "Reset view",
		Handler: func(context.Context, actions.HandlerContext) error {
			if api, ok := ec.Feature(filter.FeatureID); ok {
				api.(*filter.API).Clear()
			}
			if api, ok := ec.Feature(sortby.FeatureID); ok {
				api.(*sortby.API).Clear()
			}
			if api, ok := ec.Feature(selection.FeatureID); ok {
				api.(*selection.API).Clear()
			}
			return nil
		},
	}
}

// deleteAction removes the target row after confirmation.
func deleteAction(idKey string) actions.Action {
	return actions.Action{
		ID:    "delete",
		Label: "Delete row",
		Modal: func(rc actions.ReadContext) modal.Descriptor {
			return modal.Descriptor{Title: fmt.Sprintf("Delete row %s?", rc.RowID)}
		},
		Handler: func(_ context.Context, hc actions.HandlerContext) error {
			hc.UpdateRows(func(rows state.Rows) state.Rows {
				i := rows.IndexOf(idKey, hc.RowID)
				if i < 0 {
					return rows
				}
				out := make(state.Rows, 0, len(rows)-1)
				out = append(out, rows[:i]...)
				return append(out, rows[i+1:]...)
			})
			return nil
		},
	}
}

// buildEngine constructs the data source and engine from config, loads it,
// and applies the configured saved view. The returned cleanup releases
// backend clients and must run after the engine is closed.
func (c *CLI) buildEngine(ctx context.Context, cfg Config) (*host, func() error, error) {
	idKey := cfg.Engine.RowIDKey
	if idKey == "" {
		idKey = "id"
	}

	src, cleanup, err := newSource(ctx, cfg.Source, idKey)
	if err != nil {
		return nil, nil, err
	}

	store := state.NewStore()
	ec := engine.NewContext(store, engine.Meta{RowIDKey: idKey})

	features := standardFeatures(cfg.Engine, idKey, ec)
	reg := engine.NewRegistry()
	for _, f := range features {
		if err := reg.Register(f); err != nil {
			return nil, cleanup, err
		}
	}
	plan, err := reg.Compile(ec)
	if err != nil {
		return nil, cleanup, err
	}

	// Reference hosts render every slot, so check contracts against the full
	// vocabulary. Lenient: a gap degrades the host, it does not break the data.
	contracts := map[string]engine.UIContract{}
	for _, f := range features {
		if f.UI != nil {
			contracts[f.ID] = *f.UI
		}
	}
	active := make(map[string]bool, len(slots.All))
	for _, s := range slots.All {
		active[s] = true
	}
	if err := slots.Validate(contracts, ec.Features(), active, slots.ModeLenient, c.Logger); err != nil {
		return nil, cleanup, err
	}

	eng := engine.New(store, ec, engine.NewRuntime(plan, ec), src, engine.Options{Logger: c.Logger})

	p := newProgress(c.Logger)
	if err := eng.Load(ctx); err != nil {
		return nil, cleanup, err
	}
	s := eng.State()
	if s.Err != nil {
		return nil, cleanup, fmt.Errorf("load data source: %w", s.Err)
	}
	p.done(fmt.Sprintf("Loaded %d rows", len(s.RawRows)))

	if cfg.Engine.View != "" {
		if err := applySavedView(ec, cfg.Engine.View); err != nil {
			c.Logger.Warn("could not apply saved view", "view", cfg.Engine.View, "err", err)
		}
	}

	return &host{eng: eng, c: ec, store: store}, cleanup, nil
}

func applySavedView(c *engine.Context, name string) error {
	dir, err := viewsDir()
	if err != nil {
		return err
	}
	store, err := views.NewFileStore(dir)
	if err != nil {
		return err
	}
	v, err := store.Load(name)
	if err != nil {
		return err
	}
	views.Apply(c, v)
	return nil
}

// newSnapshotStore builds the configured snapshot store for the serve host.
func newSnapshotStore(ctx context.Context, cfg Config) (snapshot.Store, time.Duration, error) {
	ttl := time.Duration(cfg.Snapshot.TTLMinutes) * time.Minute

	switch cfg.Snapshot.Type {
	case snapshotNone:
		return snapshot.NewNullStore(), ttl, nil

	case snapshotRedis:
		store, err := snapshot.NewRedisStore(ctx, &goredis.Options{
			Addr:     cfg.Source.Redis.Addr,
			Password: cfg.Source.Redis.Password,
			DB:       cfg.Source.Redis.DB,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("connect snapshot store: %w", err)
		}
		return store, ttl, nil

	default:
		dir := cfg.Snapshot.Dir
		if dir == "" {
			base, err := configDir()
			if err != nil {
				return nil, 0, err
			}
			dir = filepath.Join(base, "snapshots")
		}
		store, err := snapshot.NewFileStore(dir)
		if err != nil {
			return nil, 0, err
		}
		return store, ttl, nil
	}
}

// newSource builds the configured data-source backend.
func newSource(ctx context.Context, cfg SourceConfig, idKey string) (source.DataSource, func() error, error) {
	switch cfg.Type {
	case sourceFile:
		rows, err := readRowsFile(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return source.NewMemory(rows, idKey), nil, nil

	case sourceRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		src := redissource.New(client, redissource.Config{
			Key:     cfg.Redis.Key,
			Channel: cfg.Redis.Channel,
			IDKey:   idKey,
		})
		return src, client.Close, nil

	case sourceMongo:
		client, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		src := mongosource.New(mongosource.Config{Collection: coll})
		cleanup := func() error { return client.Disconnect(context.Background()) }
		return src, cleanup, nil
	}
	return nil, nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

// readRowsFile loads a JSON array of row objects.
func readRowsFile(path string) (state.Rows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rows file %s: %w", path, err)
	}
	var rows state.Rows
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows file %s: %w", path, err)
	}
	return rows, nil
}
