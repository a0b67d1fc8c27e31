package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/rowkit/rowkit/pkg/engine"
	rkerrors "github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/export"
	"github.com/rowkit/rowkit/pkg/features/actions"
	"github.com/rowkit/rowkit/pkg/features/filter"
	"github.com/rowkit/rowkit/pkg/features/modal"
	"github.com/rowkit/rowkit/pkg/features/paginate"
	"github.com/rowkit/rowkit/pkg/features/selection"
	"github.com/rowkit/rowkit/pkg/features/sortby"
	"github.com/rowkit/rowkit/pkg/snapshot"
)

// serveCommand creates the serve command: an HTTP host exposing the engine's
// state and feature operations as JSON endpoints.
func (c *CLI) serveCommand() *cobra.Command {
	var configPath, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the collection over HTTP",
		Long:  `Serve starts an HTTP host for the configured collection. State is exposed as a snapshot on GET /state; filter, sort, pagination, selection, actions and modals are driven through POST endpoints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}

			h, cleanup, err := c.buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			snaps, ttl, err := newSnapshotStore(cmd.Context(), cfg)
			if err != nil {
				_ = h.close(context.Background(), cleanup)
				return err
			}
			defer snaps.Close() //nolint:errcheck

			srv := &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           newRouter(h.c, snaps, ttl),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			c.Logger.Info("serving collection", "addr", cfg.Serve.Addr)

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					_ = h.close(context.Background(), cleanup)
					return err
				}
			}
			return h.close(context.Background(), cleanup)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides config)")
	return cmd
}

// newRouter builds the HTTP surface over a loaded engine context.
func newRouter(ec *engine.Context, snaps snapshot.Store, snapTTL time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, export.Capture(ec))
	})

	r.Post("/filter", handleFilter(ec))
	r.Post("/sort", handleSort(ec))
	r.Post("/page", handlePage(ec))
	r.Post("/selection", handleSelection(ec))
	r.Post("/actions/{id}/trigger", handleTrigger(ec))
	r.Post("/modal/confirm", handleModalConfirm(ec))
	r.Post("/modal/cancel", handleModalCancel(ec))

	r.Route("/snapshots/{name}", func(r chi.Router) {
		r.Put("/", handleSnapshotSave(ec, snaps, snapTTL))
		r.Get("/", handleSnapshotLoad(snaps))
		r.Delete("/", handleSnapshotDelete(snaps))
	})

	return r
}

func handleSnapshotSave(ec *engine.Context, snaps snapshot.Store, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		key := snapshot.Key("snapshot", name)
		if err := snapshot.Save(r.Context(), snaps, key, export.Capture(ec), ttl); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": name, "key": key})
	}
}

func handleSnapshotLoad(snaps snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		snap, err := snapshot.Load(r.Context(), snaps, snapshot.Key("snapshot", name))
		if err != nil {
			if errors.Is(err, snapshot.ErrNotFound) {
				writeError(w, rkerrors.New(rkerrors.ErrCodeNotFound, "snapshot %q not found", name))
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleSnapshotDelete(snaps snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := snaps.Delete(r.Context(), snapshot.Key("snapshot", name)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleFilter(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Value any `json:"value"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		api, ok := featureAPI[*filter.API](ec, filter.FeatureID, w)
		if !ok {
			return
		}
		api.Set(req.Value)
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

func handleSort(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Descriptors []sortby.Descriptor `json:"descriptors"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		api, ok := featureAPI[*sortby.API](ec, sortby.FeatureID, w)
		if !ok {
			return
		}
		api.Set(req.Descriptors)
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

func handlePage(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index *int `json:"index,omitempty"`
			Size  *int `json:"size,omitempty"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		api, ok := featureAPI[*paginate.API](ec, paginate.FeatureID, w)
		if !ok {
			return
		}
		if req.Size != nil {
			api.SetPageSize(*req.Size)
		}
		if req.Index != nil {
			if err := api.SetPage(*req.Index); err != nil {
				writeError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

func handleSelection(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Op  string   `json:"op"`
			ID  string   `json:"id,omitempty"`
			IDs []string `json:"ids,omitempty"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		api, ok := featureAPI[*selection.API](ec, selection.FeatureID, w)
		if !ok {
			return
		}

		switch req.Op {
		case "select":
			api.Select(req.ID)
		case "deselect":
			api.Deselect(req.ID)
		case "toggle":
			api.Toggle(req.ID)
		case "set":
			api.SetSelected(req.IDs)
		case "all":
			api.SelectAllVisible()
		case "clear":
			api.Clear()
		default:
			writeError(w, rkerrors.New(rkerrors.ErrCodeInvalidInput, "unknown selection op %q", req.Op))
			return
		}
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

func handleTrigger(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RowID string `json:"rowId,omitempty"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		featureID := actions.GeneralFeatureID
		if req.RowID != "" {
			featureID = actions.RowFeatureID
		}
		api, ok := featureAPI[*actions.API](ec, featureID, w)
		if !ok {
			return
		}

		if err := api.Trigger(r.Context(), chi.URLParam(r, "id"), req.RowID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

func handleModalConfirm(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token   string `json:"token"`
			Payload any    `json:"payload,omitempty"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		api, ok := featureAPI[*modal.API](ec, modal.FeatureID, w)
		if !ok {
			return
		}
		if !api.Confirm(req.Token, req.Payload) {
			writeError(w, rkerrors.New(rkerrors.ErrCodeNotFound, "no open modal with token %q", req.Token))
			return
		}
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

func handleModalCancel(ec *engine.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		api, ok := featureAPI[*modal.API](ec, modal.FeatureID, w)
		if !ok {
			return
		}
		if !api.Cancel(req.Token) {
			writeError(w, rkerrors.New(rkerrors.ErrCodeNotFound, "no open modal with token %q", req.Token))
			return
		}
		writeJSON(w, http.StatusOK, export.Capture(ec))
	}
}

// featureAPI looks a typed feature API up in the namespace, writing a 404
// when the feature is not registered.
func featureAPI[T any](ec *engine.Context, id string, w http.ResponseWriter) (T, bool) {
	var zero T
	v, ok := ec.Feature(id)
	if !ok {
		writeError(w, rkerrors.New(rkerrors.ErrCodeNotFound, "feature %q is not registered", id))
		return zero, false
	}
	api, ok := v.(T)
	if !ok {
		writeError(w, rkerrors.New(rkerrors.ErrCodeInternal, "feature %q has an unexpected API type", id))
		return zero, false
	}
	return api, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, rkerrors.Wrap(rkerrors.ErrCodeInvalidInput, err, "decode request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps structured error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch rkerrors.GetCode(err) {
	case rkerrors.ErrCodeInvalidInput, rkerrors.ErrCodeInvalidView, rkerrors.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case rkerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case rkerrors.ErrCodeModalActive:
		status = http.StatusConflict
	case rkerrors.ErrCodeUnsupported:
		status = http.StatusForbidden
	case rkerrors.ErrCodeMissingCoordinator, rkerrors.ErrCodeMissingHandler:
		status = http.StatusNotImplemented
	}

	writeJSON(w, status, map[string]string{
		"code":    string(rkerrors.GetCode(err)),
		"message": rkerrors.UserMessage(err),
	})
}
