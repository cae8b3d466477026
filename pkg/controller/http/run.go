package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
)

func handleGetRun(runs interfaces.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		run, err := runs.GetRun(ctx, id)
		if err != nil {
			ctxlog.From(ctx).Error("Failed to get run", "run_id", id, "error", err)
			writeError(w, goerr.Wrap(err, "failed to get run"), http.StatusInternalServerError)
			return
		}
		if run == nil {
			writeError(w, goerr.New("run not found", goerr.V("run_id", id)), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(run); err != nil {
			ctxlog.From(ctx).Error("Failed to encode run response", "error", err)
		}
	}
}
