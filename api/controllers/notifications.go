package controllers

import (
	"net/http"

	"github.com/mkastler/poolcart-backend/api/responses"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// RunNotifications lists the committed domain facts recorded for a run.
func RunNotifications(store storage.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := store.Notifications().ListByRun(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}
