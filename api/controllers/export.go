package controllers

import (
	"net/http"

	"github.com/mkastler/poolcart-backend/api/responses"
	exportsvc "github.com/mkastler/poolcart-backend/internal/export"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// RunBreakdown serves the per-product, per-user audit view of a run.
func RunBreakdown(svc exportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		breakdown, err := svc.RunBreakdown(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, breakdown)
	}
}
