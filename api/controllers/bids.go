package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/api/responses"
	"github.com/mkastler/poolcart-backend/api/validators"
	bidsvc "github.com/mkastler/poolcart-backend/internal/bids"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

type placeBidRequest struct {
	ProductID      string          `json:"product_id" validate:"required,uuid"`
	Quantity       decimal.Decimal `json:"quantity"`
	InterestedOnly bool            `json:"interested_only"`
	Comment        *string         `json:"comment,omitempty"`
}

// PlaceBid upserts the caller's bid for a product.
func PlaceBid(svc bidsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeBidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, _ := uuid.Parse(payload.ProductID)

		result, err := svc.PlaceBid(r.Context(), bidsvc.PlaceBidInput{
			RunID:          runID,
			UserID:         uid,
			ProductID:      productID,
			Quantity:       payload.Quantity,
			InterestedOnly: payload.InterestedOnly,
			Comment:        payload.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// RetractBid removes the caller's bid on a product. Retracting an absent bid
// succeeds and reports retracted=false.
func RetractBid(svc bidsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RetractBid(r.Context(), bidsvc.RetractBidInput{
			RunID:     runID,
			UserID:    uid,
			ProductID: productID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ListRunBids returns every bid on a run in creation order.
func ListRunBids(svc bidsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bids, err := svc.RunBids(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bids)
	}
}

// ProductTotal reports the aggregate committed quantity for one product.
func ProductTotal(svc bidsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		total, err := svc.ProductTotal(r.Context(), runID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"run_id":     runID,
			"product_id": productID,
			"total":      total,
		})
	}
}
