package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/api/responses"
	"github.com/mkastler/poolcart-backend/api/validators"
	shopsvc "github.com/mkastler/poolcart-backend/internal/shopping"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// ShoppingList returns the materialized list for a run.
func ShoppingList(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ShoppingList(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, items)
	}
}

type correctQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

// CorrectRequestedQuantity overrides an item's requested quantity.
func CorrectRequestedQuantity(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload correctQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CorrectRequestedQuantity(r.Context(), runID, productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

type purchaseRequest struct {
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Total        decimal.Decimal `json:"total"`
}

// MarkPurchased records the first purchase of an item.
func MarkPurchased(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := decodePurchase(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.MarkPurchased(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

type addPurchaseRequest struct {
	AdditionalQuantity decimal.Decimal `json:"additional_quantity"`
	AdditionalTotal    decimal.Decimal `json:"additional_total"`
	NewPricePerUnit    decimal.Decimal `json:"new_price_per_unit"`
}

// AddMorePurchased accumulates a follow-up purchase onto a purchased item.
func AddMorePurchased(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload addPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.AddMorePurchased(r.Context(), shopsvc.AddPurchaseInput{
			RunID:              runID,
			ProductID:          productID,
			AdditionalQuantity: payload.AdditionalQuantity,
			AdditionalTotal:    payload.AdditionalTotal,
			NewPricePerUnit:    payload.NewPricePerUnit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

// UpdateItemPurchase replaces a recorded purchase verbatim.
func UpdateItemPurchase(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := decodePurchase(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItemPurchase(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

// UnpurchaseItem reverts an item to the unpurchased state.
func UnpurchaseItem(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		item, err := svc.UnpurchaseItem(r.Context(), runID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, item)
	}
}

type finishAdjustingRequest struct {
	Force bool `json:"force"`
}

// FinishAdjusting closes the adjustment window and starts distribution.
func FinishAdjusting(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload finishAdjustingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		run, err := svc.FinishAdjusting(r.Context(), runID, payload.Force)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, run)
	}
}

// Distribution returns every bid with its distributed share.
func Distribution(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bids, err := svc.Distribution(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bids)
	}
}

type pickupRequest struct {
	PickedUp bool `json:"picked_up"`
}

// MarkPickedUp toggles a bid's pickup flag during distribution.
func MarkPickedUp(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload pickupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.MarkPickedUp(r.Context(), runID, bidID, payload.PickedUp)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, bid)
	}
}

// CompleteDistribution closes the run.
func CompleteDistribution(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		run, err := svc.CompleteDistribution(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, run)
	}
}

func decodePurchase(r *http.Request) (*shopsvc.PurchaseInput, error) {
	runID, err := pathUUID(r, "runId")
	if err != nil {
		return nil, err
	}

	productID, err := pathUUID(r, "productId")
	if err != nil {
		return nil, err
	}

	var payload purchaseRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return nil, err
	}

	return &shopsvc.PurchaseInput{
		RunID:        runID,
		ProductID:    productID,
		Quantity:     payload.Quantity,
		PricePerUnit: payload.PricePerUnit,
		Total:        payload.Total,
	}, nil
}
