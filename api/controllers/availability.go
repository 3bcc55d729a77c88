package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/api/responses"
	"github.com/mkastler/poolcart-backend/api/validators"
	availsvc "github.com/mkastler/poolcart-backend/internal/availability"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

type observeRequest struct {
	ProductID    string          `json:"product_id" validate:"required,uuid"`
	StoreID      string          `json:"store_id" validate:"required,uuid"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	ObservedAt   *time.Time      `json:"observed_at,omitempty"`
}

// ObservePrice records a price observation for a product at a store.
func ObservePrice(svc availsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload observeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, _ := uuid.Parse(payload.ProductID)
		storeID, _ := uuid.Parse(payload.StoreID)

		input := availsvc.ObserveInput{
			ProductID:    productID,
			StoreID:      storeID,
			PricePerUnit: payload.PricePerUnit,
		}
		if payload.ObservedAt != nil {
			input.ObservedAt = *payload.ObservedAt
		}

		observation, err := svc.Observe(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, observation)
	}
}

// CurrentPrice returns the freshest observation for a product at a store.
func CurrentPrice(svc availsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		observation, err := svc.Current(r.Context(), productID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, observation)
	}
}

// PriceHistory returns every observation, freshest first.
func PriceHistory(svc availsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), productID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}
