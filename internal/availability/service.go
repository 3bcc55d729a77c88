// Package availability keeps the append-only price history of products at
// stores. The most recent observation wins as the current price.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// Service records and reads price observations.
type Service interface {
	Observe(ctx context.Context, input ObserveInput) (*models.ProductAvailability, error)
	Current(ctx context.Context, productID, storeID uuid.UUID) (*models.ProductAvailability, error)
	History(ctx context.Context, productID, storeID uuid.UUID) ([]models.ProductAvailability, error)
}

// ObserveInput is one price sighting. A zero ObservedAt means "now".
type ObserveInput struct {
	ProductID    uuid.UUID
	StoreID      uuid.UUID
	PricePerUnit decimal.Decimal
	ObservedAt   time.Time
}

type service struct {
	store storage.Store
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the availability service.
func NewService(store storage.Store, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, logg: logg, now: time.Now}, nil
}

func (s *service) Observe(ctx context.Context, input ObserveInput) (*models.ProductAvailability, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.PricePerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	observedAt := input.ObservedAt
	if observedAt.IsZero() {
		observedAt = s.now().UTC()
	}

	obs, err := s.store.Availability().Create(ctx, &models.ProductAvailability{
		ProductID:    input.ProductID,
		StoreID:      input.StoreID,
		PricePerUnit: input.PricePerUnit,
		ObservedAt:   observedAt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record observation")
	}
	return obs, nil
}

func (s *service) Current(ctx context.Context, productID, storeID uuid.UUID) (*models.ProductAvailability, error) {
	if productID == uuid.Nil || storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and store id required")
	}
	obs, err := s.store.Availability().Latest(ctx, productID, storeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no price observed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current price")
	}
	return obs, nil
}

func (s *service) History(ctx context.Context, productID, storeID uuid.UUID) ([]models.ProductAvailability, error) {
	if productID == uuid.Nil || storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and store id required")
	}
	out, err := s.store.Availability().ListByProductAndStore(ctx, productID, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history")
	}
	return out, nil
}
