// Package bids is the run's bid ledger: per-participant quantity
// commitments per product, recorded under the state machine's gate.
package bids

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// Service records and aggregates bids.
type Service interface {
	PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error)
	RetractBid(ctx context.Context, input RetractBidInput) (*RetractBidResult, error)
	ProductTotal(ctx context.Context, runID, productID uuid.UUID) (decimal.Decimal, error)
	RunBids(ctx context.Context, runID uuid.UUID) ([]models.Bid, error)
}

// PlaceBidInput upserts one commitment. Quantity zero plus InterestedOnly
// is the canonical "interest, no commitment" marker.
type PlaceBidInput struct {
	RunID          uuid.UUID
	UserID         uuid.UUID
	ProductID      uuid.UUID
	Quantity       decimal.Decimal
	InterestedOnly bool
	Comment        *string
}

// PlaceBidResult carries the stored bid and the run's new aggregate
// committed quantity for the product.
type PlaceBidResult struct {
	Bid          models.Bid
	ProductTotal decimal.Decimal
}

// RetractBidInput removes one commitment. Retracting an absent bid is a
// no-op success.
type RetractBidInput struct {
	RunID     uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
}

// RetractBidResult reports whether a row was deleted and the remaining
// aggregate for the product.
type RetractBidResult struct {
	Retracted    bool
	ProductTotal decimal.Decimal
}

type service struct {
	store    storage.Store
	notifier notifications.Notifier
	logg     *logger.Logger
}

// NewService builds the bid ledger service.
func NewService(store storage.Store, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, notifier: notifier, logg: logg}, nil
}

func (s *service) PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error) {
	if input.RunID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var result PlaceBidResult
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, participation, err := s.loadRunAndParticipation(ctx, tx, input.RunID, input.UserID)
		if err != nil {
			return err
		}
		if !runs.CanPlaceBid(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "bidding is closed in current state").
				WithDetails(runs.TransitionDetails{RunID: run.ID.String(), From: run.State.String()})
		}

		existing, err := tx.Bids().FindByParticipationAndProduct(ctx, participation.ID, input.ProductID)
		switch {
		case err == nil:
			// in-place overwrite, no bid history
			update := storage.BidUpdate{
				Quantity:       &input.Quantity,
				InterestedOnly: &input.InterestedOnly,
				Comment:        input.Comment,
				SetComment:     true,
			}
			if err := tx.Bids().Update(ctx, existing.ID, update); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bid")
			}
			reloaded, err := tx.Bids().Find(ctx, existing.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload bid")
			}
			result.Bid = *reloaded
		case errors.Is(err, storage.ErrNotFound):
			created, err := tx.Bids().Create(ctx, &models.Bid{
				ParticipationID: participation.ID,
				ProductID:       input.ProductID,
				Quantity:        input.Quantity,
				InterestedOnly:  input.InterestedOnly,
				Comment:         input.Comment,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
			}
			result.Bid = *created
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}

		total, err := productTotal(ctx, tx, input.RunID, input.ProductID)
		if err != nil {
			return err
		}
		result.ProductTotal = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:      enums.NotificationBidPlaced,
		RunID:     input.RunID,
		UserID:    &input.UserID,
		ProductID: &input.ProductID,
		Quantity:  &input.Quantity,
	})
	return &result, nil
}

func (s *service) RetractBid(ctx context.Context, input RetractBidInput) (*RetractBidResult, error) {
	if input.RunID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result RetractBidResult
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, participation, err := s.loadRunAndParticipation(ctx, tx, input.RunID, input.UserID)
		if err != nil {
			return err
		}
		if !runs.CanRetractBid(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "bidding is closed in current state").
				WithDetails(runs.TransitionDetails{RunID: run.ID.String(), From: run.State.String()})
		}

		existing, err := tx.Bids().FindByParticipationAndProduct(ctx, participation.ID, input.ProductID)
		switch {
		case err == nil:
			if err := tx.Bids().Delete(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bid")
			}
			result.Retracted = true
		case errors.Is(err, storage.ErrNotFound):
			// absent bid, nothing to do
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}

		total, err := productTotal(ctx, tx, input.RunID, input.ProductID)
		if err != nil {
			return err
		}
		result.ProductTotal = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Retracted {
		s.notifier.Notify(ctx, notifications.Fact{
			Kind:      enums.NotificationBidRetracted,
			RunID:     input.RunID,
			UserID:    &input.UserID,
			ProductID: &input.ProductID,
		})
	}
	return &result, nil
}

func (s *service) ProductTotal(ctx context.Context, runID, productID uuid.UUID) (decimal.Decimal, error) {
	if runID == uuid.Nil || productID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "run id and product id required")
	}
	return productTotal(ctx, s.store, runID, productID)
}

func (s *service) RunBids(ctx context.Context, runID uuid.UUID) ([]models.Bid, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	out, err := s.store.Bids().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return out, nil
}

// productTotal sums the committed (non-interested) quantities for a product
// within a run.
func productTotal(ctx context.Context, tx storage.Store, runID, productID uuid.UUID) (decimal.Decimal, error) {
	bids, err := tx.Bids().ListByRunAndProduct(ctx, runID, productID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate bids")
	}
	total := decimal.Zero
	for _, bid := range bids {
		if bid.InterestedOnly {
			continue
		}
		total = total.Add(bid.Quantity)
	}
	return total, nil
}

func (s *service) loadRunAndParticipation(ctx context.Context, tx storage.Store, runID, userID uuid.UUID) (*models.Run, *models.Participation, error) {
	run, err := tx.Runs().Find(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "run not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run")
	}

	p, err := tx.Participations().FindByRunAndUser(ctx, runID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "participation not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participation")
	}
	if p.IsRemoved {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "participation not found")
	}
	return run, p, nil
}
