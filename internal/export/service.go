// Package export builds the audit view of a run: the full per-product,
// per-user breakdown of requested versus purchased versus distributed
// quantity and cost.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

// RunBreakdown is the serializable audit view of one run.
type RunBreakdown struct {
	RunID    uuid.UUID          `json:"run_id"`
	GroupID  uuid.UUID          `json:"group_id"`
	StoreID  uuid.UUID          `json:"store_id"`
	State    enums.RunState     `json:"state"`
	Products []ProductBreakdown `json:"products"`
	Users    []UserTotal        `json:"users"`
}

// ProductBreakdown covers one shopping list item and its per-user shares.
type ProductBreakdown struct {
	ProductID             uuid.UUID       `json:"product_id"`
	ProductName           string          `json:"product_name,omitempty"`
	Unit                  string          `json:"unit,omitempty"`
	RequestedQuantity     decimal.Decimal `json:"requested_quantity"`
	IsPurchased           bool            `json:"is_purchased"`
	PurchasedQuantity     decimal.Decimal `json:"purchased_quantity"`
	PurchasedPricePerUnit decimal.Decimal `json:"purchased_price_per_unit"`
	PurchasedTotal        decimal.Decimal `json:"purchased_total"`
	Shares                []UserShare     `json:"shares"`
}

// UserShare is one participant's slice of one product.
type UserShare struct {
	UserID                  uuid.UUID       `json:"user_id"`
	BidID                   uuid.UUID       `json:"bid_id"`
	RequestedQuantity       decimal.Decimal `json:"requested_quantity"`
	InterestedOnly          bool            `json:"interested_only"`
	DistributedQuantity     decimal.Decimal `json:"distributed_quantity"`
	DistributedPricePerUnit decimal.Decimal `json:"distributed_price_per_unit"`
	CostShare               decimal.Decimal `json:"cost_share"`
	IsPickedUp              bool            `json:"is_picked_up"`
}

// UserTotal aggregates one participant's cost across every product.
type UserTotal struct {
	UserID    uuid.UUID       `json:"user_id"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// Service renders run breakdowns.
type Service interface {
	RunBreakdown(ctx context.Context, runID uuid.UUID) (*RunBreakdown, error)
}

type service struct {
	store storage.Store
	logg  *logger.Logger
}

// NewService builds the export service.
func NewService(store storage.Store, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, logg: logg}, nil
}

func (s *service) RunBreakdown(ctx context.Context, runID uuid.UUID) (*RunBreakdown, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}

	run, err := s.store.Runs().Find(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "run not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run")
	}
	if !runs.CanViewDistribution(run.State) {
		return nil, pkgerrors.New(pkgerrors.CodeActionNotAllowed, "breakdown only available once distribution starts").
			WithDetails(runs.TransitionDetails{RunID: runID.String(), From: run.State.String()})
	}

	items, err := s.store.ShoppingItems().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shopping items")
	}
	bids, err := s.store.Bids().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	members, err := s.store.Participations().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list participations")
	}

	userByParticipation := make(map[uuid.UUID]uuid.UUID, len(members))
	for _, p := range members {
		userByParticipation[p.ID] = p.UserID
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.store.Products().FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	out := &RunBreakdown{
		RunID:   run.ID,
		GroupID: run.GroupID,
		StoreID: run.StoreID,
		State:   run.State,
	}

	userTotals := map[uuid.UUID]decimal.Decimal{}
	var userOrder []uuid.UUID
	for _, p := range members {
		if _, seen := userTotals[p.UserID]; !seen {
			userTotals[p.UserID] = decimal.Zero
			userOrder = append(userOrder, p.UserID)
		}
	}

	for _, item := range items {
		pb := ProductBreakdown{
			ProductID:             item.ProductID,
			RequestedQuantity:     item.RequestedQuantity,
			IsPurchased:           item.IsPurchased,
			PurchasedQuantity:     item.PurchasedQuantity,
			PurchasedPricePerUnit: item.PurchasedPricePerUnit,
			PurchasedTotal:        item.PurchasedTotal,
		}
		if product, ok := products[item.ProductID]; ok {
			pb.ProductName = product.Name
			pb.Unit = product.Unit
		}

		for _, bid := range bids {
			if bid.ProductID != item.ProductID {
				continue
			}
			userID := userByParticipation[bid.ParticipationID]
			cost := bid.DistributedQuantity.Mul(bid.DistributedPricePerUnit)
			pb.Shares = append(pb.Shares, UserShare{
				UserID:                  userID,
				BidID:                   bid.ID,
				RequestedQuantity:       bid.Quantity,
				InterestedOnly:          bid.InterestedOnly,
				DistributedQuantity:     bid.DistributedQuantity,
				DistributedPricePerUnit: bid.DistributedPricePerUnit,
				CostShare:               cost,
				IsPickedUp:              bid.IsPickedUp,
			})
			userTotals[userID] = userTotals[userID].Add(cost)
		}
		out.Products = append(out.Products, pb)
	}

	for _, userID := range userOrder {
		out.Users = append(out.Users, UserTotal{UserID: userID, TotalCost: userTotals[userID]})
	}
	return out, nil
}
