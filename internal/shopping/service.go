// Package shopping turns bids into a shopping list, records what the leader
// actually bought and apportions the purchases back onto individual bids.
package shopping

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// Service is the shopping and distribution engine. It also implements
// runs.LifecycleHooks so transitions into CONFIRMED and DISTRIBUTING pick up
// materialization and reconciliation inside the same unit of work.
type Service interface {
	runs.LifecycleHooks

	ShoppingList(ctx context.Context, runID uuid.UUID) ([]models.ShoppingListItem, error)
	CorrectRequestedQuantity(ctx context.Context, runID, productID uuid.UUID, quantity decimal.Decimal) (*models.ShoppingListItem, error)

	MarkPurchased(ctx context.Context, input PurchaseInput) (*models.ShoppingListItem, error)
	AddMorePurchased(ctx context.Context, input AddPurchaseInput) (*models.ShoppingListItem, error)
	UpdateItemPurchase(ctx context.Context, input PurchaseInput) (*models.ShoppingListItem, error)
	UnpurchaseItem(ctx context.Context, runID, productID uuid.UUID) (*models.ShoppingListItem, error)

	FinishAdjusting(ctx context.Context, runID uuid.UUID, force bool) (*models.Run, error)
	Distribution(ctx context.Context, runID uuid.UUID) ([]models.Bid, error)
	MarkPickedUp(ctx context.Context, runID, bidID uuid.UUID, pickedUp bool) (*models.Bid, error)
	CompleteDistribution(ctx context.Context, runID uuid.UUID) (*models.Run, error)
}

// PurchaseInput carries the three purchase fields, stored verbatim.
type PurchaseInput struct {
	RunID        uuid.UUID
	ProductID    uuid.UUID
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Total        decimal.Decimal
}

// AddPurchaseInput accumulates onto an already-purchased item. The engine
// never recomputes the weighted-average price; NewPricePerUnit is stored as
// supplied.
type AddPurchaseInput struct {
	RunID              uuid.UUID
	ProductID          uuid.UUID
	AdditionalQuantity decimal.Decimal
	AdditionalTotal    decimal.Decimal
	NewPricePerUnit    decimal.Decimal
}

type service struct {
	store    storage.Store
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the shopping engine.
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
	return &service{store: store, notifier: notifier, logg: logg, now: time.Now}, nil
}

// MaterializeShoppingList creates one item per product holding at least one
// committed bid, with the summed committed quantity. Runs once, on the
// run's first entry into CONFIRMED; later corrections go through
// CorrectRequestedQuantity.
func (s *service) MaterializeShoppingList(ctx context.Context, tx storage.Store, run *models.Run) error {
	existing, err := tx.ShoppingItems().ListByRun(ctx, run.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shopping items")
	}
	if len(existing) > 0 {
		return nil
	}

	bids, err := tx.Bids().ListByRun(ctx, run.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}

	totals := map[uuid.UUID]decimal.Decimal{}
	var productOrder []uuid.UUID
	for _, bid := range bids {
		if bid.InterestedOnly {
			continue
		}
		if _, seen := totals[bid.ProductID]; !seen {
			productOrder = append(productOrder, bid.ProductID)
		}
		totals[bid.ProductID] = totals[bid.ProductID].Add(bid.Quantity)
	}
	if len(productOrder) == 0 {
		return nil
	}

	items := make([]models.ShoppingListItem, 0, len(productOrder))
	for _, productID := range productOrder {
		items = append(items, models.ShoppingListItem{
			RunID:             run.ID,
			ProductID:         productID,
			RequestedQuantity: totals[productID],
		})
	}
	if err := tx.ShoppingItems().CreateBatch(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "materialize shopping list")
	}
	return nil
}

// DistributePurchases reconciles every item against its product's bids. The
// uniform per-bid price is the item's purchased price; interested-only bids
// always end at zero quantity.
func (s *service) DistributePurchases(ctx context.Context, tx storage.Store, run *models.Run) error {
	items, err := tx.ShoppingItems().ListByRun(ctx, run.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shopping items")
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := tx.Products().FindByIDs(ctx, productIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	for _, item := range items {
		bids, err := tx.Bids().ListByRunAndProduct(ctx, run.ID, item.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids for product")
		}

		step := decimal.NewFromInt(1)
		if product, ok := products[item.ProductID]; ok && product.UnitStep.IsPositive() {
			step = product.UnitStep
		}

		for _, alloc := range apportion(item, bids, step) {
			qty := alloc.Quantity
			price := alloc.PricePerUnit
			if err := tx.Bids().Update(ctx, alloc.BidID, storage.BidUpdate{
				DistributedQuantity:     &qty,
				DistributedPricePerUnit: &price,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write distribution")
			}
		}
	}
	return nil
}

func (s *service) ShoppingList(ctx context.Context, runID uuid.UUID) ([]models.ShoppingListItem, error) {
	run, err := s.loadRun(ctx, s.store, runID)
	if err != nil {
		return nil, err
	}
	if !runs.CanViewShoppingList(run.State) {
		return nil, pkgerrors.New(pkgerrors.CodeActionNotAllowed, "shopping list not available in current state").
			WithDetails(runs.TransitionDetails{RunID: runID.String(), From: run.State.String()})
	}
	items, err := s.store.ShoppingItems().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shopping items")
	}
	return items, nil
}

func (s *service) CorrectRequestedQuantity(ctx context.Context, runID, productID uuid.UUID, quantity decimal.Decimal) (*models.ShoppingListItem, error) {
	if quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var updated *models.ShoppingListItem
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, item, err := s.loadRunAndItem(ctx, tx, runID, productID)
		if err != nil {
			return err
		}
		if !runs.CanViewShoppingList(run.State) || run.State.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "shopping list not editable in current state")
		}

		if err := tx.ShoppingItems().Update(ctx, item.ID, storage.ShoppingItemUpdate{RequestedQuantity: &quantity}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "correct requested quantity")
		}
		updated, err = tx.ShoppingItems().Find(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) MarkPurchased(ctx context.Context, input PurchaseInput) (*models.ShoppingListItem, error) {
	if err := validatePurchaseFields(input.Quantity, input.PricePerUnit, input.Total); err != nil {
		return nil, err
	}

	var updated *models.ShoppingListItem
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, item, err := s.loadRunAndItem(ctx, tx, input.RunID, input.ProductID)
		if err != nil {
			return err
		}
		if !runs.CanRecordPurchase(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "purchases cannot be recorded in current state").
				WithDetails(runs.TransitionDetails{RunID: input.RunID.String(), From: run.State.String()})
		}
		if item.IsPurchased {
			return pkgerrors.New(pkgerrors.CodeConflict, "item already purchased")
		}

		maxOrder, err := tx.ShoppingItems().MaxPurchaseOrder(ctx, input.RunID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next purchase order")
		}

		purchased := true
		order := maxOrder + 1
		if err := tx.ShoppingItems().Update(ctx, item.ID, storage.ShoppingItemUpdate{
			IsPurchased:           &purchased,
			PurchasedQuantity:     &input.Quantity,
			PurchasedPricePerUnit: &input.PricePerUnit,
			PurchasedTotal:        &input.Total,
			PurchaseOrder:         &order,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchase")
		}
		updated, err = tx.ShoppingItems().Find(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:      enums.NotificationPurchaseRecorded,
		RunID:     input.RunID,
		ProductID: &input.ProductID,
		Quantity:  &input.Quantity,
	})
	return updated, nil
}

func (s *service) AddMorePurchased(ctx context.Context, input AddPurchaseInput) (*models.ShoppingListItem, error) {
	if err := validatePurchaseFields(input.AdditionalQuantity, input.NewPricePerUnit, input.AdditionalTotal); err != nil {
		return nil, err
	}

	var updated *models.ShoppingListItem
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, item, err := s.loadRunAndItem(ctx, tx, input.RunID, input.ProductID)
		if err != nil {
			return err
		}
		if !runs.CanRecordPurchase(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "purchases cannot be recorded in current state")
		}
		if !item.IsPurchased {
			return pkgerrors.New(pkgerrors.CodeConflict, "item has no purchase to extend")
		}

		// the caller supplies the weighted-average price; the engine only
		// accumulates quantity and total
		qty := item.PurchasedQuantity.Add(input.AdditionalQuantity)
		total := item.PurchasedTotal.Add(input.AdditionalTotal)
		if err := tx.ShoppingItems().Update(ctx, item.ID, storage.ShoppingItemUpdate{
			PurchasedQuantity:     &qty,
			PurchasedPricePerUnit: &input.NewPricePerUnit,
			PurchasedTotal:        &total,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extend purchase")
		}
		updated, err = tx.ShoppingItems().Find(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:      enums.NotificationPurchaseRecorded,
		RunID:     input.RunID,
		ProductID: &input.ProductID,
		Quantity:  &input.AdditionalQuantity,
	})
	return updated, nil
}

func (s *service) UpdateItemPurchase(ctx context.Context, input PurchaseInput) (*models.ShoppingListItem, error) {
	if err := validatePurchaseFields(input.Quantity, input.PricePerUnit, input.Total); err != nil {
		return nil, err
	}

	var updated *models.ShoppingListItem
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, item, err := s.loadRunAndItem(ctx, tx, input.RunID, input.ProductID)
		if err != nil {
			return err
		}
		if !runs.CanRecordPurchase(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "purchases cannot be recorded in current state")
		}
		if !item.IsPurchased {
			return pkgerrors.New(pkgerrors.CodeConflict, "item has no purchase to correct")
		}

		// correction path: verbatim replacement, purchase_order untouched
		if err := tx.ShoppingItems().Update(ctx, item.ID, storage.ShoppingItemUpdate{
			PurchasedQuantity:     &input.Quantity,
			PurchasedPricePerUnit: &input.PricePerUnit,
			PurchasedTotal:        &input.Total,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "correct purchase")
		}
		updated, err = tx.ShoppingItems().Find(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) UnpurchaseItem(ctx context.Context, runID, productID uuid.UUID) (*models.ShoppingListItem, error) {
	var updated *models.ShoppingListItem
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, item, err := s.loadRunAndItem(ctx, tx, runID, productID)
		if err != nil {
			return err
		}
		if !runs.CanRecordPurchase(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "purchases cannot be recorded in current state")
		}
		if !item.IsPurchased {
			return pkgerrors.New(pkgerrors.CodeConflict, "item is not purchased")
		}

		purchased := false
		zero := decimal.Zero
		order := 0
		if err := tx.ShoppingItems().Update(ctx, item.ID, storage.ShoppingItemUpdate{
			IsPurchased:           &purchased,
			PurchasedQuantity:     &zero,
			PurchasedPricePerUnit: &zero,
			PurchasedTotal:        &zero,
			PurchaseOrder:         &order,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear purchase")
		}
		updated, err = tx.ShoppingItems().Find(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Fact{
		Kind:      enums.NotificationPurchaseCleared,
		RunID:     runID,
		ProductID: &productID,
	})
	return updated, nil
}

// FinishAdjusting moves the run into DISTRIBUTING and reconciles. With
// force=false the call fails if any item's requested quantity no longer
// matches the live committed bid total, protecting against a stale list.
func (s *service) FinishAdjusting(ctx context.Context, runID uuid.UUID, force bool) (*models.Run, error) {
	var (
		updated *models.Run
		from    enums.RunState
	)
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		from = run.State

		if !force {
			if err := s.checkListFreshness(ctx, tx, runID); err != nil {
				return err
			}
		}

		updated, err = runs.Apply(ctx, tx, run, enums.RunStateDistributing, s.now())
		if err != nil {
			return err
		}
		return s.DistributePurchases(ctx, tx, updated)
	})
	if err != nil {
		return nil, err
	}

	to := enums.RunStateDistributing
	s.notifier.Notify(ctx, notifications.Fact{
		Kind:      enums.NotificationRunStateChanged,
		RunID:     runID,
		FromState: &from,
		ToState:   &to,
	})
	s.notifier.Notify(ctx, notifications.Fact{
		Kind:  enums.NotificationDistributionReady,
		RunID: runID,
	})
	return updated, nil
}

func (s *service) Distribution(ctx context.Context, runID uuid.UUID) ([]models.Bid, error) {
	run, err := s.loadRun(ctx, s.store, runID)
	if err != nil {
		return nil, err
	}
	if !runs.CanViewDistribution(run.State) {
		return nil, pkgerrors.New(pkgerrors.CodeActionNotAllowed, "distribution not available in current state").
			WithDetails(runs.TransitionDetails{RunID: runID.String(), From: run.State.String()})
	}
	bids, err := s.store.Bids().ListByRun(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return bids, nil
}

func (s *service) MarkPickedUp(ctx context.Context, runID, bidID uuid.UUID, pickedUp bool) (*models.Bid, error) {
	var updated *models.Bid
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if !runs.CanViewDistribution(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "pickup tracking only available after distribution")
		}

		bid, err := tx.Bids().Find(ctx, bidID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bid")
		}
		p, err := tx.Participations().Find(ctx, bid.ParticipationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participation")
		}
		if p.RunID != runID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
		}

		if err := tx.Bids().Update(ctx, bid.ID, storage.BidUpdate{IsPickedUp: &pickedUp}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pickup flag")
		}
		updated, err = tx.Bids().Find(ctx, bid.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload bid")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) CompleteDistribution(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	var (
		updated *models.Run
		from    enums.RunState
	)
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		run, err := s.loadRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		from = run.State
		if !runs.CanCompleteDistribution(run.State) {
			return pkgerrors.New(pkgerrors.CodeActionNotAllowed, "distribution cannot complete in current state").
				WithDetails(runs.TransitionDetails{RunID: runID.String(), From: run.State.String()})
		}

		updated, err = runs.Apply(ctx, tx, run, enums.RunStateCompleted, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	to := enums.RunStateCompleted
	s.notifier.Notify(ctx, notifications.Fact{
		Kind:      enums.NotificationRunStateChanged,
		RunID:     runID,
		FromState: &from,
		ToState:   &to,
	})
	return updated, nil
}

// checkListFreshness fails when any item's requested quantity diverges from
// the live committed bid total for its product. Any decimal inequality
// counts; there is no tolerance window.
func (s *service) checkListFreshness(ctx context.Context, tx storage.Store, runID uuid.UUID) error {
	items, err := tx.ShoppingItems().ListByRun(ctx, runID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shopping items")
	}
	bids, err := tx.Bids().ListByRun(ctx, runID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}

	liveTotals := map[uuid.UUID]decimal.Decimal{}
	for _, bid := range bids {
		if bid.InterestedOnly {
			continue
		}
		liveTotals[bid.ProductID] = liveTotals[bid.ProductID].Add(bid.Quantity)
	}

	for _, item := range items {
		live := liveTotals[item.ProductID]
		if !item.RequestedQuantity.Equal(live) {
			return pkgerrors.New(pkgerrors.CodeValidation, "shopping list is stale against live bids").
				WithDetails(map[string]string{
					"run_id":     runID.String(),
					"product_id": item.ProductID.String(),
					"requested":  item.RequestedQuantity.String(),
					"live_total": live.String(),
				})
		}
	}
	return nil
}

func validatePurchaseFields(quantity, price, total decimal.Decimal) error {
	if quantity.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if total.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "total must not be negative")
	}
	return nil
}

func (s *service) loadRun(ctx context.Context, tx storage.Store, runID uuid.UUID) (*models.Run, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	run, err := tx.Runs().Find(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "run not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load run")
	}
	return run, nil
}

func (s *service) loadRunAndItem(ctx context.Context, tx storage.Store, runID, productID uuid.UUID) (*models.Run, *models.ShoppingListItem, error) {
	run, err := s.loadRun(ctx, tx, runID)
	if err != nil {
		return nil, nil, err
	}
	item, err := tx.ShoppingItems().FindByRunAndProduct(ctx, runID, productID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "shopping list item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shopping item")
	}
	return run, item, nil
}
