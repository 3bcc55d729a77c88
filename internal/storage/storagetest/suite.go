// Package storagetest holds the contract suite every storage backend must
// pass. Backend packages invoke RunSuite from their own tests so the SQL
// and in-memory stores stay behaviourally interchangeable.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/pagination"
)

// Factory opens a fresh, empty store for one test.
type Factory func(t *testing.T) storage.Store

// RunSuite exercises the full storage contract against the backend the
// factory produces.
func RunSuite(t *testing.T, factory Factory) {
	t.Run("RunLifecycleFields", func(t *testing.T) { testRunLifecycleFields(t, factory(t)) })
	t.Run("RunListByGroup", func(t *testing.T) { testRunListByGroup(t, factory(t)) })
	t.Run("ParticipationUniqueness", func(t *testing.T) { testParticipationUniqueness(t, factory(t)) })
	t.Run("BidOrderingAndUpdates", func(t *testing.T) { testBidOrderingAndUpdates(t, factory(t)) })
	t.Run("ShoppingItems", func(t *testing.T) { testShoppingItems(t, factory(t)) })
	t.Run("ReassignmentPendingUniqueness", func(t *testing.T) { testReassignmentPendingUniqueness(t, factory(t)) })
	t.Run("AvailabilityLatest", func(t *testing.T) { testAvailabilityLatest(t, factory(t)) })
	t.Run("ProductsAndNotifications", func(t *testing.T) { testProductsAndNotifications(t, factory(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, factory(t)) })
	t.Run("AtomicNested", func(t *testing.T) { testAtomicNested(t, factory(t)) })
}

func createRun(t *testing.T, store storage.Store, groupID uuid.UUID) *models.Run {
	t.Helper()
	run, err := store.Runs().Create(context.Background(), &models.Run{
		GroupID: groupID,
		StoreID: uuid.New(),
		State:   enums.RunStatePlanning,
	})
	require.NoError(t, err)
	return run
}

func createParticipation(t *testing.T, store storage.Store, runID uuid.UUID, leader bool) *models.Participation {
	t.Helper()
	p, err := store.Participations().Create(context.Background(), &models.Participation{
		RunID:    runID,
		UserID:   uuid.New(),
		IsLeader: leader,
	})
	require.NoError(t, err)
	return p
}

func testRunLifecycleFields(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())
	require.NotEqual(t, uuid.Nil, run.ID)

	_, err := store.Runs().Find(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	active := enums.RunStateActive
	now := time.Now().UTC()
	comment := "meet at the north entrance"
	require.NoError(t, store.Runs().Update(ctx, run.ID, storage.RunUpdate{
		State:       &active,
		Comment:     &comment,
		SetComment:  true,
		ActivatedAt: &now,
	}))

	got, err := store.Runs().Find(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStateActive, got.State)
	require.NotNil(t, got.Comment)
	assert.Equal(t, comment, *got.Comment)
	require.NotNil(t, got.ActivatedAt)

	require.NoError(t, store.Runs().Update(ctx, run.ID, storage.RunUpdate{SetComment: true}))
	got, err = store.Runs().Find(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Comment)
	assert.NotNil(t, got.ActivatedAt, "clearing the comment must not touch timestamps")

	err = store.Runs().Update(ctx, uuid.New(), storage.RunUpdate{State: &active})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testRunListByGroup(t *testing.T, store storage.Store) {
	ctx := context.Background()
	groupID := uuid.New()

	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		run := createRun(t, store, groupID)
		created = append(created, run.ID)
		time.Sleep(2 * time.Millisecond)
	}
	createRun(t, store, uuid.New()) // other group, must not appear

	page, err := store.Runs().ListByGroup(ctx, groupID, storage.RunFilter{}, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Runs, 3)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, created[0], page.Runs[0].ID)
	assert.Equal(t, created[2], page.Runs[2].ID)

	rest, err := store.Runs().ListByGroup(ctx, groupID, storage.RunFilter{}, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Runs, 2)
	assert.Empty(t, rest.NextCursor)
	assert.Equal(t, created[3], rest.Runs[0].ID)
	assert.Equal(t, created[4], rest.Runs[1].ID)

	cancelled := enums.RunStateCancelled
	require.NoError(t, store.Runs().Update(ctx, created[1], storage.RunUpdate{State: &cancelled}))
	filtered, err := store.Runs().ListByGroup(ctx, groupID, storage.RunFilter{States: []enums.RunState{enums.RunStateCancelled}}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, filtered.Runs, 1)
	assert.Equal(t, created[1], filtered.Runs[0].ID)
}

func testParticipationUniqueness(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())
	userID := uuid.New()

	first, err := store.Participations().Create(ctx, &models.Participation{RunID: run.ID, UserID: userID, IsLeader: true})
	require.NoError(t, err)

	_, err = store.Participations().Create(ctx, &models.Participation{RunID: run.ID, UserID: userID})
	require.ErrorIs(t, err, storage.ErrDuplicate)

	found, err := store.Participations().FindByRunAndUser(ctx, run.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
	assert.True(t, found.IsLeader)

	removed := true
	ready := true
	require.NoError(t, store.Participations().Update(ctx, first.ID, storage.ParticipationUpdate{IsRemoved: &removed, IsReady: &ready}))
	found, err = store.Participations().Find(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, found.IsRemoved)
	assert.True(t, found.IsReady)
	assert.True(t, found.IsLeader, "untouched fields survive partial updates")

	second := createParticipation(t, store, run.ID, false)
	list, err := store.Participations().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func testBidOrderingAndUpdates(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())
	alice := createParticipation(t, store, run.ID, true)
	bob := createParticipation(t, store, run.ID, false)
	productID := uuid.New()

	bidAlice, err := store.Bids().Create(ctx, &models.Bid{
		ParticipationID: alice.ID,
		ProductID:       productID,
		Quantity:        decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	bidBob, err := store.Bids().Create(ctx, &models.Bid{
		ParticipationID: bob.ID,
		ProductID:       productID,
		Quantity:        decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	_, err = store.Bids().Create(ctx, &models.Bid{
		ParticipationID: alice.ID,
		ProductID:       productID,
		Quantity:        decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)

	byRun, err := store.Bids().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, byRun, 2)
	assert.Equal(t, bidAlice.ID, byRun[0].ID, "run listing follows bid creation order")
	assert.Equal(t, bidBob.ID, byRun[1].ID)

	byProduct, err := store.Bids().ListByRunAndProduct(ctx, run.ID, productID)
	require.NoError(t, err)
	require.Len(t, byProduct, 2)

	qty := decimal.NewFromFloat(4.5)
	interested := true
	require.NoError(t, store.Bids().Update(ctx, bidBob.ID, storage.BidUpdate{Quantity: &qty, InterestedOnly: &interested}))
	got, err := store.Bids().Find(ctx, bidBob.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(qty))
	assert.True(t, got.InterestedOnly)

	require.NoError(t, store.Bids().Delete(ctx, bidBob.ID))
	require.NoError(t, store.Bids().Delete(ctx, bidBob.ID), "deleting an absent bid is a no-op")
	_, err = store.Bids().Find(ctx, bidBob.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testShoppingItems(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())
	productA := uuid.New()
	productB := uuid.New()

	items := []models.ShoppingListItem{
		{RunID: run.ID, ProductID: productA, RequestedQuantity: decimal.NewFromInt(10)},
		{RunID: run.ID, ProductID: productB, RequestedQuantity: decimal.NewFromInt(4)},
	}
	require.NoError(t, store.ShoppingItems().CreateBatch(ctx, items))

	err := store.ShoppingItems().CreateBatch(ctx, []models.ShoppingListItem{
		{RunID: run.ID, ProductID: productA, RequestedQuantity: decimal.NewFromInt(1)},
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)

	listed, err := store.ShoppingItems().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	item, err := store.ShoppingItems().FindByRunAndProduct(ctx, run.ID, productA)
	require.NoError(t, err)
	assert.True(t, item.RequestedQuantity.Equal(decimal.NewFromInt(10)))

	max, err := store.ShoppingItems().MaxPurchaseOrder(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	purchased := true
	order := 1
	qty := decimal.NewFromInt(9)
	price := decimal.NewFromFloat(2.5)
	total := qty.Mul(price)
	require.NoError(t, store.ShoppingItems().Update(ctx, item.ID, storage.ShoppingItemUpdate{
		IsPurchased:           &purchased,
		PurchasedQuantity:     &qty,
		PurchasedPricePerUnit: &price,
		PurchasedTotal:        &total,
		PurchaseOrder:         &order,
	}))

	max, err = store.ShoppingItems().MaxPurchaseOrder(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, max)

	require.NoError(t, store.ShoppingItems().DeleteByRun(ctx, run.ID))
	listed, err = store.ShoppingItems().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func testReassignmentPendingUniqueness(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())
	from := uuid.New()
	to := uuid.New()

	req, err := store.Reassignments().Create(ctx, &models.ReassignmentRequest{
		RunID:      run.ID,
		FromUserID: from,
		ToUserID:   to,
		Status:     enums.ReassignmentStatusPending,
	})
	require.NoError(t, err)

	_, err = store.Reassignments().Create(ctx, &models.ReassignmentRequest{
		RunID:      run.ID,
		FromUserID: from,
		ToUserID:   uuid.New(),
		Status:     enums.ReassignmentStatusPending,
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)

	pending, err := store.Reassignments().FindPendingByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, pending.ID)

	accepted := enums.ReassignmentStatusAccepted
	now := time.Now().UTC()
	require.NoError(t, store.Reassignments().Update(ctx, req.ID, storage.ReassignmentUpdate{Status: &accepted, ResolvedAt: &now}))

	_, err = store.Reassignments().FindPendingByRun(ctx, run.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// resolved request out of the way, a new pending one is allowed
	_, err = store.Reassignments().Create(ctx, &models.ReassignmentRequest{
		RunID:      run.ID,
		FromUserID: from,
		ToUserID:   uuid.New(),
		Status:     enums.ReassignmentStatusPending,
	})
	require.NoError(t, err)

	history, err := store.Reassignments().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func testAvailabilityLatest(t *testing.T, store storage.Store) {
	ctx := context.Background()
	productID := uuid.New()
	storeID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	for i, price := range []string{"2.00", "2.25", "1.95"} {
		p, err := decimal.NewFromString(price)
		require.NoError(t, err)
		_, err = store.Availability().Create(ctx, &models.ProductAvailability{
			ProductID:    productID,
			StoreID:      storeID,
			PricePerUnit: p,
			ObservedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	latest, err := store.Availability().Latest(ctx, productID, storeID)
	require.NoError(t, err)
	assert.True(t, latest.PricePerUnit.Equal(decimal.RequireFromString("1.95")))

	_, err = store.Availability().Latest(ctx, productID, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	history, err := store.Availability().ListByProductAndStore(ctx, productID, storeID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].ObservedAt.After(history[2].ObservedAt))
}

func testProductsAndNotifications(t *testing.T, store storage.Store) {
	ctx := context.Background()

	flour, err := store.Products().Create(ctx, &models.Product{Name: "flour", Unit: "kg", UnitStep: decimal.NewFromFloat(0.5)})
	require.NoError(t, err)
	eggs, err := store.Products().Create(ctx, &models.Product{Name: "eggs", Unit: "piece", UnitStep: decimal.NewFromInt(1)})
	require.NoError(t, err)

	byID, err := store.Products().FindByIDs(ctx, []uuid.UUID{flour.ID, eggs.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, "flour", byID[flour.ID].Name)

	all, err := store.Products().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "eggs", all[0].Name)

	run := createRun(t, store, uuid.New())
	_, err = store.Notifications().Create(ctx, &models.Notification{
		RunID:   run.ID,
		Kind:    enums.NotificationRunStateChanged,
		Payload: []byte(`{"from":"planning","to":"active"}`),
	})
	require.NoError(t, err)

	notes, err := store.Notifications().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, enums.NotificationRunStateChanged, notes[0].Kind)
}

func testAtomicRollback(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())

	boom := assert.AnError
	err := store.Atomic(ctx, func(tx storage.Store) error {
		active := enums.RunStateActive
		if err := tx.Runs().Update(ctx, run.ID, storage.RunUpdate{State: &active}); err != nil {
			return err
		}
		if _, err := tx.Participations().Create(ctx, &models.Participation{RunID: run.ID, UserID: uuid.New()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Runs().Find(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStatePlanning, got.State)
	list, err := store.Participations().ListByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testAtomicNested(t *testing.T, store storage.Store) {
	ctx := context.Background()
	run := createRun(t, store, uuid.New())

	err := store.Atomic(ctx, func(tx storage.Store) error {
		active := enums.RunStateActive
		if err := tx.Runs().Update(ctx, run.ID, storage.RunUpdate{State: &active}); err != nil {
			return err
		}
		// inner failure rolls back only the inner writes
		innerErr := tx.Atomic(ctx, func(inner storage.Store) error {
			cancelled := enums.RunStateCancelled
			if err := inner.Runs().Update(ctx, run.ID, storage.RunUpdate{State: &cancelled}); err != nil {
				return err
			}
			return assert.AnError
		})
		if innerErr == nil {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)

	got, err := store.Runs().Find(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStateActive, got.State)
}
