package bids

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/notifications"
	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

type fixture struct {
	store    storage.Store
	runs     runs.Service
	bids     Service
	runID    uuid.UUID
	leaderID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	logg := logger.New(logger.Options{ServiceName: "test"})

	runSvc, err := runs.NewService(store, runs.NopHooks{}, notifications.NopNotifier{}, logg)
	require.NoError(t, err)
	bidSvc, err := NewService(store, notifications.NopNotifier{}, logg)
	require.NoError(t, err)

	leaderID := uuid.New()
	run, err := runSvc.CreateRun(context.Background(), runs.CreateRunInput{
		GroupID:   uuid.New(),
		StoreID:   uuid.New(),
		CreatorID: leaderID,
	})
	require.NoError(t, err)

	return &fixture{store: store, runs: runSvc, bids: bidSvc, runID: run.ID, leaderID: leaderID}
}

func (f *fixture) transition(t *testing.T, target enums.RunState) {
	t.Helper()
	_, err := f.runs.Transition(context.Background(), runs.TransitionInput{RunID: f.runID, Target: target})
	require.NoError(t, err)
}

func TestPlaceRetractAggregateScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := uuid.New()

	// place qty=3 while planning
	placed, err := f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: productID,
		Quantity:  decimal.NewFromInt(3),
	})
	require.NoError(t, err)
	assert.True(t, placed.ProductTotal.Equal(decimal.NewFromInt(3)))

	f.transition(t, enums.RunStateActive)

	// retraction is allowed in active; total drops to zero
	retracted, err := f.bids.RetractBid(ctx, RetractBidInput{RunID: f.runID, UserID: f.leaderID, ProductID: productID})
	require.NoError(t, err)
	assert.True(t, retracted.Retracted)
	assert.True(t, retracted.ProductTotal.IsZero())
}

func TestPlaceBidUpsertsInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := uuid.New()

	first, err := f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: productID,
		Quantity:  decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	second, err := f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: productID,
		Quantity:  decimal.NewFromFloat(4.5),
	})
	require.NoError(t, err)
	assert.Equal(t, first.Bid.ID, second.Bid.ID, "upsert keeps the same row")
	assert.True(t, second.ProductTotal.Equal(decimal.NewFromFloat(4.5)))

	all, err := f.bids.RunBids(ctx, f.runID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInterestedOnlyExcludedFromTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := uuid.New()
	memberID := uuid.New()
	_, err := f.runs.Join(ctx, f.runID, memberID)
	require.NoError(t, err)

	_, err = f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: productID,
		Quantity:  decimal.NewFromInt(6),
	})
	require.NoError(t, err)

	result, err := f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:          f.runID,
		UserID:         memberID,
		ProductID:      productID,
		Quantity:       decimal.Zero,
		InterestedOnly: true,
	})
	require.NoError(t, err)
	assert.True(t, result.ProductTotal.Equal(decimal.NewFromInt(6)), "interest markers never count")

	total, err := f.bids.ProductTotal(ctx, f.runID, productID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(6)))
}

func TestRetractAbsentBidIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.bids.RetractBid(ctx, RetractBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: uuid.New(),
	})
	require.NoError(t, err)
	assert.False(t, result.Retracted)
	assert.True(t, result.ProductTotal.IsZero())
}

func TestBidGateClosedOutsideBiddingStates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	productID := uuid.New()

	f.transition(t, enums.RunStateActive)
	f.transition(t, enums.RunStateConfirmed)

	_, err := f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: productID,
		Quantity:  decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeActionNotAllowed))

	_, err = f.bids.RetractBid(ctx, RetractBidInput{RunID: f.runID, UserID: f.leaderID, ProductID: productID})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeActionNotAllowed))

	// adjusting re-opens the ledger
	f.transition(t, enums.RunStateShopping)
	f.transition(t, enums.RunStateAdjusting)
	_, err = f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: productID,
		Quantity:  decimal.NewFromInt(2),
	})
	require.NoError(t, err)
}

func TestPlaceBidRejectsNegativeQuantity(t *testing.T) {
	f := newFixture(t)
	_, err := f.bids.PlaceBid(context.Background(), PlaceBidInput{
		RunID:     f.runID,
		UserID:    f.leaderID,
		ProductID: uuid.New(),
		Quantity:  decimal.NewFromInt(-1),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestPlaceBidRequiresActiveParticipation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.bids.PlaceBid(ctx, PlaceBidInput{
		RunID:     f.runID,
		UserID:    uuid.New(), // never joined
		ProductID: uuid.New(),
		Quantity:  decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
