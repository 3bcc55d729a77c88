package export

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/internal/storage/memstore"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type seeded struct {
	svc      Service
	runID    uuid.UUID
	leaderID uuid.UUID
	memberID uuid.UUID
	flourID  uuid.UUID
	riceID   uuid.UUID
}

// seedDistributedRun builds a run in DISTRIBUTING with two participants, two
// products and already-written distribution results: 8 kg of flour split 5/3
// at 2.50 per kg, plus an unpurchased rice item.
func seedDistributedRun(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	logg := logger.New(logger.Options{ServiceName: "test"})

	svc, err := NewService(store, logg)
	require.NoError(t, err)

	run := &models.Run{GroupID: uuid.New(), StoreID: uuid.New(), State: enums.RunStateDistributing}
	run, err = store.Runs().Create(ctx, run)
	require.NoError(t, err)

	leader := &models.Participation{RunID: run.ID, UserID: uuid.New(), IsLeader: true}
	member := &models.Participation{RunID: run.ID, UserID: uuid.New()}
	leader, err = store.Participations().Create(ctx, leader)
	require.NoError(t, err)
	member, err = store.Participations().Create(ctx, member)
	require.NoError(t, err)

	flour := &models.Product{Name: "flour", Unit: "kg", UnitStep: dec("1")}
	rice := &models.Product{Name: "rice", Unit: "kg", UnitStep: dec("1")}
	flour, err = store.Products().Create(ctx, flour)
	require.NoError(t, err)
	rice, err = store.Products().Create(ctx, rice)
	require.NoError(t, err)

	_, err = store.Bids().Create(ctx, &models.Bid{
		ParticipationID:         leader.ID,
		ProductID:               flour.ID,
		Quantity:                dec("6"),
		DistributedQuantity:     dec("5"),
		DistributedPricePerUnit: dec("2.5"),
		IsPickedUp:              true,
	})
	require.NoError(t, err)
	_, err = store.Bids().Create(ctx, &models.Bid{
		ParticipationID:         member.ID,
		ProductID:               flour.ID,
		Quantity:                dec("4"),
		DistributedQuantity:     dec("3"),
		DistributedPricePerUnit: dec("2.5"),
	})
	require.NoError(t, err)
	_, err = store.Bids().Create(ctx, &models.Bid{
		ParticipationID: member.ID,
		ProductID:       rice.ID,
		Quantity:        dec("2"),
	})
	require.NoError(t, err)

	require.NoError(t, store.ShoppingItems().CreateBatch(ctx, []models.ShoppingListItem{
		{
			RunID:                 run.ID,
			ProductID:             flour.ID,
			RequestedQuantity:     dec("10"),
			IsPurchased:           true,
			PurchasedQuantity:     dec("8"),
			PurchasedPricePerUnit: dec("2.5"),
			PurchasedTotal:        dec("20"),
			PurchaseOrder:         1,
		},
		{
			RunID:             run.ID,
			ProductID:         rice.ID,
			RequestedQuantity: dec("2"),
		},
	}))

	return seeded{
		svc:      svc,
		runID:    run.ID,
		leaderID: leader.UserID,
		memberID: member.UserID,
		flourID:  flour.ID,
		riceID:   rice.ID,
	}
}

func TestRunBreakdownAggregatesSharesAndTotals(t *testing.T) {
	ctx := context.Background()
	s := seedDistributedRun(t)

	out, err := s.svc.RunBreakdown(ctx, s.runID)
	require.NoError(t, err)
	assert.Equal(t, enums.RunStateDistributing, out.State)
	require.Len(t, out.Products, 2)

	flour := out.Products[0]
	assert.Equal(t, s.flourID, flour.ProductID)
	assert.Equal(t, "flour", flour.ProductName)
	assert.Equal(t, "kg", flour.Unit)
	assert.True(t, flour.IsPurchased)
	assert.True(t, flour.PurchasedQuantity.Equal(dec("8")))
	require.Len(t, flour.Shares, 2)

	assert.Equal(t, s.leaderID, flour.Shares[0].UserID)
	assert.True(t, flour.Shares[0].DistributedQuantity.Equal(dec("5")))
	assert.True(t, flour.Shares[0].CostShare.Equal(dec("12.5")))
	assert.True(t, flour.Shares[0].IsPickedUp)

	assert.Equal(t, s.memberID, flour.Shares[1].UserID)
	assert.True(t, flour.Shares[1].CostShare.Equal(dec("7.5")))
	assert.False(t, flour.Shares[1].IsPickedUp)

	rice := out.Products[1]
	assert.False(t, rice.IsPurchased)
	require.Len(t, rice.Shares, 1)
	assert.True(t, rice.Shares[0].CostShare.IsZero())

	require.Len(t, out.Users, 2)
	assert.Equal(t, s.leaderID, out.Users[0].UserID)
	assert.True(t, out.Users[0].TotalCost.Equal(dec("12.5")))
	assert.Equal(t, s.memberID, out.Users[1].UserID)
	assert.True(t, out.Users[1].TotalCost.Equal(dec("7.5")))
}

func TestRunBreakdownGatedByState(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	logg := logger.New(logger.Options{ServiceName: "test"})
	svc, err := NewService(store, logg)
	require.NoError(t, err)

	run := &models.Run{GroupID: uuid.New(), StoreID: uuid.New(), State: enums.RunStateShopping}
	run, err = store.Runs().Create(ctx, run)
	require.NoError(t, err)

	_, err = svc.RunBreakdown(ctx, run.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeActionNotAllowed))
}

func TestRunBreakdownUnknownRun(t *testing.T) {
	store := memstore.New()
	svc, err := NewService(store, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	_, err = svc.RunBreakdown(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
