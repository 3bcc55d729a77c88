package shopping

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func purchasedItem(qty, price string) models.ShoppingListItem {
	return models.ShoppingListItem{
		ID:                    uuid.New(),
		RunID:                 uuid.New(),
		ProductID:             uuid.New(),
		IsPurchased:           true,
		PurchasedQuantity:     dec(qty),
		PurchasedPricePerUnit: dec(price),
	}
}

func committedBid(qty string) models.Bid {
	return models.Bid{ID: uuid.New(), Quantity: dec(qty)}
}

func total(allocs []allocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Quantity)
	}
	return sum
}

func TestApportionUndersupplyFloorsAndAssignsRemainder(t *testing.T) {
	item := purchasedItem("8", "2.00")
	bids := []models.Bid{committedBid("6"), committedBid("4")}

	allocs := apportion(item, bids, dec("1"))
	require.Len(t, allocs, 2)

	// proportional shares 4.8 and 3.2 floor to 4 and 3; the leftover unit
	// goes to the earliest bid
	assert.True(t, allocs[0].Quantity.Equal(dec("5")))
	assert.True(t, allocs[1].Quantity.Equal(dec("3")))
	assert.True(t, total(allocs).Equal(item.PurchasedQuantity))
	assert.True(t, allocs[0].PricePerUnit.Equal(dec("2.00")))
	assert.True(t, allocs[1].PricePerUnit.Equal(dec("2.00")))
}

func TestApportionRemainderCyclesInCreationOrder(t *testing.T) {
	item := purchasedItem("2", "1.00")
	bids := []models.Bid{committedBid("1"), committedBid("1"), committedBid("1")}

	allocs := apportion(item, bids, dec("1"))
	require.Len(t, allocs, 3)
	assert.True(t, allocs[0].Quantity.Equal(dec("1")))
	assert.True(t, allocs[1].Quantity.Equal(dec("1")))
	assert.True(t, allocs[2].Quantity.IsZero())
}

func TestApportionFractionalUnitStep(t *testing.T) {
	item := purchasedItem("2", "3.10")
	bids := []models.Bid{committedBid("1.5"), committedBid("1")}

	allocs := apportion(item, bids, dec("0.5"))
	require.Len(t, allocs, 2)
	assert.True(t, allocs[0].Quantity.Equal(dec("1.5")))
	assert.True(t, allocs[1].Quantity.Equal(dec("0.5")))
	assert.True(t, total(allocs).Equal(dec("2")))
}

func TestApportionOversupplySplitsProportionally(t *testing.T) {
	item := purchasedItem("6", "0.80")
	bids := []models.Bid{committedBid("2"), committedBid("2")}

	allocs := apportion(item, bids, dec("1"))
	assert.True(t, allocs[0].Quantity.Equal(dec("3")))
	assert.True(t, allocs[1].Quantity.Equal(dec("3")))
}

func TestApportionInterestedOnlyGetsZero(t *testing.T) {
	item := purchasedItem("4", "2.50")
	interested := models.Bid{ID: uuid.New(), Quantity: decimal.Zero, InterestedOnly: true}
	bids := []models.Bid{committedBid("4"), interested}

	allocs := apportion(item, bids, dec("1"))
	require.Len(t, allocs, 2)
	assert.True(t, allocs[0].Quantity.Equal(dec("4")))
	assert.True(t, allocs[1].Quantity.IsZero())
	assert.True(t, allocs[1].PricePerUnit.Equal(dec("2.50")), "the uniform price covers interest markers too")
}

func TestApportionUnpurchasedItemDistributesNothing(t *testing.T) {
	item := models.ShoppingListItem{ID: uuid.New(), RunID: uuid.New(), ProductID: uuid.New()}
	bids := []models.Bid{committedBid("3"), committedBid("2")}

	allocs := apportion(item, bids, dec("1"))
	for _, alloc := range allocs {
		assert.True(t, alloc.Quantity.IsZero())
		assert.True(t, alloc.PricePerUnit.IsZero())
	}
}

func TestApportionNeverExceedsPurchased(t *testing.T) {
	// sub-step dust stays undistributed
	item := purchasedItem("7.3", "1.00")
	bids := []models.Bid{committedBid("5"), committedBid("3"), committedBid("2")}

	allocs := apportion(item, bids, dec("1"))
	assert.True(t, total(allocs).LessThanOrEqual(item.PurchasedQuantity))
}

func TestFloorToStep(t *testing.T) {
	assert.True(t, floorToStep(dec("4.8"), dec("1")).Equal(dec("4")))
	assert.True(t, floorToStep(dec("1.2"), dec("0.5")).Equal(dec("1")))
	assert.True(t, floorToStep(dec("1.49"), dec("0.25")).Equal(dec("1.25")))
	assert.True(t, floorToStep(dec("2"), dec("0")).Equal(dec("2")), "non-positive step means no rounding")
}
