package shopping

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

// allocation is the computed distribution outcome for one bid.
type allocation struct {
	BidID        uuid.UUID
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
}

// floorToStep rounds x down to a multiple of step. A non-positive step means
// no granularity constraint.
func floorToStep(x, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return x
	}
	return x.Div(step).Floor().Mul(step)
}

// apportion splits an item's purchased quantity across the bids on its
// product. Each committed bid gets its proportional share floored to the
// unit step; the remainder is handed out one step at a time cycling through
// the bids in creation order. Interested-only bids always get zero quantity
// but still carry the item's uniform distribution price. Sub-step dust stays
// undistributed, so the allocated sum never exceeds the purchased quantity.
func apportion(item models.ShoppingListItem, bids []models.Bid, step decimal.Decimal) []allocation {
	out := make([]allocation, 0, len(bids))
	if !item.IsPurchased {
		for _, bid := range bids {
			out = append(out, allocation{BidID: bid.ID, Quantity: decimal.Zero, PricePerUnit: decimal.Zero})
		}
		return out
	}

	committed := make([]models.Bid, 0, len(bids))
	requestedSum := decimal.Zero
	for _, bid := range bids {
		if bid.InterestedOnly {
			continue
		}
		committed = append(committed, bid)
		requestedSum = requestedSum.Add(bid.Quantity)
	}

	shares := make(map[uuid.UUID]decimal.Decimal, len(committed))
	if requestedSum.IsPositive() {
		purchased := item.PurchasedQuantity
		allocated := decimal.Zero
		for _, bid := range committed {
			share := floorToStep(purchased.Mul(bid.Quantity).Div(requestedSum), step)
			shares[bid.ID] = share
			allocated = allocated.Add(share)
		}

		if step.IsPositive() && len(committed) > 0 {
			remainder := purchased.Sub(allocated)
			for i := 0; remainder.GreaterThanOrEqual(step); i++ {
				bid := committed[i%len(committed)]
				shares[bid.ID] = shares[bid.ID].Add(step)
				remainder = remainder.Sub(step)
			}
		}
	}

	for _, bid := range bids {
		qty := decimal.Zero
		if !bid.InterestedOnly {
			qty = shares[bid.ID]
		}
		out = append(out, allocation{
			BidID:        bid.ID,
			Quantity:     qty,
			PricePerUnit: item.PurchasedPricePerUnit,
		})
	}
	return out
}
