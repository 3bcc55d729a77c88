package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShoppingListItem is the purchasing unit derived from aggregated bids for
// one product in one run. PurchaseOrder is a run-scoped sequence assigned on
// the first purchase and used for deterministic remainder assignment.
type ShoppingListItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RunID     uuid.UUID `gorm:"column:run_id;type:uuid;not null;uniqueIndex:uq_shopping_items_run_product,priority:1"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_shopping_items_run_product,priority:2"`

	RequestedQuantity decimal.Decimal `gorm:"column:requested_quantity;type:numeric(14,4);not null"`

	IsPurchased           bool            `gorm:"column:is_purchased;not null;default:false"`
	PurchasedQuantity     decimal.Decimal `gorm:"column:purchased_quantity;type:numeric(14,4);not null;default:0"`
	PurchasedPricePerUnit decimal.Decimal `gorm:"column:purchased_price_per_unit;type:numeric(14,4);not null;default:0"`
	PurchasedTotal        decimal.Decimal `gorm:"column:purchased_total;type:numeric(14,4);not null;default:0"`
	PurchaseOrder         int             `gorm:"column:purchase_order;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
