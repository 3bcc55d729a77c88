package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is a participant's quantity commitment for one product within a run.
// Quantity zero with interested_only=true marks interest without commitment.
// The distributed fields are written only while the run is distributing.
type Bid struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ParticipationID uuid.UUID `gorm:"column:participation_id;type:uuid;not null;uniqueIndex:uq_bids_participation_product,priority:1"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_bids_participation_product,priority:2"`

	Quantity       decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	InterestedOnly bool            `gorm:"column:interested_only;not null;default:false"`
	Comment        *string         `gorm:"column:comment"`

	DistributedQuantity     decimal.Decimal `gorm:"column:distributed_quantity;type:numeric(14,4);not null;default:0"`
	DistributedPricePerUnit decimal.Decimal `gorm:"column:distributed_price_per_unit;type:numeric(14,4);not null;default:0"`
	IsPickedUp              bool            `gorm:"column:is_picked_up;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
