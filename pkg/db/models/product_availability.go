package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductAvailability is an append-only price observation of a product at a
// store. The most recent row wins as the current price.
type ProductAvailability struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index:idx_availability_product_store,priority:1"`
	StoreID      uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index:idx_availability_product_store,priority:2"`
	PricePerUnit decimal.Decimal `gorm:"column:price_per_unit;type:numeric(14,4);not null"`
	ObservedAt   time.Time       `gorm:"column:observed_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
