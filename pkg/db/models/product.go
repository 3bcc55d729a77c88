package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is reference data for bids and shopping items. UnitStep is the
// granularity distribution rounds to; fractional steps support weighed goods.
type Product struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name     string          `gorm:"column:name;not null"`
	Unit     string          `gorm:"column:unit;not null;default:'piece'"`
	UnitStep decimal.Decimal `gorm:"column:unit_step;type:numeric(14,4);not null;default:1"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
