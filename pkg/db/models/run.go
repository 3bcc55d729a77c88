package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/pkg/enums"
)

// Run is one bulk-purchase trip instance with its own lifecycle. CreatedAt
// doubles as the planning-entry timestamp; every other state carries its own
// entry stamp, written exactly once when the run first reaches that state.
type Run struct {
	ID      uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	GroupID uuid.UUID      `gorm:"column:group_id;type:uuid;not null;index"`
	StoreID uuid.UUID      `gorm:"column:store_id;type:uuid;not null;index"`
	State   enums.RunState `gorm:"column:state;type:text;not null;default:'planning'"`
	Comment *string        `gorm:"column:comment"`

	ActivatedAt           *time.Time `gorm:"column:activated_at"`
	ConfirmedAt           *time.Time `gorm:"column:confirmed_at"`
	ShoppingStartedAt     *time.Time `gorm:"column:shopping_started_at"`
	AdjustingStartedAt    *time.Time `gorm:"column:adjusting_started_at"`
	DistributingStartedAt *time.Time `gorm:"column:distributing_started_at"`
	CompletedAt           *time.Time `gorm:"column:completed_at"`
	CancelledAt           *time.Time `gorm:"column:cancelled_at"`

	Participations []Participation `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
