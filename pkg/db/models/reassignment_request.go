package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/pkg/enums"
)

// ReassignmentRequest records a leadership handover offer. At most one
// pending request may exist per run.
type ReassignmentRequest struct {
	ID         uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	RunID      uuid.UUID                `gorm:"column:run_id;type:uuid;not null;index"`
	FromUserID uuid.UUID                `gorm:"column:from_user_id;type:uuid;not null"`
	ToUserID   uuid.UUID                `gorm:"column:to_user_id;type:uuid;not null"`
	Status     enums.ReassignmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ResolvedAt *time.Time               `gorm:"column:resolved_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
