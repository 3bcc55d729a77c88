package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/pkg/enums"
)

// Notification is a committed domain fact queued for the external delivery
// collaborator. The core never formats user-facing text; payload carries ids
// and deltas only.
type Notification struct {
	ID      uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RunID   uuid.UUID              `gorm:"column:run_id;type:uuid;not null;index"`
	Kind    enums.NotificationKind `gorm:"column:kind;type:text;not null"`
	Payload json.RawMessage        `gorm:"column:payload;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
