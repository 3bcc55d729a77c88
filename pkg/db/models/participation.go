package models

import (
	"time"

	"github.com/google/uuid"
)

// Participation links a user to a run. Exactly one active (non-removed)
// participation per non-terminal run carries is_leader=true.
type Participation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RunID     uuid.UUID `gorm:"column:run_id;type:uuid;not null;uniqueIndex:uq_participations_run_user,priority:1"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_participations_run_user,priority:2"`
	IsLeader  bool      `gorm:"column:is_leader;not null;default:false"`
	IsHelper  bool      `gorm:"column:is_helper;not null;default:false"`
	IsReady   bool      `gorm:"column:is_ready;not null;default:false"`
	IsRemoved bool      `gorm:"column:is_removed;not null;default:false"`

	Bids []Bid `gorm:"foreignKey:ParticipationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
