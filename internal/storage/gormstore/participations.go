package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

type participationRepo struct {
	db *gorm.DB
}

func (r *participationRepo) Create(ctx context.Context, p *models.Participation) (*models.Participation, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (r *participationRepo) Find(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	var p models.Participation
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *participationRepo) FindByRunAndUser(ctx context.Context, runID, userID uuid.UUID) (*models.Participation, error) {
	var p models.Participation
	err := r.db.WithContext(ctx).
		First(&p, "run_id = ? AND user_id = ?", runID, userID).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *participationRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Participation, error) {
	var out []models.Participation
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at, id").
		Find(&out).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *participationRepo) Update(ctx context.Context, id uuid.UUID, update storage.ParticipationUpdate) error {
	values := map[string]any{}
	if update.IsLeader != nil {
		values["is_leader"] = *update.IsLeader
	}
	if update.IsHelper != nil {
		values["is_helper"] = *update.IsHelper
	}
	if update.IsReady != nil {
		values["is_ready"] = *update.IsReady
	}
	if update.IsRemoved != nil {
		values["is_removed"] = *update.IsRemoved
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.Participation{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
