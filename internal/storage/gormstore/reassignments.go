package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/enums"
)

type reassignmentRepo struct {
	db *gorm.DB
}

func (r *reassignmentRepo) Create(ctx context.Context, req *models.ReassignmentRequest) (*models.ReassignmentRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, translate(err)
	}
	return req, nil
}

func (r *reassignmentRepo) Find(ctx context.Context, id uuid.UUID) (*models.ReassignmentRequest, error) {
	var req models.ReassignmentRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *reassignmentRepo) FindPendingByRun(ctx context.Context, runID uuid.UUID) (*models.ReassignmentRequest, error) {
	var req models.ReassignmentRequest
	err := r.db.WithContext(ctx).
		First(&req, "run_id = ? AND status = ?", runID, enums.ReassignmentStatusPending).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *reassignmentRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ReassignmentRequest, error) {
	var out []models.ReassignmentRequest
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

func (r *reassignmentRepo) Update(ctx context.Context, id uuid.UUID, update storage.ReassignmentUpdate) error {
	values := map[string]any{}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.ResolvedAt != nil {
		values["resolved_at"] = *update.ResolvedAt
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.ReassignmentRequest{}).
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
