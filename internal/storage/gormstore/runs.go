package gormstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
	"github.com/mkastler/poolcart-backend/pkg/pagination"
)

type runRepo struct {
	db *gorm.DB
}

func (r *runRepo) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, translate(err)
	}
	return run, nil
}

func (r *runRepo) Find(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

func (r *runRepo) ListByGroup(ctx context.Context, groupID uuid.UUID, filter storage.RunFilter, params pagination.Params) (*storage.RunPage, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("group_id = ?", groupID)
	if len(filter.States) > 0 {
		query = query.Where("state IN ?", filter.States)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var runs []models.Run
	if err := query.Order("created_at, id").Limit(limitWithBuffer).Find(&runs).Error; err != nil {
		return nil, translate(err)
	}

	page := &storage.RunPage{Runs: runs}
	if len(runs) > limit {
		page.Runs = runs[:limit]
		last := page.Runs[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (r *runRepo) Update(ctx context.Context, id uuid.UUID, update storage.RunUpdate) error {
	values := map[string]any{}
	if update.State != nil {
		values["state"] = *update.State
	}
	if update.SetComment {
		values["comment"] = update.Comment
	}
	if update.ActivatedAt != nil {
		values["activated_at"] = *update.ActivatedAt
	}
	if update.ConfirmedAt != nil {
		values["confirmed_at"] = *update.ConfirmedAt
	}
	if update.ShoppingStartedAt != nil {
		values["shopping_started_at"] = *update.ShoppingStartedAt
	}
	if update.AdjustingStartedAt != nil {
		values["adjusting_started_at"] = *update.AdjustingStartedAt
	}
	if update.DistributingStartedAt != nil {
		values["distributing_started_at"] = *update.DistributingStartedAt
	}
	if update.CompletedAt != nil {
		values["completed_at"] = *update.CompletedAt
	}
	if update.CancelledAt != nil {
		values["cancelled_at"] = *update.CancelledAt
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.Run{}).
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
