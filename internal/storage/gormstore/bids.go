package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

type bidRepo struct {
	db *gorm.DB
}

func (r *bidRepo) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(bid).Error; err != nil {
		return nil, translate(err)
	}
	return bid, nil
}

func (r *bidRepo) Find(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := r.db.WithContext(ctx).First(&bid, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &bid, nil
}

func (r *bidRepo) FindByParticipationAndProduct(ctx context.Context, participationID, productID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		First(&bid, "participation_id = ? AND product_id = ?", participationID, productID).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &bid, nil
}

func (r *bidRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	err := r.db.WithContext(ctx).
		Table("bids b").
		Select("b.*").
		Joins("JOIN participations p ON p.id = b.participation_id").
		Where("p.run_id = ?", runID).
		Order("b.created_at, b.id").
		Find(&out).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *bidRepo) ListByRunAndProduct(ctx context.Context, runID, productID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	err := r.db.WithContext(ctx).
		Table("bids b").
		Select("b.*").
		Joins("JOIN participations p ON p.id = b.participation_id").
		Where("p.run_id = ? AND b.product_id = ?", runID, productID).
		Order("b.created_at, b.id").
		Find(&out).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *bidRepo) ListByParticipation(ctx context.Context, participationID uuid.UUID) ([]models.Bid, error) {
	var out []models.Bid
	err := r.db.WithContext(ctx).
		Where("participation_id = ?", participationID).
		Order("created_at, id").
		Find(&out).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *bidRepo) Update(ctx context.Context, id uuid.UUID, update storage.BidUpdate) error {
	values := map[string]any{}
	if update.Quantity != nil {
		values["quantity"] = *update.Quantity
	}
	if update.InterestedOnly != nil {
		values["interested_only"] = *update.InterestedOnly
	}
	if update.SetComment {
		values["comment"] = update.Comment
	}
	if update.DistributedQuantity != nil {
		values["distributed_quantity"] = *update.DistributedQuantity
	}
	if update.DistributedPricePerUnit != nil {
		values["distributed_price_per_unit"] = *update.DistributedPricePerUnit
	}
	if update.IsPickedUp != nil {
		values["is_picked_up"] = *update.IsPickedUp
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.Bid{}).
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

func (r *bidRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Bid{}, "id = ?", id).Error)
}
