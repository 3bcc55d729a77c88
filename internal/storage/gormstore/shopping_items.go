package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

type shoppingItemRepo struct {
	db *gorm.DB
}

func (r *shoppingItemRepo) CreateBatch(ctx context.Context, items []models.ShoppingListItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return translate(r.db.WithContext(ctx).Create(&items).Error)
}

func (r *shoppingItemRepo) Find(ctx context.Context, id uuid.UUID) (*models.ShoppingListItem, error) {
	var item models.ShoppingListItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *shoppingItemRepo) FindByRunAndProduct(ctx context.Context, runID, productID uuid.UUID) (*models.ShoppingListItem, error) {
	var item models.ShoppingListItem
	err := r.db.WithContext(ctx).
		First(&item, "run_id = ? AND product_id = ?", runID, productID).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *shoppingItemRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.ShoppingListItem, error) {
	var out []models.ShoppingListItem
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

func (r *shoppingItemRepo) Update(ctx context.Context, id uuid.UUID, update storage.ShoppingItemUpdate) error {
	values := map[string]any{}
	if update.RequestedQuantity != nil {
		values["requested_quantity"] = *update.RequestedQuantity
	}
	if update.IsPurchased != nil {
		values["is_purchased"] = *update.IsPurchased
	}
	if update.PurchasedQuantity != nil {
		values["purchased_quantity"] = *update.PurchasedQuantity
	}
	if update.PurchasedPricePerUnit != nil {
		values["purchased_price_per_unit"] = *update.PurchasedPricePerUnit
	}
	if update.PurchasedTotal != nil {
		values["purchased_total"] = *update.PurchasedTotal
	}
	if update.PurchaseOrder != nil {
		values["purchase_order"] = *update.PurchaseOrder
	}
	if len(values) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.ShoppingListItem{}).
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

func (r *shoppingItemRepo) DeleteByRun(ctx context.Context, runID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Delete(&models.ShoppingListItem{}, "run_id = ?", runID).Error)
}

func (r *shoppingItemRepo) MaxPurchaseOrder(ctx context.Context, runID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.ShoppingListItem{}).
		Select("COALESCE(MAX(purchase_order), 0)").
		Where("run_id = ?", runID).
		Scan(&max).
		Error
	if err != nil {
		return 0, translate(err)
	}
	return max, nil
}
