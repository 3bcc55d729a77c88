package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkastler/poolcart-backend/pkg/db/models"
)

type availabilityRepo struct {
	db *gorm.DB
}

func (r *availabilityRepo) Create(ctx context.Context, obs *models.ProductAvailability) (*models.ProductAvailability, error) {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(obs).Error; err != nil {
		return nil, translate(err)
	}
	return obs, nil
}

func (r *availabilityRepo) Latest(ctx context.Context, productID, storeID uuid.UUID) (*models.ProductAvailability, error) {
	var obs models.ProductAvailability
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID).
		Order("observed_at DESC, created_at DESC, id DESC").
		First(&obs).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &obs, nil
}

func (r *availabilityRepo) ListByProductAndStore(ctx context.Context, productID, storeID uuid.UUID) ([]models.ProductAvailability, error) {
	var out []models.ProductAvailability
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID).
		Order("observed_at DESC, created_at DESC, id DESC").
		Find(&out).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, translate(err)
	}
	return product, nil
}

func (r *productRepo) Find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *productRepo) List(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := r.db.WithContext(ctx).Order("name, id").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

type notificationRepo struct {
	db *gorm.DB
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, translate(err)
	}
	return n, nil
}

func (r *notificationRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]models.Notification, error) {
	var out []models.Notification
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
