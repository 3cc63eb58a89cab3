package repository

import (
	"cafe_bot/internal/models"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MenuRepository interface {
	GetAvailable(ctx context.Context) ([]models.MenuItem, error)
	Upsert(ctx context.Context, item *models.MenuItem) error
}

type menuRepository struct {
	db *gorm.DB
}

func NewMenuRepository(db *gorm.DB) MenuRepository {
	return &menuRepository{db: db}
}

func (r *menuRepository) GetAvailable(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := r.db.WithContext(ctx).Where("available = ?", true).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *menuRepository) Upsert(ctx context.Context, item *models.MenuItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(item).Error
}
