package repository

import (
	"cafe_bot/internal/models"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*models.CustomerProfile, error)
	UpsertName(ctx context.Context, id, name string) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*models.CustomerProfile, error) {
	var profile models.CustomerProfile
	err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (r *customerRepository) UpsertName(ctx context.Context, id, name string) error {
	now := time.Now().UTC()
	profile := &models.CustomerProfile{ID: id, Name: name, LastVisit: &now}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_visit", "updated_at"}),
		}).
		Create(profile).Error
}
