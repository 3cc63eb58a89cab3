package repository

import (
	"cafe_bot/internal/models"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrStale means the row changed since it was read: another status or a newer version.
	ErrStale = errors.New("order changed concurrently")
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetPendingByCustomer(ctx context.Context, customerID string) (*models.Order, error)
	UpdatePending(ctx context.Context, order *models.Order) error
	Transition(ctx context.Context, id string, from, to models.OrderStatus) error
	GetByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// GetPendingByCustomer is a point lookup served by the open-tab partial index.
func (r *orderRepository) GetPendingByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, models.OrderPending).
		Take(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// UpdatePending rewrites the lines and derived fields of an order that is still
// pending and still at the version the caller read.
func (r *orderRepository) UpdatePending(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND version = ?", order.ID, models.OrderPending, order.Version).
		Updates(map[string]interface{}{
			"lines":              order.Lines,
			"total":              order.Total,
			"prep_minutes":       order.PrepMinutes,
			"estimated_delivery": order.EstimatedDelivery,
			"updated_at":         order.UpdatedAt,
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	order.Version++
	return nil
}

func (r *orderRepository) Transition(ctx context.Context, id string, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStale
	}
	return nil
}

func (r *orderRepository) GetByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
