// Package events fans order lifecycle changes out to the kitchen.
package events

import (
	"cafe_bot/internal/models"
	"context"
	"errors"
	"time"
)

type EventType string

const (
	OrderCreated       EventType = "order.created"
	OrderUpdated       EventType = "order.updated"
	OrderCancelled     EventType = "order.cancelled"
	OrderStatusChanged EventType = "order.status_changed"
)

type OrderEvent struct {
	Type           EventType                `json:"type"`
	Order          *models.KitchenOrderView `json:"order"`
	PreviousStatus models.OrderStatus       `json:"previous_status,omitempty"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

func NewOrderEvent(eventType EventType, order *models.Order, previous models.OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		Order:          order.KitchenView(),
		PreviousStatus: previous,
		OccurredAt:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event OrderEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
