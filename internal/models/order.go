package models

import (
	"time"

	"gorm.io/datatypes"
)

// Order is a customer's tab. At most one order per customer may be pending;
// the partial unique index below enforces it at the storage level too.
type Order struct {
	ID                string                         `json:"id" gorm:"primaryKey;size:32"`
	CustomerID        string                         `json:"customer_id" gorm:"not null;size:64;uniqueIndex:idx_open_tab,where:status = 'pending'"`
	Lines             datatypes.JSONSlice[OrderLine] `json:"lines"`
	Status            OrderStatus                    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_status_created,priority:1"`
	Total             float64                        `json:"total" gorm:"not null"`
	PrepMinutes       int                            `json:"prep_minutes"`
	EstimatedDelivery time.Time                      `json:"estimated_delivery"`
	PaymentMethod     string                         `json:"payment_method" gorm:"default:'pendiente'"`
	RequiresInvoice   bool                           `json:"requires_invoice" gorm:"default:false"`
	Notes             string                         `json:"notes"`
	CreatedAt         time.Time                      `json:"created_at" gorm:"not null;index:idx_status_created,priority:2"`
	UpdatedAt         time.Time                      `json:"updated_at"`

	// Version increments on every write; updates are conditioned on the value read.
	Version int `json:"-" gorm:"not null;default:1"`
}

type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderInPreparation OrderStatus = "in_preparation"
	OrderReady         OrderStatus = "ready"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
)

var statusRank = map[OrderStatus]int{
	OrderPending:       0,
	OrderInPreparation: 1,
	OrderReady:         2,
	OrderDelivered:     3,
}

func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == OrderCancelled
}

// CanTransitionTo reports whether the order lifecycle allows moving from s to next.
// Kitchen states only move forward, cancellation is only reachable from pending,
// and nothing ever returns to pending.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderCancelled {
		return s == OrderPending
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// CalculateTotal recomputes the total from every line.
func (o *Order) CalculateTotal() float64 {
	total := 0.0
	for _, line := range o.Lines {
		total += line.Subtotal()
	}
	return total
}

// CalculateCost is internal accounting only.
func (o *Order) CalculateCost() float64 {
	cost := 0.0
	for _, line := range o.Lines {
		cost += line.TotalCost()
	}
	return cost
}

// Summary is the customer-facing projection of the order.
func (o *Order) Summary() *OrderSummary {
	return &OrderSummary{
		ID:                o.ID,
		Total:             o.Total,
		Items:             LineViews(o.Lines),
		PrepMinutes:       o.PrepMinutes,
		EstimatedDelivery: o.EstimatedDelivery,
	}
}

// KitchenView is what the kitchen display receives.
func (o *Order) KitchenView() *KitchenOrderView {
	return &KitchenOrderView{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		Status:            o.Status,
		Items:             LineViews(o.Lines),
		Total:             o.Total,
		PrepMinutes:       o.PrepMinutes,
		EstimatedDelivery: o.EstimatedDelivery,
		Notes:             o.Notes,
		CreatedAt:         o.CreatedAt,
	}
}

type OrderSummary struct {
	ID                string          `json:"id"`
	Total             float64         `json:"total"`
	Items             []OrderLineView `json:"items"`
	PrepMinutes       int             `json:"prep_minutes"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
}

type KitchenOrderView struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	Status            OrderStatus     `json:"status"`
	Items             []OrderLineView `json:"items"`
	Total             float64         `json:"total"`
	PrepMinutes       int             `json:"prep_minutes"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
