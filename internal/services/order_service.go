package services

import (
	"cafe_bot/internal/events"
	"cafe_bot/internal/models"
	"cafe_bot/internal/monitoring"
	"cafe_bot/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type MenuFinder interface {
	Find(name string) (models.MenuItem, bool)
}

// OrderRules are the pricing and timing constants applied to every order.
type OrderRules struct {
	PrepBufferMinutes  int
	DefaultPrepMinutes int
	DefaultUnitPrice   float64
	CostRatio          float64
}

func DefaultOrderRules() OrderRules {
	return OrderRules{
		PrepBufferMinutes:  5,
		DefaultPrepMinutes: 5,
		DefaultUnitPrice:   50.0,
		CostRatio:          0.30,
	}
}

type OrderResult struct {
	Order   *models.Order
	Created bool
}

func (r *OrderResult) Kind() models.ResponseKind {
	if r.Created {
		return models.KindOrderCreated
	}
	return models.KindOrderUpdated
}

type OrderService interface {
	// ApplyOrder adds items to the customer's open tab, creating it if needed.
	ApplyOrder(ctx context.Context, customerID string, items []OrderItemRequest) (*OrderResult, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetActiveOrders(ctx context.Context) ([]models.Order, error)
	GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (*models.Order, error)
}

const maxApplyAttempts = 3

type orderService struct {
	orders    repository.OrderRepository
	menu      MenuFinder
	publisher events.Publisher
	rules     OrderRules
	now       func() time.Time
}

func NewOrderService(orders repository.OrderRepository, menu MenuFinder, publisher events.Publisher, rules OrderRules) OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &orderService{
		orders:    orders,
		menu:      menu,
		publisher: publisher,
		rules:     rules,
		now:       time.Now,
	}
}

func newOrderID() string {
	return "ord_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// resolveLine prices an item from the menu, falling back to the caller's price
// and then to the default. Resolution never fails.
func (s *orderService) resolveLine(item OrderItemRequest) models.OrderLine {
	quantity := item.Quantity
	if quantity < 1 {
		quantity = 1
	}

	price := s.rules.DefaultUnitPrice
	prep := s.rules.DefaultPrepMinutes
	if menuItem, ok := s.menu.Find(item.ProductName); ok {
		price = menuItem.Price
		if menuItem.PrepMinutes > 0 {
			prep = menuItem.PrepMinutes
		}
	} else if item.UnitPrice > 0 {
		price = item.UnitPrice
	}

	modifiers := item.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}

	return models.OrderLine{
		ProductName:     item.ProductName,
		Quantity:        quantity,
		UnitPrice:       price,
		UnitCost:        price * s.rules.CostRatio,
		Modifiers:       modifiers,
		Notes:           item.Notes,
		UnitPrepMinutes: prep,
	}
}

// ApplyOrder re-reads the tab and tries again when a concurrent write got there first.
func (s *orderService) ApplyOrder(ctx context.Context, customerID string, items []OrderItemRequest) (*OrderResult, error) {
	lines := make([]models.OrderLine, 0, len(items))
	newPrep := 0
	for _, item := range items {
		line := s.resolveLine(item)
		newPrep += line.PrepMinutes()
		lines = append(lines, line)
	}

	var err error
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		var result *OrderResult
		result, err = s.applyOnce(ctx, customerID, lines, newPrep)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrStale) && !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"customer_id": customerID,
			"attempt":     attempt,
		}).Warn("Open tab changed concurrently")
	}
	return nil, err
}

func (s *orderService) applyOnce(ctx context.Context, customerID string, lines []models.OrderLine, newPrep int) (*OrderResult, error) {
	pending, err := s.orders.GetPendingByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get pending order: %w", err)
	}

	now := s.now().UTC()
	if pending == nil {
		return s.createOrder(ctx, customerID, lines, newPrep, now)
	}
	return s.appendToOrder(ctx, pending, lines, newPrep, now)
}

func (s *orderService) createOrder(ctx context.Context, customerID string, lines []models.OrderLine, newPrep int, now time.Time) (*OrderResult, error) {
	order := &models.Order{
		ID:            newOrderID(),
		CustomerID:    customerID,
		Lines:         lines,
		Status:        models.OrderPending,
		PrepMinutes:   newPrep + s.rules.PrepBufferMinutes,
		PaymentMethod: "pendiente",
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	order.Total = order.CalculateTotal()
	order.EstimatedDelivery = now.Add(time.Duration(order.PrepMinutes) * time.Minute)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	monitoring.OrderWrites.WithLabelValues("created").Inc()
	logrus.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": customerID,
		"total":       order.Total,
		"prep":        order.PrepMinutes,
	}).Info("Order created")

	s.publish(ctx, events.NewOrderEvent(events.OrderCreated, order, ""))
	return &OrderResult{Order: order, Created: true}, nil
}

// appendToOrder adds lines to the open tab. The buffer was already paid when the
// tab was created, so only the new items' prep time is added.
func (s *orderService) appendToOrder(ctx context.Context, order *models.Order, lines []models.OrderLine, newPrep int, now time.Time) (*OrderResult, error) {
	order.Lines = append(order.Lines[:len(order.Lines):len(order.Lines)], lines...)
	order.Total = order.CalculateTotal()
	order.PrepMinutes += newPrep
	order.EstimatedDelivery = now.Add(time.Duration(order.PrepMinutes) * time.Minute)

	if err := s.orders.UpdatePending(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	monitoring.OrderWrites.WithLabelValues("updated").Inc()
	logrus.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.Total,
		"prep":        order.PrepMinutes,
	}).Info("Order updated")

	s.publish(ctx, events.NewOrderEvent(events.OrderUpdated, order, ""))
	return &OrderResult{Order: order, Created: false}, nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// GetActiveOrders lists what the kitchen still has to work on, oldest first.
func (s *orderService) GetActiveOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.GetByStatus(ctx, models.OrderPending, models.OrderInPreparation)
	if err != nil {
		return nil, fmt.Errorf("failed to get active orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown order status %q", status)
	}
	orders, err := s.orders.GetByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s orders: %w", status, err)
	}
	return orders, nil
}

// UpdateStatus moves an order forward through the kitchen states. Cancellation
// goes through the cancellation policy instead.
func (s *orderService) UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (*models.Order, error) {
	if next == models.OrderCancelled || !next.Valid() {
		return nil, fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, next)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if !previous.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, next)
	}

	if err := s.orders.Transition(ctx, id, previous, next); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = next
	order.UpdatedAt = s.now().UTC()

	logrus.WithFields(logrus.Fields{
		"order_id": id,
		"from":     previous,
		"to":       next,
	}).Info("Order status changed")

	s.publish(ctx, events.NewOrderEvent(events.OrderStatusChanged, order, previous))
	return order, nil
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":    event.Type,
			"order_id": event.Order.ID,
		}).Warn("Failed to publish order event")
	}
}
