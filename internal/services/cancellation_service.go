package services

import (
	"cafe_bot/internal/events"
	"cafe_bot/internal/models"
	"cafe_bot/internal/monitoring"
	"cafe_bot/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCancelWindow is how long after creation a pending order may still be cancelled.
const DefaultCancelWindow = 5 * time.Minute

type CancelOutcome string

const (
	OutcomeCancelled      CancelOutcome = "cancelled"
	OutcomeTooLate        CancelOutcome = "too_late"
	OutcomeNoPendingOrder CancelOutcome = "no_pending_order"
)

type CancelResult struct {
	Outcome CancelOutcome
	OrderID string
	Elapsed time.Duration
	Reason  string
}

// ElapsedMinutes is the elapsed time truncated to whole minutes.
func (r *CancelResult) ElapsedMinutes() int {
	return int(r.Elapsed / time.Minute)
}

type CancellationService interface {
	Cancel(ctx context.Context, customerID, reason string) (*CancelResult, error)
}

type cancellationService struct {
	orders    repository.OrderRepository
	publisher events.Publisher
	limit     time.Duration
	now       func() time.Time
}

func NewCancellationService(orders repository.OrderRepository, publisher events.Publisher, limit time.Duration) CancellationService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if limit <= 0 {
		limit = DefaultCancelWindow
	}
	return &cancellationService{
		orders:    orders,
		publisher: publisher,
		limit:     limit,
		now:       time.Now,
	}
}

func (s *cancellationService) Cancel(ctx context.Context, customerID, reason string) (*CancelResult, error) {
	order, err := s.orders.GetPendingByCustomer(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		monitoring.CancellationOutcomes.WithLabelValues(string(OutcomeNoPendingOrder)).Inc()
		return &CancelResult{Outcome: OutcomeNoPendingOrder, Reason: reason}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending order: %w", err)
	}

	elapsed := s.elapsed(order)
	result := &CancelResult{OrderID: order.ID, Elapsed: elapsed, Reason: reason}

	if elapsed > s.limit {
		result.Outcome = OutcomeTooLate
		monitoring.CancellationOutcomes.WithLabelValues(string(OutcomeTooLate)).Inc()
		logrus.WithFields(logrus.Fields{
			"order_id": order.ID,
			"elapsed":  elapsed.String(),
		}).Info("Cancellation refused, window elapsed")
		return result, nil
	}

	err = s.orders.Transition(ctx, order.ID, models.OrderPending, models.OrderCancelled)
	if errors.Is(err, repository.ErrStale) {
		// The kitchen picked it up between the lookup and the write.
		result.Outcome = OutcomeTooLate
		monitoring.CancellationOutcomes.WithLabelValues(string(OutcomeTooLate)).Inc()
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	result.Outcome = OutcomeCancelled
	monitoring.CancellationOutcomes.WithLabelValues(string(OutcomeCancelled)).Inc()
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"elapsed":  elapsed.String(),
		"reason":   reason,
	}).Info("Order cancelled")

	previous := order.Status
	order.Status = models.OrderCancelled
	if err := s.publisher.Publish(ctx, events.NewOrderEvent(events.OrderCancelled, order, previous)); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Warn("Failed to publish order event")
	}
	return result, nil
}

// elapsed measures time since creation in UTC. Orders without a creation time
// count as just created.
func (s *cancellationService) elapsed(order *models.Order) time.Duration {
	if order.CreatedAt.IsZero() {
		logrus.WithField("order_id", order.ID).Warn("Pending order has no creation time, treating as just created")
		return 0
	}
	elapsed := s.now().UTC().Sub(order.CreatedAt.UTC())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
