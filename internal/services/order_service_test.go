package services

import (
	"cafe_bot/internal/events"
	"cafe_bot/internal/models"
	"cafe_bot/internal/repository"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrderService(repo repository.OrderRepository, pub events.Publisher, now time.Time) *orderService {
	svc := NewOrderService(repo, testMenu(), pub, DefaultOrderRules()).(*orderService)
	svc.now = fixedClock(now)
	return svc
}

func TestApplyOrder_CreatesOpenTab(t *testing.T) {
	repo := newMemOrderRepo()
	pub := &recordingPublisher{}
	svc := newTestOrderService(repo, pub, baseTime)

	result, err := svc.ApplyOrder(context.Background(), "C1", []OrderItemRequest{{ProductName: "latte", Quantity: 1}})
	require.NoError(t, err)

	order := result.Order
	assert.True(t, result.Created)
	assert.Equal(t, models.KindOrderCreated, result.Kind())
	assert.True(t, strings.HasPrefix(order.ID, "ord_"))
	assert.Len(t, order.ID, len("ord_")+8)
	assert.Equal(t, 45.0, order.Total)
	assert.Equal(t, 9, order.PrepMinutes, "4 min latte plus 5 min buffer")
	assert.Equal(t, baseTime.Add(9*time.Minute), order.EstimatedDelivery)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, baseTime, order.CreatedAt)
	require.Len(t, order.Lines, 1)
	assert.InDelta(t, 13.5, order.Lines[0].UnitCost, 1e-9)
	assert.Equal(t, []events.EventType{events.OrderCreated}, pub.types())
}

func TestApplyOrder_AppendsToOpenTab(t *testing.T) {
	repo := newMemOrderRepo()
	pub := &recordingPublisher{}
	svc := newTestOrderService(repo, pub, baseTime)
	ctx := context.Background()

	first, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "Latte", Quantity: 1}})
	require.NoError(t, err)

	svc.now = fixedClock(baseTime.Add(time.Minute))
	second, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "croissant", Quantity: 1}})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, models.KindOrderUpdated, second.Kind())
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 85.0, second.Order.Total)
	assert.Equal(t, 11, second.Order.PrepMinutes, "previous 9 plus 2 for the croissant, no second buffer")
	assert.Equal(t, baseTime.Add(time.Minute+11*time.Minute), second.Order.EstimatedDelivery)
	assert.Len(t, second.Order.Lines, 2)
	assert.Equal(t, baseTime, second.Order.CreatedAt)

	stored, err := repo.GetByID(ctx, first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, stored.Total)
	assert.Equal(t, stored.CalculateTotal(), stored.Total)
	assert.Equal(t, 1, repo.creates)
	assert.Equal(t, 1, repo.updates)
	assert.Equal(t, []events.EventType{events.OrderCreated, events.OrderUpdated}, pub.types())
}

func TestApplyOrder_SinglePendingPerCustomer(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newTestOrderService(repo, nil, baseTime)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "americano", Quantity: 1}})
		require.NoError(t, err)
		_, err = svc.ApplyOrder(ctx, "C2", []OrderItemRequest{{ProductName: "latte", Quantity: 2}})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, repo.pendingCount("C1"))
	assert.Equal(t, 1, repo.pendingCount("C2"))

	pending, err := repo.GetPendingByCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, pending.Lines, 5)
	assert.Equal(t, 175.0, pending.Total)
}

func TestApplyOrder_NewTabAfterKitchenTakesOrder(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newTestOrderService(repo, nil, baseTime)
	ctx := context.Background()

	first, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, first.Order.ID, models.OrderInPreparation)
	require.NoError(t, err)

	second, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "croissant"}})
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, models.OrderInPreparation, repo.status(first.Order.ID))
}

// lockstepRepo holds the first two tab reads until both have happened, so
// both writers start from the same version of the order.
type lockstepRepo struct {
	*memOrderRepo
	mu      sync.Mutex
	reads   int
	arrived sync.WaitGroup
}

func newLockstepRepo(inner *memOrderRepo) *lockstepRepo {
	r := &lockstepRepo{memOrderRepo: inner}
	r.arrived.Add(2)
	return r
}

func (r *lockstepRepo) GetPendingByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	order, err := r.memOrderRepo.GetPendingByCustomer(ctx, customerID)
	r.mu.Lock()
	r.reads++
	n := r.reads
	r.mu.Unlock()
	if n <= 2 {
		r.arrived.Done()
		r.arrived.Wait()
	}
	return order, err
}

func TestApplyOrder_ConcurrentAppendsKeepEveryLine(t *testing.T) {
	inner := newMemOrderRepo()
	ctx := context.Background()
	_, err := newTestOrderService(inner, nil, baseTime).ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)

	svc := newTestOrderService(newLockstepRepo(inner), nil, baseTime)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, product := range []string{"croissant", "americano"} {
		wg.Add(1)
		go func(i int, product string) {
			defer wg.Done()
			_, errs[i] = svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: product}})
		}(i, product)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	pending, err := inner.GetPendingByCustomer(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, pending.Lines, 3)
	assert.Equal(t, 45.0+40.0+35.0, pending.Total)
	assert.Equal(t, 4+5+2+3, pending.PrepMinutes)
	assert.Equal(t, 1, inner.pendingCount("C1"))
}

func TestApplyOrder_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newTestOrderService(repo, nil, baseTime)
	ctx := context.Background()

	_, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)

	repo.updateErr = repository.ErrStale
	_, err = svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "croissant"}})
	assert.ErrorIs(t, err, repository.ErrStale)

	pending, err := repo.GetPendingByCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, pending.Lines, 1)
}

func TestApplyOrder_PricingFallback(t *testing.T) {
	svc := newTestOrderService(newMemOrderRepo(), nil, baseTime)

	result, err := svc.ApplyOrder(context.Background(), "C1", []OrderItemRequest{
		{ProductName: "Chilaquiles", Quantity: 1, UnitPrice: 70},
		{ProductName: "Tamal", Quantity: 0},
		{ProductName: "LATTE", Quantity: 2, UnitPrice: 999},
	})
	require.NoError(t, err)

	lines := result.Order.Lines
	require.Len(t, lines, 3)

	assert.Equal(t, 70.0, lines[0].UnitPrice)
	assert.Equal(t, 5, lines[0].UnitPrepMinutes)
	assert.InDelta(t, 21.0, lines[0].UnitCost, 1e-9)

	assert.Equal(t, 50.0, lines[1].UnitPrice)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.Equal(t, 5, lines[1].UnitPrepMinutes)

	assert.Equal(t, 45.0, lines[2].UnitPrice, "menu price wins over the caller's")
	assert.Equal(t, 4, lines[2].UnitPrepMinutes)

	assert.Equal(t, 210.0, result.Order.Total)
	assert.Equal(t, 5+5+8+5, result.Order.PrepMinutes)
}

func TestApplyOrder_DuplicateCreateSurfaces(t *testing.T) {
	repo := newMemOrderRepo()
	repo.createErr = repository.ErrDuplicate
	svc := newTestOrderService(repo, nil, baseTime)

	_, err := svc.ApplyOrder(context.Background(), "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestApplyOrder_StorageErrors(t *testing.T) {
	ctx := context.Background()

	repo := newMemOrderRepo()
	repo.getErr = errStorage
	_, err := newTestOrderService(repo, nil, baseTime).ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	assert.ErrorIs(t, err, errStorage)
	assert.Equal(t, 0, repo.creates)

	repo = newMemOrderRepo()
	svc := newTestOrderService(repo, nil, baseTime)
	_, err = svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)
	repo.updateErr = errStorage
	_, err = svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "croissant"}})
	assert.ErrorIs(t, err, errStorage)

	pending, err := repo.GetPendingByCustomer(ctx, "C1")
	require.NoError(t, err)
	assert.Len(t, pending.Lines, 1)
}

func TestApplyOrder_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestOrderService(newMemOrderRepo(), pub, baseTime)

	result, err := svc.ApplyOrder(context.Background(), "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestUpdateStatus(t *testing.T) {
	repo := newMemOrderRepo()
	pub := &recordingPublisher{}
	svc := newTestOrderService(repo, pub, baseTime)
	ctx := context.Background()

	created, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)
	id := created.Order.ID

	order, err := svc.UpdateStatus(ctx, id, models.OrderInPreparation)
	require.NoError(t, err)
	assert.Equal(t, models.OrderInPreparation, order.Status)

	_, err = svc.UpdateStatus(ctx, id, models.OrderPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, id, models.OrderCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, id, models.OrderDelivered)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, id, models.OrderReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.OrderDelivered, repo.status(id))

	_, err = svc.UpdateStatus(ctx, "ord_missing", models.OrderReady)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.UpdateStatus(ctx, id, models.OrderStatus("burnt"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, pub.events, 3)
	last := pub.events[2]
	assert.Equal(t, events.OrderStatusChanged, last.Type)
	assert.Equal(t, models.OrderInPreparation, last.PreviousStatus)
	assert.Equal(t, models.OrderDelivered, last.Order.Status)
}

func TestGetOrders(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newTestOrderService(repo, nil, baseTime)
	ctx := context.Background()

	a, err := svc.ApplyOrder(ctx, "C1", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)
	_, err = svc.ApplyOrder(ctx, "C2", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)
	c, err := svc.ApplyOrder(ctx, "C3", []OrderItemRequest{{ProductName: "latte"}})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, a.Order.ID, models.OrderInPreparation)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, c.Order.ID, models.OrderReady)
	require.NoError(t, err)

	active, err := svc.GetActiveOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ready, err := svc.GetOrdersByStatus(ctx, models.OrderReady)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, c.Order.ID, ready[0].ID)

	_, err = svc.GetOrdersByStatus(ctx, models.OrderStatus("nope"))
	assert.Error(t, err)

	got, err := svc.GetOrder(ctx, a.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "C1", got.CustomerID)
}
