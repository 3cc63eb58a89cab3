package services

import (
	"cafe_bot/internal/events"
	"cafe_bot/internal/menu"
	"cafe_bot/internal/models"
	"cafe_bot/internal/repository"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
)

var baseTime = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testMenu() *menu.Index {
	idx := menu.NewIndex(nil)
	idx.Replace([]models.MenuItem{
		{ID: "latte", Name: "Latte", Price: 45, PrepMinutes: 4, Category: models.CategoryDrink, Available: true},
		{ID: "croissant", Name: "Croissant", Price: 40, PrepMinutes: 2, Category: models.CategoryFood, Available: true},
		{ID: "americano", Name: "Café Americano", Price: 35, PrepMinutes: 3, Category: models.CategoryDrink, Available: true},
	})
	return idx
}

// memOrderRepo mirrors the storage guarantees: one pending order per customer
// and writes conditioned on the current status and version.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order

	getErr    error
	createErr error
	updateErr error
	creates   int
	updates   int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*models.Order)}
}

func clone(o *models.Order) *models.Order {
	cp := *o
	cp.Lines = append(cp.Lines[:0:0], o.Lines...)
	return &cp
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, o := range r.orders {
		if o.CustomerID == order.CustomerID && o.Status == models.OrderPending && order.Status == models.OrderPending {
			return repository.ErrDuplicate
		}
	}
	r.creates++
	r.orders[order.ID] = clone(order)
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(o), nil
}

func (r *memOrderRepo) GetPendingByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, o := range r.orders {
		if o.CustomerID == customerID && o.Status == models.OrderPending {
			return clone(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memOrderRepo) UpdatePending(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	current, ok := r.orders[order.ID]
	if !ok || current.Status != models.OrderPending || current.Version != order.Version {
		return repository.ErrStale
	}
	r.updates++
	updated := clone(current)
	updated.Lines = append(updated.Lines[:0:0], order.Lines...)
	updated.Total = order.Total
	updated.PrepMinutes = order.PrepMinutes
	updated.EstimatedDelivery = order.EstimatedDelivery
	updated.Version++
	order.Version = updated.Version
	r.orders[order.ID] = updated
	return nil
}

func (r *memOrderRepo) Transition(ctx context.Context, id string, from, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.Status != from {
		return repository.ErrStale
	}
	o.Status = to
	o.Version++
	return nil
}

func (r *memOrderRepo) GetByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, *clone(o))
			}
		}
	}
	return out, nil
}

func (r *memOrderRepo) put(order *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = clone(order)
}

func (r *memOrderRepo) pendingCount(customerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.CustomerID == customerID && o.Status == models.OrderPending {
			n++
		}
	}
	return n
}

func (r *memOrderRepo) status(id string) models.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

type memTurnStore struct {
	mu        sync.Mutex
	turns     map[string][]models.ConversationTurn
	readErr   error
	appendErr func(turn models.ConversationTurn) error
}

func newMemTurnStore() *memTurnStore {
	return &memTurnStore{turns: make(map[string][]models.ConversationTurn)}
}

func (s *memTurnStore) AppendTurn(ctx context.Context, customerID string, turn models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		if err := s.appendErr(turn); err != nil {
			return err
		}
	}
	s.turns[customerID] = append(s.turns[customerID], turn)
	return nil
}

func (s *memTurnStore) GetRecentTurns(ctx context.Context, customerID string, limit int) ([]models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	turns := s.turns[customerID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]models.ConversationTurn(nil), turns...), nil
}

func (s *memTurnStore) all(customerID string) []models.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConversationTurn(nil), s.turns[customerID]...)
}

type memCustomerRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.CustomerProfile
	err      error
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{profiles: make(map[string]*models.CustomerProfile)}
}

func (r *memCustomerRepo) GetByID(ctx context.Context, id string) (*models.CustomerProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memCustomerRepo) UpsertName(ctx context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.profiles[id] = &models.CustomerProfile{ID: id, Name: name}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type stubClassifier struct {
	intent  Intent
	err     error
	history []models.ConversationTurn
	message string
}

func (c *stubClassifier) Classify(ctx context.Context, history []models.ConversationTurn, message string) (Intent, error) {
	c.history = history
	c.message = message
	return c.intent, c.err
}

type fakeChatModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *fakeChatModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	return m.resp, m.err
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) SendTextMessage(ctx context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, phone+": "+message)
	return nil
}

func (s *fakeSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

var errStorage = errors.New("storage unavailable")
