package services

import (
	"cafe_bot/internal/events"
	"cafe_bot/internal/models"
	"cafe_bot/internal/repository"
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultFeedbackDelay = 30 * time.Minute

var feedbackTemplates = []string{
	"¡Hola%s! 🌟 Esperamos que hayas disfrutado tu pedido. ¿Nos regalas 5 estrellitas en Google Maps? Ayuda mucho al equipo.",
	"Oye%s, ¿te gustó el café? ☕ Si traes a un amigo, ambos ganan puntos.",
	"¡Qué onda%s! Sólo pasaba a confirmar que todo estuvo delicioso. ¡Bonito día! ✨",
	"Hola%s 👋 ¿Cómo estuvo tu experiencia? Tu opinión es muy importante para nosotros.",
}

// FeedbackService sends a follow-up message some time after an order is
// delivered. It listens to order events and holds one timer per order.
type FeedbackService interface {
	events.Publisher
	Schedule(customerID, orderID string)
	Cancel(orderID string) bool
	Pending() int
	Stop()
}

type feedbackService struct {
	turns     TurnStore
	customers repository.CustomerRepository
	whatsapp  WhatsAppService
	delay     time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewFeedbackService builds the scheduler. whatsapp may be nil, in which case
// the message only lands in the conversation history.
func NewFeedbackService(turns TurnStore, customers repository.CustomerRepository, whatsapp WhatsAppService, delay time.Duration) FeedbackService {
	if delay <= 0 {
		delay = DefaultFeedbackDelay
	}
	return &feedbackService{
		turns:     turns,
		customers: customers,
		whatsapp:  whatsapp,
		delay:     delay,
		timers:    make(map[string]*time.Timer),
	}
}

// Publish schedules feedback for orders that just became delivered.
func (s *feedbackService) Publish(ctx context.Context, event events.OrderEvent) error {
	if event.Type != events.OrderStatusChanged || event.Order == nil {
		return nil
	}
	if event.Order.Status == models.OrderDelivered {
		s.Schedule(event.Order.CustomerID, event.Order.ID)
	}
	return nil
}

func (s *feedbackService) Schedule(customerID, orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || customerID == "" {
		return
	}
	if t, ok := s.timers[orderID]; ok {
		t.Stop()
	}
	s.timers[orderID] = time.AfterFunc(s.delay, func() {
		s.fire(customerID, orderID)
	})

	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"order_id":    orderID,
		"delay":       s.delay.String(),
	}).Info("Feedback scheduled")
}

func (s *feedbackService) Cancel(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[orderID]
	if !ok {
		return false
	}
	delete(s.timers, orderID)
	return t.Stop()
}

func (s *feedbackService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer. Later schedules are ignored.
func (s *feedbackService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *feedbackService) fire(customerID, orderID string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, orderID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"customer_id": customerID, "order_id": orderID})
	message := s.message(ctx, customerID)

	turn := models.ConversationTurn{Role: models.RoleAssistant, Content: message, Timestamp: time.Now().UTC()}
	if err := s.turns.AppendTurn(ctx, customerID, turn); err != nil {
		log.WithError(err).Error("Failed to save feedback message")
		return
	}

	if s.whatsapp != nil {
		if err := s.whatsapp.SendMessage(ctx, customerID, message); err != nil {
			log.WithError(err).Warn("Failed to send feedback over WhatsApp")
			return
		}
	}
	log.Info("Feedback sent")
}

func (s *feedbackService) message(ctx context.Context, customerID string) string {
	name := ""
	if s.customers != nil {
		if profile, err := s.customers.GetByID(ctx, customerID); err == nil && profile.Name != "" {
			name = " " + profile.Name
		}
	}
	return fmt.Sprintf(feedbackTemplates[rand.Intn(len(feedbackTemplates))], name)
}
