package services

import (
	"cafe_bot/internal/models"
	"cafe_bot/internal/monitoring"
	"cafe_bot/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHistoryLimit = 10

	genericErrorMessage = "Uy, tuve un problema procesando tu mensaje. ¿Me lo repites en un momento?"
	noOutputMessage     = "Sin respuesta válida del asistente."
	defaultCancelReason = "Sin razón"
	deliveryClockLayout = "15:04"
)

// TurnStore is the per-customer conversation log.
type TurnStore interface {
	AppendTurn(ctx context.Context, customerID string, turn models.ConversationTurn) error
	GetRecentTurns(ctx context.Context, customerID string, limit int) ([]models.ConversationTurn, error)
}

// ChatService turns one (already coalesced) customer message into a reply.
type ChatService interface {
	Process(ctx context.Context, customerID, message string) (*models.ChatResponse, error)
}

type chatService struct {
	turns         TurnStore
	classifier    IntentClassifier
	orders        OrderService
	cancellations CancellationService
	customers     repository.CustomerRepository
	historyLimit  int
	location      *time.Location
	now           func() time.Time
}

// NewChatService builds the orchestrator. Delivery times in replies are shown in loc.
func NewChatService(turns TurnStore, classifier IntentClassifier, orders OrderService, cancellations CancellationService, customers repository.CustomerRepository, historyLimit int, loc *time.Location) ChatService {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	return &chatService{
		turns:         turns,
		classifier:    classifier,
		orders:        orders,
		cancellations: cancellations,
		customers:     customers,
		historyLimit:  historyLimit,
		location:      loc,
		now:           time.Now,
	}
}

// Process never returns an error for business or infrastructure failures; those
// become error responses. Only a cancelled context is returned as an error.
func (s *chatService) Process(ctx context.Context, customerID, message string) (*models.ChatResponse, error) {
	log := logrus.WithField("customer_id", customerID)

	// History is read before the new turn is appended so it holds only prior turns.
	history, readErr := s.turns.GetRecentTurns(ctx, customerID, s.historyLimit)
	appendErr := s.turns.AppendTurn(ctx, customerID, s.turn(models.RoleCustomer, message))
	if readErr != nil {
		return s.fail(ctx, log, customerID, fmt.Errorf("failed to read history: %w", readErr))
	}
	if appendErr != nil {
		return s.fail(ctx, log, customerID, fmt.Errorf("failed to save customer turn: %w", appendErr))
	}

	intent, err := s.classifier.Classify(ctx, history, message)
	if err != nil {
		return s.fail(ctx, log, customerID, fmt.Errorf("failed to classify message: %w", err))
	}

	var resp *models.ChatResponse
	switch in := intent.(type) {
	case OrderItemsIntent:
		resp, err = s.handleOrder(ctx, customerID, in)
	case CancelIntent:
		resp, err = s.handleCancel(ctx, customerID, in)
	case RegisterNameIntent:
		resp, err = s.handleRegisterName(ctx, customerID, in)
	case PlainTextIntent:
		resp, err = textResponse(in.Text)
	default:
		err = ErrNoUsableOutput
	}
	if err != nil {
		return s.fail(ctx, log, customerID, err)
	}

	s.reply(ctx, log, customerID, resp)
	return resp, nil
}

func (s *chatService) handleOrder(ctx context.Context, customerID string, in OrderItemsIntent) (*models.ChatResponse, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: order without items", ErrNoUsableOutput)
	}

	result, err := s.orders.ApplyOrder(ctx, customerID, in.Items)
	if err != nil {
		return nil, err
	}

	order := result.Order
	eta := order.EstimatedDelivery.In(s.location).Format(deliveryClockLayout)
	var text string
	if result.Created {
		text = fmt.Sprintf("¡Órale! Confirmado. Son $%.2f. Queda listo en ~%d min (a las %s).", order.Total, order.PrepMinutes, eta)
	} else {
		text = fmt.Sprintf("¡Listo! Agregado a tu orden. Total: $%.2f. Tiempo estimado: %d min (aprox %s).", order.Total, order.PrepMinutes, eta)
	}

	return &models.ChatResponse{
		Kind:    result.Kind(),
		Message: text,
		Order:   order.Summary(),
	}, nil
}

func (s *chatService) handleCancel(ctx context.Context, customerID string, in CancelIntent) (*models.ChatResponse, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	result, err := s.cancellations.Cancel(ctx, customerID, reason)
	if err != nil {
		return nil, err
	}

	minutes := result.ElapsedMinutes()
	metadata := map[string]interface{}{
		"outcome":         string(result.Outcome),
		"elapsed_minutes": minutes,
	}

	switch result.Outcome {
	case OutcomeNoPendingOrder:
		return &models.ChatResponse{
			Kind:     models.KindText,
			Message:  "No encontré ninguna orden pendiente pa' cancelar.",
			Metadata: metadata,
		}, nil
	case OutcomeTooLate:
		metadata["order_id"] = result.OrderID
		return &models.ChatResponse{
			Kind:     models.KindText,
			Message:  fmt.Sprintf("Híjole, ya pasaron %d minutos y tu pedido ya está en preparación. No puedo cancelarlo. 🍳", minutes),
			Metadata: metadata,
		}, nil
	default:
		metadata["order_id"] = result.OrderID
		return &models.ChatResponse{
			Kind:     models.KindOrderCancelled,
			Message:  fmt.Sprintf("Estás a tiempo (pasaron sólo %d min). Cancelada la orden %s. Razón: %s", minutes, result.OrderID, result.Reason),
			Metadata: metadata,
		}, nil
	}
}

func (s *chatService) handleRegisterName(ctx context.Context, customerID string, in RegisterNameIntent) (*models.ChatResponse, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNoUsableOutput)
	}
	if err := s.customers.UpsertName(ctx, customerID, name); err != nil {
		return nil, fmt.Errorf("failed to register name: %w", err)
	}
	return &models.ChatResponse{
		Kind:     models.KindText,
		Message:  fmt.Sprintf("¡Mucho gusto, %s! Ya quedó registrado tu nombre. ¿Qué se te antoja?", name),
		Metadata: map[string]interface{}{"name": name},
	}, nil
}

// textResponse accepts either plain text or a JSON array of strings, one per bubble.
func textResponse(text string) (*models.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoUsableOutput
	}

	if bubbles, ok := parseBubbles(text); ok {
		return &models.ChatResponse{
			Kind:     models.KindText,
			Message:  strings.Join(bubbles, " "),
			Messages: bubbles,
		}, nil
	}
	return &models.ChatResponse{Kind: models.KindText, Message: text}, nil
}

func parseBubbles(text string) ([]string, bool) {
	candidate := stripCodeFence(text)
	if !strings.HasPrefix(candidate, "[") {
		return nil, false
	}
	var bubbles []string
	if err := json.Unmarshal([]byte(candidate), &bubbles); err != nil || len(bubbles) == 0 {
		return nil, false
	}
	return bubbles, true
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// fail logs err and answers with an error response. A cancelled context is the
// only case surfaced to the caller.
func (s *chatService) fail(ctx context.Context, log *logrus.Entry, customerID string, err error) (*models.ChatResponse, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	message := genericErrorMessage
	if errors.Is(err, ErrNoUsableOutput) {
		message = noOutputMessage
		log.WithError(err).Warn("Classifier produced no usable output")
	} else {
		log.WithError(err).Error("Failed to process chat message")
	}

	resp := &models.ChatResponse{Kind: models.KindError, Message: message}
	s.reply(ctx, log, customerID, resp)
	return resp, nil
}

// reply records the assistant turn and the response metric. A failure to record
// the turn does not change the reply.
func (s *chatService) reply(ctx context.Context, log *logrus.Entry, customerID string, resp *models.ChatResponse) {
	monitoring.ChatResponses.WithLabelValues(string(resp.Kind)).Inc()
	if err := s.turns.AppendTurn(ctx, customerID, s.turn(models.RoleAssistant, resp.Message)); err != nil {
		log.WithError(err).Warn("Failed to save assistant turn")
	}
}

func (s *chatService) turn(role models.TurnRole, content string) models.ConversationTurn {
	return models.ConversationTurn{Role: role, Content: content, Timestamp: s.now().UTC()}
}
