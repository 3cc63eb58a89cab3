package services

import (
	"cafe_bot/internal/models"
	"context"
	"errors"
)

var (
	// ErrNoUsableOutput means the classifier answered with neither a tool call nor text.
	ErrNoUsableOutput    = errors.New("classifier returned no usable output")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Intent is what the classifier decided the customer wants. Exactly one of the
// concrete types below.
type Intent interface {
	intent()
}

type OrderItemRequest struct {
	ProductName string   `json:"product_name"`
	Quantity    int      `json:"quantity"`
	UnitPrice   float64  `json:"unit_price,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

type OrderItemsIntent struct {
	Items []OrderItemRequest
}

type CancelIntent struct {
	Reason string
}

type RegisterNameIntent struct {
	Name string
}

// PlainTextIntent carries the classifier's own reply. Text may be a JSON array
// of strings when the reply is split into several bubbles.
type PlainTextIntent struct {
	Text string
}

func (OrderItemsIntent) intent()   {}
func (CancelIntent) intent()       {}
func (RegisterNameIntent) intent() {}
func (PlainTextIntent) intent()    {}

type IntentClassifier interface {
	Classify(ctx context.Context, history []models.ConversationTurn, message string) (Intent, error)
}
