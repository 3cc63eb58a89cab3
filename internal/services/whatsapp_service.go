package services

import (
	"cafe_bot/internal/models"
	"context"
	"fmt"
)

// MessageSender is the outbound WhatsApp gateway.
type MessageSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

type WhatsAppService interface {
	SendMessage(ctx context.Context, phone, message string) error
	// Deliver relays a chat response, one message per bubble. Coalesced
	// responses send nothing.
	Deliver(ctx context.Context, phone string, resp *models.ChatResponse) error
}

type whatsappService struct {
	client MessageSender
}

func NewWhatsAppService(client MessageSender) WhatsAppService {
	return &whatsappService{client: client}
}

func (s *whatsappService) SendMessage(ctx context.Context, phone, message string) error {
	if err := s.client.SendTextMessage(ctx, phone, message); err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}
	return nil
}

func (s *whatsappService) Deliver(ctx context.Context, phone string, resp *models.ChatResponse) error {
	if resp == nil || resp.Kind == models.KindCoalesced {
		return nil
	}

	bubbles := resp.Messages
	if len(bubbles) == 0 {
		bubbles = []string{resp.Message}
	}
	for _, bubble := range bubbles {
		if bubble == "" {
			continue
		}
		if err := s.SendMessage(ctx, phone, bubble); err != nil {
			return err
		}
	}
	return nil
}
