package services

import (
	"cafe_bot/internal/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver(t *testing.T) {
	tests := []struct {
		name string
		resp *models.ChatResponse
		want []string
	}{
		{"single", &models.ChatResponse{Kind: models.KindText, Message: "hola"}, []string{"C1: hola"}},
		{"bubbles", &models.ChatResponse{Kind: models.KindText, Message: "a b", Messages: []string{"a", "", "b"}}, []string{"C1: a", "C1: b"}},
		{"coalesced", models.CoalescedResponse(), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			require.NoError(t, NewWhatsAppService(sender).Deliver(context.Background(), "C1", tt.resp))
			assert.Equal(t, tt.want, sender.messages())
		})
	}
}

func TestDeliver_SendError(t *testing.T) {
	sender := &fakeSender{err: errStorage}
	err := NewWhatsAppService(sender).Deliver(context.Background(), "C1", &models.ChatResponse{Kind: models.KindError, Message: "x"})
	assert.ErrorIs(t, err, errStorage)
}
