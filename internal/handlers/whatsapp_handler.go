package handlers

import (
	"cafe_bot/internal/services"
	"cafe_bot/pkg/whatsapp"
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WhatsAppHandler struct {
	chat     Submitter
	whatsapp services.WhatsAppService

	wg sync.WaitGroup
}

func NewWhatsAppHandler(chat Submitter, whatsappService services.WhatsAppService) *WhatsAppHandler {
	return &WhatsAppHandler{chat: chat, whatsapp: whatsappService}
}

func (h *WhatsAppHandler) Register(api *gin.RouterGroup) {
	api.POST("/whatsapp/webhook", h.HandleWebhook)
	api.POST("/whatsapp/send-message", h.SendMessage)
}

type WebhookRequest struct {
	SenderID  string `json:"sender_id"`
	ChatID    string `json:"chat_id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Pushname  string `json:"pushname"`
	Message   struct {
		Text          string `json:"text"`
		ID            string `json:"id"`
		RepliedID     string `json:"replied_id"`
		QuotedMessage string `json:"quoted_message"`
	} `json:"message"`
}

type SendMessageRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// HandleWebhook acknowledges the gateway right away and answers the customer in
// the background once the message burst settles.
func (h *WhatsAppHandler) HandleWebhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	phone := req.From
	if phone == "" {
		phone = req.SenderID
	}
	phone = whatsapp.NormalizePhone(phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing sender"})
		return
	}

	text := strings.TrimSpace(req.Message.Text)
	if text == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.relay(ctx, phone, text)
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *WhatsAppHandler) relay(ctx context.Context, phone, text string) {
	log := logrus.WithField("customer_id", phone)

	resp, err := h.chat.Submit(ctx, phone, text)
	if err != nil {
		log.WithError(err).Warn("WhatsApp message was not processed")
		return
	}
	if err := h.whatsapp.Deliver(ctx, phone, resp); err != nil {
		log.WithError(err).Error("Failed to deliver WhatsApp reply")
	}
}

// Wait blocks until every in-flight webhook has been answered.
func (h *WhatsAppHandler) Wait() {
	h.wg.Wait()
}

func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.whatsapp.SendMessage(c.Request.Context(), req.Phone, req.Message); err != nil {
		logrus.WithError(err).Error("Failed to send WhatsApp message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
