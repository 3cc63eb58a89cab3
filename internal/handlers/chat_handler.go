package handlers

import (
	"cafe_bot/internal/models"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Submitter accepts a customer message and returns the reply, possibly after
// debouncing it with the customer's follow-ups.
type Submitter interface {
	Submit(ctx context.Context, customerID, text string) (*models.ChatResponse, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type ChatHandler struct {
	chat   Submitter
	checks map[string]HealthCheck
}

func NewChatHandler(chat Submitter, checks map[string]HealthCheck) *ChatHandler {
	return &ChatHandler{chat: chat, checks: checks}
}

func (h *ChatHandler) Register(api *gin.RouterGroup) {
	api.POST("/chat", h.Chat)
	api.GET("/chat/health", h.Health)
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.chat.Submit(c.Request.Context(), req.CustomerID, req.Message)
	if err != nil {
		logrus.WithError(err).WithField("customer_id", req.CustomerID).Warn("Chat request aborted")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request aborted"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}
