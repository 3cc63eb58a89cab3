package handlers

import (
	"cafe_bot/internal/models"
	"cafe_bot/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orders services.OrderService
}

func NewOrderHandler(orders services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) Register(api *gin.RouterGroup) {
	orders := api.Group("/orders")
	{
		orders.GET("/active", h.GetActive)
		orders.GET("/pending", h.listByStatus(models.OrderPending))
		orders.GET("/in-preparation", h.listByStatus(models.OrderInPreparation))
		orders.GET("/ready", h.listByStatus(models.OrderReady))
		orders.GET("/:id", h.GetOrder)

		orders.PATCH("/:id/status", h.UpdateStatus)
		orders.PATCH("/:id/start-preparation", h.transitionTo(models.OrderInPreparation))
		orders.PATCH("/:id/mark-ready", h.transitionTo(models.OrderReady))
		orders.PATCH("/:id/mark-delivered", h.transitionTo(models.OrderDelivered))
	}
}

func kitchenViews(orders []models.Order) []*models.KitchenOrderView {
	views := make([]*models.KitchenOrderView, 0, len(orders))
	for i := range orders {
		views = append(views, orders[i].KitchenView())
	}
	return views
}

func (h *OrderHandler) GetActive(c *gin.Context) {
	orders, err := h.orders.GetActiveOrders(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to get active orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": kitchenViews(orders), "count": len(orders)})
}

func (h *OrderHandler) listByStatus(status models.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.orders.GetOrdersByStatus(c.Request.Context(), status)
		if err != nil {
			respondError(c, err, "Failed to get orders")
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": kitchenViews(orders), "count": len(orders)})
	}
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get order")
		return
	}
	c.JSON(http.StatusOK, order.KitchenView())
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	h.applyStatus(c, req.Status)
}

func (h *OrderHandler) transitionTo(status models.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.applyStatus(c, status)
	}
}

func (h *OrderHandler) applyStatus(c *gin.Context, status models.OrderStatus) {
	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, order.KitchenView())
}
