package handlers

import (
	"cafe_bot/internal/models"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type MenuCatalog interface {
	All() []models.MenuItem
	Find(name string) (models.MenuItem, bool)
	Get(id string) (models.MenuItem, bool)
	Load(ctx context.Context) (int, error)
}

type MenuHandler struct {
	menu MenuCatalog
}

func NewMenuHandler(menu MenuCatalog) *MenuHandler {
	return &MenuHandler{menu: menu}
}

func (h *MenuHandler) Register(api *gin.RouterGroup) {
	menu := api.Group("/menu")
	{
		menu.GET("", h.List)
		menu.GET("/search/:query", h.Search)
		menu.GET("/item/:id", h.GetItem)
		menu.POST("/reload", h.Reload)
	}
}

func (h *MenuHandler) List(c *gin.Context) {
	items := h.menu.All()
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *MenuHandler) Search(c *gin.Context) {
	item, ok := h.menu.Find(c.Param("query"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) GetItem(c *gin.Context) {
	item, ok := h.menu.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) Reload(c *gin.Context) {
	n, err := h.menu.Load(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to reload menu")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload menu"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "count": n})
}
