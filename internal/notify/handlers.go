package notify

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/minitoshi/scream/internal/idgen"
)

// Handler provides HTTP endpoints for webhook subscription management.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a new notify handler.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes sets up webhook subscription routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhooks", h.Create)
	r.GET("/webhooks", h.List)
	r.DELETE("/webhooks/:id", h.Delete)
}

type createBody struct {
	Owner  string   `json:"owner" binding:"required"`
	URL    string   `json:"url" binding:"required,url"`
	Secret string   `json:"secret"`
	Events []string `json:"events" binding:"required"`
}

// Create handles POST /webhooks
func (h *Handler) Create(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	events := make([]EventType, len(body.Events))
	for i, e := range body.Events {
		events[i] = EventType(e)
	}

	sub := &Subscription{
		ID:        idgen.WithPrefix("whk"),
		Owner:     strings.ToLower(strings.TrimSpace(body.Owner)),
		URL:       body.URL,
		Secret:    body.Secret,
		Events:    events,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := h.store.Create(c.Request.Context(), sub); err != nil {
		h.logger.Error("subscription create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "webhook_error",
			"message": "Failed to create subscription",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// List handles GET /webhooks?owner=
func (h *Handler) List(c *gin.Context) {
	owner := strings.ToLower(strings.TrimSpace(c.Query("owner")))
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "owner query parameter is required",
		})
		return
	}

	subs, err := h.store.GetByOwner(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("subscription list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "webhook_error",
			"message": "Failed to list subscriptions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// Delete handles DELETE /webhooks/:id
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("subscription delete failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "webhook_error",
			"message": "Failed to delete subscription",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
