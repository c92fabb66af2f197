package cascade

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the trigger endpoint.
//
// Rejections are deliberately uniform: wrong secret, unknown owner, and
// already-triggered all produce the same status and body, so a coercing
// party watching the response learns nothing about why an attempt failed.
type Handler struct {
	executor *Executor
	logger   *slog.Logger
}

// NewHandler creates a new cascade handler.
func NewHandler(executor *Executor, logger *slog.Logger) *Handler {
	return &Handler{executor: executor, logger: logger}
}

// RegisterRoutes sets up the trigger route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/panic", h.Trigger)
}

type triggerBody struct {
	Owner     string   `json:"owner" binding:"required"`
	Secret    string   `json:"secret" binding:"required"`
	Aggressor string   `json:"aggressor" binding:"required"`
	Contacts  []string `json:"contacts"`
}

// Trigger handles POST /panic
func (h *Handler) Trigger(c *gin.Context) {
	var body triggerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Malformed trigger request",
		})
		return
	}

	result, err := h.executor.Execute(c.Request.Context(), Request{
		Owner:     body.Owner,
		Secret:    []byte(body.Secret),
		Aggressor: body.Aggressor,
		Contacts:  body.Contacts,
	})
	if err != nil {
		h.reject(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "triggered", "result": result})
}

// reject collapses every failure into one opaque response. Details stay in
// the server log. Infrastructure failures get a 500 so callers retry;
// validation rejections get a 403 with an identical body.
func (h *Handler) reject(c *gin.Context, err error) {
	status := http.StatusForbidden
	if errors.Is(err, ErrCascadeFailed) {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"error":   "trigger_rejected",
		"message": "Trigger was not accepted",
	})
}
