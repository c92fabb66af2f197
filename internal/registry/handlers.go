package registry

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler provides read-only HTTP endpoints over the flag registry. Flags
// are only ever written by the trigger cascade and the claim path.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a new registry handler.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes sets up registry routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/registry/aggressors", h.ListAggressors)
	r.GET("/registry/aggressors/:address", h.GetAggressor)
	r.GET("/registry/compromised", h.ListCompromised)
	r.GET("/registry/compromised/:owner", h.GetCompromised)
}

// ListAggressors handles GET /registry/aggressors
func (h *Handler) ListAggressors(c *gin.Context) {
	flags, err := h.store.ListAggressors(c.Request.Context(), parseLimit(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

// GetAggressor handles GET /registry/aggressors/:address
func (h *Handler) GetAggressor(c *gin.Context) {
	flag, err := h.store.GetAggressor(c.Request.Context(), norm(c.Param("address")))
	if errors.Is(err, ErrFlagNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Address is not flagged",
		})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flag": flag})
}

// ListCompromised handles GET /registry/compromised
func (h *Handler) ListCompromised(c *gin.Context) {
	flags, err := h.store.ListCompromised(c.Request.Context(), parseLimit(c))
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

// GetCompromised handles GET /registry/compromised/:owner
func (h *Handler) GetCompromised(c *gin.Context) {
	flag, err := h.store.GetCompromised(c.Request.Context(), norm(c.Param("owner")))
	if errors.Is(err, ErrFlagNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Wallet is not flagged",
		})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flag": flag})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error("registry handler error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "registry_error",
		"message": "Failed to query flag registry",
	})
}

func parseLimit(c *gin.Context) int {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func norm(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
