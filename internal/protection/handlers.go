package protection

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minitoshi/scream/internal/ledger"
)

// Handler provides HTTP endpoints for protection setup, deposits, and the
// recovery flow. The trigger endpoint lives with the cascade executor.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a new protection handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes sets up protection routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/protection", h.Setup)
	r.POST("/protection/:owner/deposit", h.Deposit)
	r.GET("/protection/:owner", h.Status)
	r.GET("/protection/:owner/alerts", h.Alerts)
	r.POST("/protection/:owner/recovery", h.InitiateRecovery)
	r.POST("/protection/:owner/recovery/approve", h.ApproveRecovery)
	r.POST("/protection/:owner/claim", h.Claim)
}

type setupBody struct {
	Owner             string   `json:"owner" binding:"required"`
	TriggerHash       string   `json:"triggerHash" binding:"required"`
	Contacts          []string `json:"contacts" binding:"required"`
	RecoveryThreshold int      `json:"recoveryThreshold" binding:"required"`
	TimeLockSeconds   int64    `json:"timeLockSeconds"`
	DecoyAmount       string   `json:"decoyAmount" binding:"required"`
}

// Setup handles POST /protection
func (h *Handler) Setup(c *gin.Context) {
	var body setupBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	cfg, v, err := h.svc.Setup(c.Request.Context(), SetupRequest{
		Owner:             body.Owner,
		TriggerHash:       body.TriggerHash,
		Contacts:          body.Contacts,
		RecoveryThreshold: body.RecoveryThreshold,
		TimeLockSeconds:   body.TimeLockSeconds,
		DecoyAmount:       body.DecoyAmount,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"config": cfg, "vault": v})
}

type depositBody struct {
	Amount string `json:"amount" binding:"required"`
}

// Deposit handles POST /protection/:owner/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var body depositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if err := h.svc.Deposit(c.Request.Context(), c.Param("owner"), body.Amount); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deposited", "amount": body.Amount})
}

// Status handles GET /protection/:owner
func (h *Handler) Status(c *gin.Context) {
	view, err := h.svc.Status(c.Request.Context(), c.Param("owner"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Alerts handles GET /protection/:owner/alerts
func (h *Handler) Alerts(c *gin.Context) {
	alerts, err := h.svc.Alerts(c.Request.Context(), c.Param("owner"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// InitiateRecovery handles POST /protection/:owner/recovery
func (h *Handler) InitiateRecovery(c *gin.Context) {
	if err := h.svc.InitiateRecovery(c.Request.Context(), c.Param("owner")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recovery_initiated"})
}

type approveBody struct {
	Contact string `json:"contact" binding:"required"`
}

// ApproveRecovery handles POST /protection/:owner/recovery/approve
func (h *Handler) ApproveRecovery(c *gin.Context) {
	var body approveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	approvals, threshold, err := h.svc.ApproveRecovery(c.Request.Context(), c.Param("owner"), body.Contact)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"approvals":    approvals,
		"threshold":    threshold,
		"thresholdMet": approvals >= threshold,
	})
}

// Claim handles POST /protection/:owner/claim
func (h *Handler) Claim(c *gin.Context) {
	claimed, err := h.svc.Claim(c.Request.Context(), c.Param("owner"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "claimed", "amount": claimed})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, ErrConfigNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrAlreadyConfigured):
		status, code = http.StatusConflict, "already_configured"
	case errors.Is(err, ErrInvalidTrigger),
		errors.Is(err, ErrNoContacts),
		errors.Is(err, ErrTooManyContacts),
		errors.Is(err, ErrDuplicateContact),
		errors.Is(err, ErrInvalidThreshold),
		errors.Is(err, ErrInvalidTimeLock),
		errors.Is(err, ledger.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrAlreadyTriggered),
		errors.Is(err, ErrRecoveryAlreadyInitiated),
		errors.Is(err, ErrAlreadyApproved):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, ErrNotTriggered),
		errors.Is(err, ErrRecoveryNotInitiated),
		errors.Is(err, ErrTimeLockActive),
		errors.Is(err, ErrInsufficientApprovals):
		status, code = http.StatusForbidden, "not_allowed"
	case errors.Is(err, ErrNotAContact):
		status, code = http.StatusForbidden, "not_a_contact"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status, code = http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, ledger.ErrAccountNotFound):
		status, code = http.StatusNotFound, "account_not_found"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("protection handler error", "error", err)
		c.JSON(status, gin.H{"error": code, "message": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
