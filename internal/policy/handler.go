package policy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sentrylab/aegis/internal/auth"
	"go.uber.org/zap"
)

// Notifier receives an event when the policy changes.
type Notifier interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// Handler exposes the policy read/update endpoints.
type Handler struct {
	svc      *Service
	tokens   *auth.TokenIssuer // nil = no auth enforcement (tests, dev mode)
	notifier Notifier          // optional
	logger   *zap.Logger
}

// NewHandler creates a new policy Handler.
func NewHandler(svc *Service, tokens *auth.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// SetNotifier configures the policy change notifier.
func (h *Handler) SetNotifier(n Notifier) {
	h.notifier = n
}

// requireOperator returns the operator-auth middleware, or a no-op when auth
// is not configured.
func (h *Handler) requireOperator() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireOperator(h.tokens)
}

// Register registers the policy routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/policy", h.GetPolicy)
	rg.PUT("/policy", h.requireOperator(), h.UpdatePolicy)
}

// GetPolicy handles GET /policy — returns the active policy, creating the
// defaults on first access.
func (h *Handler) GetPolicy(c *gin.Context) {
	p, err := h.svc.Resolve(c.Request.Context())
	if err != nil {
		h.logger.Error("resolve policy", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "policy store unavailable"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePolicy handles PUT /policy — overwrites the active policy.
// Threshold values are stored as given; out-of-range values are the
// operator's responsibility.
func (h *Handler) UpdatePolicy(c *gin.Context) {
	var p Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Update(c.Request.Context(), &p); err != nil {
		h.logger.Error("update policy", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "policy store unavailable"})
		return
	}
	if h.notifier != nil {
		h.notifier.Dispatch(c.Request.Context(), "policy.updated", map[string]string{
			"alert_risk_threshold": fmt.Sprintf("%.2f", p.AlertRiskThreshold),
		})
	}
	c.JSON(http.StatusOK, p)
}
