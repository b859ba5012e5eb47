package device

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sentrylab/aegis/internal/auth"
	"go.uber.org/zap"
)

// Handler exposes the device management endpoints.
type Handler struct {
	svc      *Service
	tokens   *auth.TokenIssuer // nil = no auth enforcement
	notifier OfflineNotifier   // optional, receives device.revoked events
	logger   *zap.Logger
}

// NewHandler creates a new device Handler.
func NewHandler(svc *Service, tokens *auth.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// SetNotifier configures the event notifier for revocations.
func (h *Handler) SetNotifier(n OfflineNotifier) {
	h.notifier = n
}

func (h *Handler) requireOperator() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireOperator(h.tokens)
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireAdmin(h.tokens)
}

// Register registers the device routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	devices := rg.Group("/devices")
	{
		devices.POST("", h.requireOperator(), h.EnrollDevice)
		devices.GET("", h.requireOperator(), h.ListDevices)
		devices.POST("/:id/revoke", h.requireAdmin(), h.RevokeDevice)
	}
}

// EnrollDevice handles POST /devices — enrolls a device and returns its
// one-time signing secret.
func (h *Handler) EnrollDevice(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Enroll(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("enroll device", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enroll device failed"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListDevices handles GET /devices.
func (h *Handler) ListDevices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list devices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list devices failed"})
		return
	}
	if list == nil {
		list = []*Device{}
	}
	c.JSON(http.StatusOK, list)
}

// RevokeDevice handles POST /devices/:id/revoke.
func (h *Handler) RevokeDevice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}

	if err := h.svc.Revoke(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		h.logger.Error("revoke device", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke device failed"})
		return
	}
	if h.notifier != nil {
		h.notifier.Dispatch(c.Request.Context(), "device.revoked", map[string]string{
			"id": id.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
