package simulation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentrylab/aegis/internal/analysis"
	"github.com/sentrylab/aegis/internal/device"
)

// Handler exposes the evaluation pipeline over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a new simulation Handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes wires the simulation endpoints. requireDevice guards the
// raw telemetry intake; operator endpoints are wired by the caller.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, requireDevice gin.HandlerFunc) {
	r.POST("/simulate", h.Simulate)
	r.GET("/simulations", h.List)
	r.GET("/simulations/:id", h.Get)
	if requireDevice != nil {
		r.POST("/telemetry", requireDevice, h.IngestTelemetry)
	}
}

// Simulate evaluates telemetry against a stored scenario.
func (h *Handler) Simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	res, err := h.svc.Run(c.Request.Context(), &req.ScenarioID, &req.Telemetry)
	if err != nil {
		h.renderRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// IngestTelemetry evaluates telemetry submitted by an enrolled device. The
// authenticated device identity overrides whatever device_id the payload
// carries.
func (h *Handler) IngestTelemetry(c *gin.Context) {
	var t analysis.Telemetry
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telemetry: " + err.Error()})
		return
	}

	dev := device.FromCtx(c)
	if dev == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "device identity missing"})
		return
	}
	t.DeviceID = dev.DeviceID

	res, err := h.svc.Run(c.Request.Context(), nil, &t)
	if err != nil {
		h.renderRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// List returns recorded results newest first.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	results, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list simulations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list simulations"})
		return
	}
	if results == nil {
		results = []*Result{}
	}
	c.JSON(http.StatusOK, gin.H{"simulations": results, "count": len(results)})
}

// Get returns a single recorded result.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid simulation ID"})
		return
	}

	res, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "simulation not found"})
			return
		}
		h.logger.Error("failed to get simulation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get simulation"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) renderRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrScenarioNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
	case errors.Is(err, ErrPolicyUnavailable):
		h.logger.Error("policy unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "policy store unavailable"})
	default:
		h.logger.Error("simulation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulation failed"})
	}
}
