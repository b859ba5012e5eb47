package feedback

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentrylab/aegis/internal/auth"
	"github.com/sentrylab/aegis/internal/simulation"
)

// labelStore is the storage surface the handler needs.
type labelStore interface {
	Create(ctx context.Context, l *Label) error
	ListBySimulation(ctx context.Context, simulationID uuid.UUID) ([]*Label, error)
}

// simulationLookup confirms the labelled simulation exists.
type simulationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*simulation.Result, error)
}

// Handler exposes feedback labelling over HTTP.
type Handler struct {
	store       labelStore
	simulations simulationLookup
	logger      *zap.Logger
}

// NewHandler creates a new feedback Handler.
func NewHandler(store labelStore, simulations simulationLookup, logger *zap.Logger) *Handler {
	return &Handler{store: store, simulations: simulations, logger: logger}
}

// RegisterRoutes wires the feedback endpoints under an operator-guarded group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/simulations/:id/feedback", h.Create)
	r.GET("/simulations/:id/feedback", h.List)
}

// Create attaches a verdict to a simulation.
func (h *Handler) Create(c *gin.Context) {
	simID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid simulation ID"})
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if _, err := h.simulations.GetByID(c.Request.Context(), simID); err != nil {
		if errors.Is(err, simulation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "simulation not found"})
			return
		}
		h.logger.Error("failed to look up simulation for feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
		return
	}

	createdBy := "unknown"
	if claims := auth.ClaimsFromCtx(c); claims != nil {
		createdBy = claims.Username
	}

	label := &Label{
		ID:           uuid.New(),
		SimulationID: simID,
		Verdict:      req.Verdict,
		Notes:        req.Notes,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.Create(c.Request.Context(), label); err != nil {
		h.logger.Error("failed to store feedback label", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
		return
	}
	c.JSON(http.StatusCreated, label)
}

// List returns the labels for a simulation, oldest first.
func (h *Handler) List(c *gin.Context) {
	simID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid simulation ID"})
		return
	}

	labels, err := h.store.ListBySimulation(c.Request.Context(), simID)
	if err != nil {
		h.logger.Error("failed to list feedback labels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list feedback"})
		return
	}
	if labels == nil {
		labels = []*Label{}
	}
	c.JSON(http.StatusOK, gin.H{"feedback": labels, "count": len(labels)})
}
