package scenario

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sentrylab/aegis/internal/auth"
	"go.uber.org/zap"
)

// repo is the persistence interface for the handler. *Repository satisfies
// this interface; tests use an in-memory stub.
type repo interface {
	Create(ctx context.Context, s *Scenario) error
	GetByID(ctx context.Context, id uuid.UUID) (*Scenario, error)
	List(ctx context.Context, limit, offset int) ([]*Scenario, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler exposes the scenario CRUD endpoints.
type Handler struct {
	repo   repo
	tokens *auth.TokenIssuer // nil = no auth enforcement
	logger *zap.Logger
}

// NewHandler creates a new scenario Handler.
func NewHandler(repo repo, tokens *auth.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, tokens: tokens, logger: logger}
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

// Register registers the scenario routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	scenarios := rg.Group("/scenarios")
	{
		scenarios.POST("", h.requireOperator(), h.CreateScenario)
		scenarios.GET("", h.ListScenarios)
		scenarios.GET("/:id", h.GetScenario)
		scenarios.DELETE("/:id", h.requireAdmin(), h.DeleteScenario)
	}
}

// CreateScenario handles POST /scenarios.
func (h *Handler) CreateScenario(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s := &Scenario{
		Name:        req.Name,
		Description: req.Description,
		Tactics:     req.Tactics,
		Techniques:  req.Techniques,
		Severity:    req.Severity,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create scenario", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create scenario failed"})
		return
	}
	c.JSON(http.StatusCreated, s)
}

// ListScenarios handles GET /scenarios.
func (h *Handler) ListScenarios(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list scenarios", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list scenarios failed"})
		return
	}
	if list == nil {
		list = []*Scenario{}
	}
	c.JSON(http.StatusOK, list)
}

// GetScenario handles GET /scenarios/:id.
func (h *Handler) GetScenario(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario id"})
		return
	}

	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
			return
		}
		h.logger.Error("get scenario", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get scenario failed"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteScenario handles DELETE /scenarios/:id.
func (h *Handler) DeleteScenario(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
			return
		}
		h.logger.Error("delete scenario", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete scenario failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
