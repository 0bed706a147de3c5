package risk

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for risk evaluation and rule administration.
type Handler struct {
	service *Service
}

// NewHandler creates a new risk handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public risk routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/customers/:key/score", h.ScoreCustomer)
	r.GET("/customers/:key/assessments", h.ListAssessments)
	r.GET("/rules", h.ListRules)
}

// RegisterAdminRoutes sets up admin-only rule administration routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/rules", h.CreateRule)
	r.PUT("/rules/:id", h.UpdateRule)
	r.DELETE("/rules/:id", h.DeleteRule)
}

// ScoreCustomer handles POST /v1/customers/:key/score
func (h *Handler) ScoreCustomer(c *gin.Context) {
	key := c.Param("key")

	var m Metrics
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Metrics body is required",
		})
		return
	}

	assessment, err := h.service.Evaluate(c.Request.Context(), key, m)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}

// ListAssessments handles GET /v1/customers/:key/assessments
func (h *Handler) ListAssessments(c *gin.Context) {
	key := c.Param("key")

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	assessments, err := h.service.History(c.Request.Context(), key, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": assessments,
		"count":       len(assessments),
	})
}

// ListRules handles GET /v1/rules
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.service.Rules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateRule handles POST /v1/admin/rules
func (h *Handler) CreateRule(c *gin.Context) {
	var rule Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Rule body is required",
		})
		return
	}

	if err := h.service.CreateRule(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rule",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// UpdateRule handles PUT /v1/admin/rules/:id
func (h *Handler) UpdateRule(c *gin.Context) {
	var rule Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Rule body is required",
		})
		return
	}
	rule.ID = c.Param("id")

	if err := h.service.UpdateRule(c.Request.Context(), &rule); err != nil {
		status := http.StatusBadRequest
		code := "invalid_rule"
		if errors.Is(err, ErrRuleNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule handles DELETE /v1/admin/rules/:id
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrRuleNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rule deleted"})
}
