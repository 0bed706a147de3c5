package riskmodel

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/dunning/internal/risk"
)

// Handler provides HTTP endpoints for model training and scoring.
type Handler struct {
	service *Service
}

// NewHandler creates a new model handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public model routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/models", h.ListModels)
	r.GET("/models/active", h.GetActiveModel)
	r.GET("/training-runs", h.ListRuns)
	r.POST("/customers/:key/model-score", h.ModelScore)
}

// RegisterAdminRoutes sets up admin-only model lifecycle routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/models/train", h.TrainModel)
	r.POST("/models/:id/activate", h.ActivateModel)
}

// TrainRequest is the body for POST /v1/admin/models/train. Samples are
// assembled by the caller (historical snapshots joined with realized
// outcome labels).
type TrainRequest struct {
	Samples       []Sample `json:"samples"`
	LearningRate  float64  `json:"learningRate"`
	MaxIterations int      `json:"maxIterations"`
	L2Penalty     float64  `json:"l2Penalty"`
}

// TrainModel handles POST /v1/admin/models/train
func (h *Handler) TrainModel(c *gin.Context) {
	var req TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Training samples are required",
		})
		return
	}

	cfg := TrainConfig{
		LearningRate:  req.LearningRate,
		MaxIterations: req.MaxIterations,
		L2Penalty:     req.L2Penalty,
	}

	record, run, err := h.service.RunTraining(c.Request.Context(), req.Samples, cfg)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrInvalidDataset) {
			status = http.StatusUnprocessableEntity
			code = "invalid_dataset"
		}
		resp := gin.H{"error": code, "message": err.Error()}
		if run != nil {
			resp["run"] = run
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"model": record,
		"run":   run,
	})
}

// ActivateModel handles POST /v1/admin/models/:id/activate
func (h *Handler) ActivateModel(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.Activate(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrModelNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "model activated", "model_id": id})
}

// GetActiveModel handles GET /v1/models/active
func (h *Handler) GetActiveModel(c *gin.Context) {
	record, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNoActiveModel) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "no_active_model",
				"message": "No model has been activated",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"model": record})
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), queryLimit(c, 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": records, "count": len(records)})
}

// ListRuns handles GET /v1/training-runs
func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := h.service.Runs(c.Request.Context(), queryLimit(c, 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// ModelScoreRequest is the body for POST /v1/customers/:key/model-score.
type ModelScoreRequest struct {
	Metrics risk.Metrics `json:"metrics"`
	AsOf    string       `json:"asOf"` // RFC 3339 date, defaults to today
}

// ModelScore handles POST /v1/customers/:key/model-score
func (h *Handler) ModelScore(c *gin.Context) {
	var req ModelScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Metrics body is required",
		})
		return
	}

	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "asOf must be a YYYY-MM-DD date",
			})
			return
		}
		asOf = parsed
	}

	score, err := h.service.ScoreActive(c.Request.Context(), req.Metrics, asOf)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, ErrNoActiveModel) {
			status = http.StatusConflict
			code = "no_active_model"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_key": c.Param("key"),
		"score":        score,
	})
}

func queryLimit(c *gin.Context, def int) int {
	limit := def
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}
