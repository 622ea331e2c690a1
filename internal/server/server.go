// Package server exposes the meal planning API over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/query"
	"meal-scheduler/internal/source"
)

// PlanGenerator produces a meal plan from a free-text query.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, rawQuery string) (*planner.MealPlanResponse, error)
}

// Handler holds the dependencies for the API endpoints.
type Handler struct {
	planner    PlanGenerator
	dataPath   string
	authSecret string
}

// New creates a Handler. authSecret enables bearer-token auth on the API
// routes when non-empty.
func New(p PlanGenerator, dataPath, authSecret string) *Handler {
	return &Handler{planner: p, dataPath: dataPath, authSecret: authSecret}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.Default()

	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	if h.authSecret != "" {
		api.Use(authMiddleware(h.authSecret))
	}
	api.POST("/mealplan", h.CreateMealPlan)

	return router
}

type mealPlanRequest struct {
	Query string `json:"query"`
}

// CreateMealPlan handles POST /api/v1/mealplan.
func (h *Handler) CreateMealPlan(c *gin.Context) {
	var req mealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must contain a non-empty query"})
		return
	}

	plan, err := h.planner.GeneratePlan(c.Request.Context(), req.Query)
	if err != nil {
		var conflict *query.ConflictError
		switch {
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{
				"error":      conflict.Error(),
				"suggestion": conflict.Suggestion(),
			})
		case errors.Is(err, source.ErrAllSourcesFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "recipe sources are unavailable, try again later"})
		default:
			log.Printf("plan generation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate meal plan"})
		}
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Health handles GET /health with runtime and disk stats.
func (h *Handler) Health(c *gin.Context) {
	sys := metrics.GetSysHealth(h.dataPath)
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"alloc_mb":       sys.AllocMB,
		"total_alloc_mb": sys.TotalAllocMB,
		"sys_mb":         sys.SysMB,
		"num_gc":         sys.NumGC,
		"goroutines":     sys.Goroutines,
		"data_disk_size": sys.DataDiskSize,
	})
}
