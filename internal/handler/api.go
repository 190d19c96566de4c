package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"moderation-service/internal/models"
	"moderation-service/internal/repository"
	"moderation-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxListLimit = 200

// Submissions stores and reads submissions
type Submissions interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, limit, offset int) ([]*models.Submission, error)
}

// Moderator runs moderation for a stored submission
type Moderator interface {
	RunModeration(ctx context.Context, id string) (*models.ModerationResult, error)
	RunModerationAsync(ctx context.Context, id string) error
}

// ProvidersInfo reports the configured reasoning providers for the health check
type ProvidersInfo func() []map[string]interface{}

// Handler handles HTTP requests
type Handler struct {
	submissions Submissions
	moderator   Moderator
	providers   ProvidersInfo
	metrics     http.Handler
	logger      *zap.Logger
}

// NewHandler creates a new API handler. providers and metrics may be nil.
func NewHandler(submissions Submissions, moderator Moderator, providers ProvidersInfo,
	metrics http.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		submissions: submissions,
		moderator:   moderator,
		providers:   providers,
		metrics:     metrics,
		logger:      logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/submissions", h.CreateSubmission)
		api.GET("/submissions", h.ListSubmissions)
		api.GET("/submissions/:id", h.GetSubmission)

		// Moderation
		api.POST("/submissions/:id/moderate", h.Moderate)
		api.POST("/submissions/:id/moderate/async", h.ModerateAsync)
	}

	r.GET("/health", h.HealthCheck)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

// CORS allows browser clients from any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// CreateSubmission stores new content. The type is image when an image URL
// is supplied, text otherwise.
func (h *Handler) CreateSubmission(c *gin.Context) {
	var req models.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text := strings.TrimSpace(req.TextContent)
	imageURL := strings.TrimSpace(req.ImageURL)
	if text == "" && imageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text_content or image_url is required"})
		return
	}

	sub := &models.Submission{Type: models.SubmissionText}
	if text != "" {
		sub.TextContent = &text
	}
	if imageURL != "" {
		sub.Type = models.SubmissionImage
		sub.ImageURL = &imageURL
	}

	if err := h.submissions.Create(c.Request.Context(), sub); err != nil {
		h.logger.Error("Failed to create submission", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create submission"})
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// GetSubmission returns a submission with its current stage and status
func (h *Handler) GetSubmission(c *gin.Context) {
	sub, err := h.submissions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		h.logger.Error("Failed to get submission", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get submission"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListSubmissions returns the most recent submissions
func (h *Handler) ListSubmissions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit (must be 1-200)"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	subs, err := h.submissions.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list submissions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list submissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": subs,
		"total":       len(subs),
		"limit":       limit,
		"offset":      offset,
	})
}

// Moderate runs moderation and waits for the verdict
func (h *Handler) Moderate(c *gin.Context) {
	id := c.Param("id")

	result, err := h.moderator.RunModeration(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		h.logger.Error("Moderation failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "moderation failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ModerateAsync queues moderation and returns immediately
func (h *Handler) ModerateAsync(c *gin.Context) {
	id := c.Param("id")

	err := h.moderator.RunModerationAsync(c.Request.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return
	case errors.Is(err, service.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service is shutting down"})
		return
	default:
		h.logger.Error("Failed to queue moderation", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue moderation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":      id,
		"stage":   models.StageQueued,
		"message": "Moderation started. Check /api/v1/submissions/" + id + " for progress",
	})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": "moderation-service",
		"version": "1.0.0",
	}
	if h.providers != nil {
		resp["providers"] = h.providers()
	}

	c.JSON(http.StatusOK, resp)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
