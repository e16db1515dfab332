package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/domain"
	"github.com/oniichan80000/image-resizer/internal/repository"
	"github.com/oniichan80000/image-resizer/internal/service"
)

type Handler struct {
	intents service.IntentService
	log     *zap.Logger
}

func NewHandler(intents service.IntentService, log *zap.Logger) *Handler {
	return &Handler{
		intents: intents,
		log:     log,
	}
}

// CreateUploadURL handles POST /api/upload-url. A body that fails to parse
// is not an error: the intent is issued with all defaults.
func (h *Handler) CreateUploadURL(c *gin.Context) {
	var req domain.UploadIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Unparseable request body, issuing with defaults", zap.Error(err))
		req = domain.UploadIntentRequest{}
	}

	intent, err := h.intents.IssueUpload(c.Request.Context(), req)
	if err != nil {
		h.log.Error("Failed to issue upload URL", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Error generating upload URL",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, intent)
}

// GetProcessedURL handles GET /api/processed-url?key=... . While the
// transform has not produced the object yet the response is 404, distinct
// from server errors, so clients know to keep polling.
func (h *Handler) GetProcessedURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Missing 'key' query string parameter",
		})
		return
	}

	intent, err := h.intents.IssueRetrieval(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"message": "Processed object not found yet.",
			})
			return
		}
		h.log.Error("Failed to issue processed URL",
			zap.String("key", key),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Error generating processed URL",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, intent)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
