package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
	"github.com/hikevindiaz/link-ai-knowledge/internal/service"
)

// KnowledgeSourceHandler handles knowledge source endpoints.
type KnowledgeSourceHandler struct {
	sources *repository.KnowledgeSourceRepository
	ingest  *service.IngestService
}

// NewKnowledgeSourceHandler creates a new knowledge source handler.
// Parameters:
//   - sources: knowledge source repository.
//   - ingest: ingestion orchestrator, used for cascading deletes.
// Returns:
//   - *KnowledgeSourceHandler: initialized handler.
func NewKnowledgeSourceHandler(sources *repository.KnowledgeSourceRepository, ingest *service.IngestService) *KnowledgeSourceHandler {
	return &KnowledgeSourceHandler{
		sources: sources,
		ingest:  ingest,
	}
}

type createSourceRequest struct {
	UserID              string `json:"user_id" binding:"required"`
	Name                string `json:"name" binding:"required"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

// Create handles POST /api/v1/knowledge-sources.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *KnowledgeSourceHandler) Create(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	source := &domain.KnowledgeSource{
		ID:                  uuid.New().String(),
		UserID:              req.UserID,
		Name:                req.Name,
		EmbeddingModel:      req.EmbeddingModel,
		EmbeddingDimensions: req.EmbeddingDimensions,
	}
	if source.EmbeddingModel == "" {
		source.EmbeddingModel = "jina-embeddings-v3"
	}
	if source.EmbeddingDimensions <= 0 {
		source.EmbeddingDimensions = 1024
	}

	if err := h.sources.Create(c.Request.Context(), source); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create knowledge source: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, source)
}

// Get handles GET /api/v1/knowledge-sources/:id.
func (h *KnowledgeSourceHandler) Get(c *gin.Context) {
	id := c.Param("id")

	source, err := h.sources.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Knowledge source not found",
		})
		return
	}

	c.JSON(http.StatusOK, source)
}

// List handles GET /api/v1/knowledge-sources.
func (h *KnowledgeSourceHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id query parameter is required",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sources, err := h.sources.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list knowledge sources: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"count":   len(sources),
	})
}

// Delete handles DELETE /api/v1/knowledge-sources/:id. All content items and
// their derived state are removed before the source row itself.
func (h *KnowledgeSourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.sources.GetByID(ctx, id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Knowledge source not found",
		})
		return
	}

	if err := h.ingest.DeleteSource(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete knowledge source contents: " + err.Error(),
		})
		return
	}

	if err := h.sources.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete knowledge source: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": id,
	})
}
