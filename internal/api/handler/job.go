package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
)

// JobHandler handles embedding job endpoints.
type JobHandler struct {
	jobs *repository.EmbeddingJobRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: embedding job repository.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs *repository.EmbeddingJobRepository) *JobHandler {
	return &JobHandler{
		jobs: jobs,
	}
}

// ListBySource handles GET /api/v1/knowledge-sources/:id/jobs.
func (h *JobHandler) ListBySource(c *gin.Context) {
	knowledgeSourceID := c.Param("id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.jobs.ListBySource(c.Request.Context(), knowledgeSourceID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}
