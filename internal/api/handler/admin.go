package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hikevindiaz/link-ai-knowledge/internal/service"
)

// AdminHandler handles operational endpoints.
type AdminHandler struct {
	worker *service.WorkerService
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - worker: worker service used for on-demand processing.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(worker *service.WorkerService) *AdminHandler {
	return &AdminHandler{
		worker: worker,
	}
}

// RunWorkerCycle handles POST /api/v1/admin/worker/run. It triggers one
// processing cycle inline, useful when no standalone worker is deployed.
func (h *AdminHandler) RunWorkerCycle(c *gin.Context) {
	processed, err := h.worker.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Worker cycle failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": processed,
	})
}
