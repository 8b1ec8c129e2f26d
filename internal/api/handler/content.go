package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
	"github.com/hikevindiaz/link-ai-knowledge/internal/service"
)

// ContentHandler handles content item endpoints.
type ContentHandler struct {
	contents *repository.ContentRepository
	ingest   *service.IngestService
}

// NewContentHandler creates a new content handler.
// Parameters:
//   - contents: content item repository.
//   - ingest: ingestion orchestrator.
// Returns:
//   - *ContentHandler: initialized handler.
func NewContentHandler(contents *repository.ContentRepository, ingest *service.IngestService) *ContentHandler {
	return &ContentHandler{
		contents: contents,
		ingest:   ingest,
	}
}

type createContentRequest struct {
	Type     string `json:"type" binding:"required"`
	Body     string `json:"body"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	URL      string `json:"url"`
}

// Create handles POST /api/v1/knowledge-sources/:id/contents. JSON bodies
// carry inline variants (text, qa, website); multipart bodies carry a file
// upload.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ContentHandler) Create(c *gin.Context) {
	knowledgeSourceID := c.Param("id")

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.createFile(c, knowledgeSourceID)
		return
	}

	var req createContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	var item *domain.ContentItem
	switch domain.ContentType(req.Type) {
	case domain.ContentTypeText:
		item = domain.NewTextContent("", knowledgeSourceID, req.Body)
	case domain.ContentTypeQA:
		item = domain.NewQAContent("", knowledgeSourceID, req.Question, req.Answer)
	case domain.ContentTypeWebsite:
		item = domain.NewWebsiteContent("", knowledgeSourceID, req.URL)
	case domain.ContentTypeFile:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "File content must be uploaded as multipart/form-data",
		})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown content type: " + req.Type,
		})
		return
	}

	job, err := h.ingest.Ingest(c.Request.Context(), item)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"content": item,
		"job":     job,
	})
}

// createFile reads the multipart upload and runs the file ingestion saga.
func (h *ContentHandler) createFile(c *gin.Context, knowledgeSourceID string) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing file field: " + err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to open uploaded file: " + err.Error(),
		})
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	item, job, err := h.ingest.IngestFile(
		c.Request.Context(),
		knowledgeSourceID,
		fileHeader.Filename,
		mimeType,
		file,
		fileHeader.Size,
	)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"content":  item,
		"file_url": h.ingest.FileURL(item),
		"job":      job,
	})
}

// List handles GET /api/v1/knowledge-sources/:id/contents.
func (h *ContentHandler) List(c *gin.Context) {
	knowledgeSourceID := c.Param("id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.contents.ListBySource(c.Request.Context(), knowledgeSourceID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list contents: " + err.Error(),
		})
		return
	}

	total, err := h.contents.CountBySource(c.Request.Context(), knowledgeSourceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count contents: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contents": items,
		"total":    total,
	})
}

// Get handles GET /api/v1/contents/:id.
func (h *ContentHandler) Get(c *gin.Context) {
	id := c.Param("id")

	item, err := h.contents.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Content item not found",
		})
		return
	}

	resp := gin.H{"content": item}
	if url := h.ingest.FileURL(item); url != "" {
		resp["file_url"] = url
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/contents/:id.
func (h *ContentHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.ingest.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete content: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": id,
	})
}

func (h *ContentHandler) writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Ingestion failed: " + err.Error(),
		})
	}
}
