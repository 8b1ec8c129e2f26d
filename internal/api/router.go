package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hikevindiaz/link-ai-knowledge/internal/api/handler"
	"github.com/hikevindiaz/link-ai-knowledge/internal/api/middleware"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
	"github.com/hikevindiaz/link-ai-knowledge/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	sources *repository.KnowledgeSourceRepository,
	contents *repository.ContentRepository,
	jobs *repository.EmbeddingJobRepository,
	ingestService *service.IngestService,
	workerService *service.WorkerService,
	mode string,
	cors middleware.CORSConfig,
) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(cors))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	sourceHandler := handler.NewKnowledgeSourceHandler(sources, ingestService)
	contentHandler := handler.NewContentHandler(contents, ingestService)
	jobHandler := handler.NewJobHandler(jobs)
	adminHandler := handler.NewAdminHandler(workerService)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Knowledge sources
		v1.POST("/knowledge-sources", sourceHandler.Create)
		v1.GET("/knowledge-sources", sourceHandler.List)
		v1.GET("/knowledge-sources/:id", sourceHandler.Get)
		v1.DELETE("/knowledge-sources/:id", sourceHandler.Delete)

		// Contents
		v1.POST("/knowledge-sources/:id/contents", contentHandler.Create)
		v1.GET("/knowledge-sources/:id/contents", contentHandler.List)
		v1.GET("/contents/:id", contentHandler.Get)
		v1.DELETE("/contents/:id", contentHandler.Delete)

		// Jobs
		v1.GET("/knowledge-sources/:id/jobs", jobHandler.ListBySource)
		v1.GET("/jobs/:id", jobHandler.Get)

		// Admin
		v1.POST("/admin/worker/run", adminHandler.RunWorkerCycle)
	}

	return r
}
