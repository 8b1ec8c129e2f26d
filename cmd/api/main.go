package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hikevindiaz/link-ai-knowledge/internal/api"
	"github.com/hikevindiaz/link-ai-knowledge/internal/api/middleware"
	"github.com/hikevindiaz/link-ai-knowledge/internal/config"
	"github.com/hikevindiaz/link-ai-knowledge/internal/logger"
	"github.com/hikevindiaz/link-ai-knowledge/internal/queue"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
	"github.com/hikevindiaz/link-ai-knowledge/internal/service"
	"github.com/hikevindiaz/link-ai-knowledge/internal/storage"
)

func main() {
	// Initialize logger from environment
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	sourceRepo := repository.NewKnowledgeSourceRepository(db)
	contentRepo := repository.NewContentRepository(db)
	jobRepo := repository.NewEmbeddingJobRepository(db)
	claimRepo := repository.NewJobClaimRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Ensure Qdrant collection exists
	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	// Initialize storage (supports MinIO, R2, S3)
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Ensure bucket exists
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Build the queue backends, most preferred first
	queueOpts := queue.Options{
		Visibility:  cfg.Worker.VisibilityTimeout,
		MaxAttempts: cfg.Worker.MaxAttempts,
	}

	var redisQueue queue.Queue
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisQueue = queue.NewRedisQueue(rdb, jobRepo, queueOpts)
	}
	selector := queue.NewSelector(
		redisQueue,
		queue.NewTableQueue(claimRepo, jobRepo, queueOpts),
		queue.NewScanQueue(jobRepo, queueOpts),
	)

	// Initialize services
	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	extractionService := service.NewExtractionService(&service.ExtractionConfig{
		Provider: cfg.Extraction.Provider,
		Model:    cfg.Extraction.Model,
		APIKey:   cfg.Extraction.APIKey,
		BaseURL:  cfg.Extraction.BaseURL,
	})

	normalizer := service.NewNormalizer(objectStorage, extractionService)

	ingestService := service.NewIngestService(
		sourceRepo,
		contentRepo,
		jobRepo,
		qdrantRepo,
		objectStorage,
		selector,
	)

	workerService := service.NewWorkerService(
		selector,
		contentRepo,
		normalizer,
		embeddingService,
		qdrantRepo,
		service.WorkerOptions{
			BatchSize:   cfg.Worker.BatchSize,
			Concurrency: cfg.Worker.Concurrency,
			JobTimeout:  cfg.Worker.JobTimeout,
		},
	)

	// Setup router
	router := api.SetupRouter(
		sourceRepo,
		contentRepo,
		jobRepo,
		ingestService,
		workerService,
		cfg.Server.Mode,
		middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
