package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hikevindiaz/link-ai-knowledge/internal/config"
	"github.com/hikevindiaz/link-ai-knowledge/internal/logger"
	"github.com/hikevindiaz/link-ai-knowledge/internal/queue"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
	"github.com/hikevindiaz/link-ai-knowledge/internal/service"
	"github.com/hikevindiaz/link-ai-knowledge/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "knowledge-worker",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	once := flag.Bool("once", false, "Run a single processing cycle and exit")
	interval := flag.Duration("interval", 0, "Polling interval between cycles (overrides config)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	pollInterval := cfg.Worker.Interval
	if *interval > 0 {
		pollInterval = *interval
	}

	appLogger.WithFields(logger.Fields{
		"once":     *once,
		"interval": pollInterval.String(),
	}).Info("Starting embedding worker")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	// Initialize S3-compatible storage (supports R2, S3, MinIO)
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

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	ctx = logger.SetComponent(ctx, "worker")

	if *once {
		processed, err := workerService.RunCycle(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Processing cycle failed")
		}
		appLogger.WithField("processed", processed).Info("Cycle completed")
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			appLogger.Info("Worker stopped")
			return
		case <-ticker.C:
			processed, err := workerService.RunCycle(ctx)
			if err != nil {
				logger.CtxError(ctx, "Processing cycle failed: %v", err)
				continue
			}
			if processed > 0 {
				logger.CtxInfo(ctx, "Cycle completed, processed %d job(s)", processed)
			}
		}
	}
}
