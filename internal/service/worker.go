package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/logger"
	"github.com/hikevindiaz/link-ai-knowledge/internal/queue"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
)

// Embedder turns normalized text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContentNormalizer produces the canonical embedding text for an item.
type ContentNormalizer interface {
	Normalize(ctx context.Context, item *domain.ContentItem) (string, error)
}

// BatchClaimer claims a batch of jobs and reports which queue backend served
// the claim, so completions flow back through the same backend.
type BatchClaimer interface {
	ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, queue.Queue, error)
}

// WorkerOptions tunes one processing cycle.
type WorkerOptions struct {
	BatchSize   int
	Concurrency int
	JobTimeout  time.Duration
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
	return o
}

// WorkerService drains the embedding job queue. Each cycle claims a batch,
// processes jobs concurrently, and completes each job through the backend
// that claimed it. One job's failure never disturbs its batchmates.
type WorkerService struct {
	claimer    BatchClaimer
	contents   ContentStore
	normalizer ContentNormalizer
	embedder   Embedder
	vectors    VectorStore
	opts       WorkerOptions
}

// NewWorkerService creates a WorkerService.
// Parameters:
//   - claimer: queue selector that claims job batches.
//   - contents: content item store.
//   - normalizer: canonical-text normalizer.
//   - embedder: embedding client.
//   - vectors: vector document store.
//   - opts: cycle tuning; zero values use defaults.
// Returns:
//   - *WorkerService: worker instance.
func NewWorkerService(
	claimer BatchClaimer,
	contents ContentStore,
	normalizer ContentNormalizer,
	embedder Embedder,
	vectors VectorStore,
	opts WorkerOptions,
) *WorkerService {
	return &WorkerService{
		claimer:    claimer,
		contents:   contents,
		normalizer: normalizer,
		embedder:   embedder,
		vectors:    vectors,
		opts:       opts.withDefaults(),
	}
}

// RunCycle claims and processes one batch of embedding jobs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int: number of jobs successfully completed this cycle.
//   - error: non-nil only if claiming itself failed; per-job failures are
//     recorded on the jobs and do not fail the cycle.
func (s *WorkerService) RunCycle(ctx context.Context) (int, error) {
	start := time.Now()

	jobs, backend, err := s.claimer.ClaimBatch(ctx, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	ctx = logger.WithField(ctx, logger.FieldQueueBackend, backend.Name())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	sem := make(chan struct{}, s.opts.Concurrency)

	for i := range jobs {
		job := jobs[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if s.processJob(ctx, backend, &job) {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	logger.With(logger.Fields{
		logger.FieldCount:      completed,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Worker cycle completed %d/%d jobs via %s", completed, len(jobs), backend.Name())

	return completed, nil
}

// processJob runs one job end to end and reports success. All failure paths
// are recorded on the job through the claiming backend.
func (s *WorkerService) processJob(ctx context.Context, backend queue.Queue, job *domain.EmbeddingJob) bool {
	ctx = logger.SetJobID(ctx, job.ID)
	ctx = logger.SetContentID(logger.SetKnowledgeSourceID(ctx, job.KnowledgeSourceID), job.ContentID)
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()

	item, err := s.contents.GetByID(ctx, job.ContentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The content was deleted while the job was in flight. There is
			// nothing left to embed; the job is terminally done for.
			s.fail(ctx, backend, job, "content item no longer exists", true)
			return false
		}
		s.fail(ctx, backend, job, err.Error(), false)
		return false
	}

	text, err := s.normalizer.Normalize(ctx, item)
	if err != nil {
		s.fail(ctx, backend, job, err.Error(), errors.Is(err, ErrMalformedContent))
		return false
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.fail(ctx, backend, job, err.Error(), false)
		return false
	}

	key := repository.VectorKey{
		KnowledgeSourceID: job.KnowledgeSourceID,
		ContentID:         job.ContentID,
		ContentType:       job.ContentType,
	}
	payload := &repository.VectorPayload{
		KnowledgeSourceID: job.KnowledgeSourceID,
		ContentID:         job.ContentID,
		ContentType:       string(job.ContentType),
		Snippet:           Snippet(text),
	}
	if err := s.vectors.Upsert(ctx, key, vector, payload); err != nil {
		s.fail(ctx, backend, job, err.Error(), false)
		return false
	}

	if err := backend.Ack(ctx, job.ID); err != nil {
		// The vector is already upserted; if the ack is lost the job will be
		// redelivered and the idempotent upsert absorbs the repeat.
		logger.CtxWarn(ctx, "Failed to ack job: %v", err)
		return false
	}

	logger.CtxInfo(ctx, "Embedded %s content item", job.ContentType)
	return true
}

func (s *WorkerService) fail(ctx context.Context, backend queue.Queue, job *domain.EmbeddingJob, msg string, permanent bool) {
	if permanent {
		logger.CtxWarn(ctx, "Job failed permanently: %s", msg)
	} else {
		logger.CtxWarn(ctx, "Job failed (attempt %d): %s", job.Attempts+1, msg)
	}
	if err := backend.Fail(ctx, job, msg, permanent); err != nil {
		logger.CtxError(ctx, "Failed to record job failure: %v", err)
	}
}
