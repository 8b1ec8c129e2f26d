package queue

import (
	"context"
	"time"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
)

// ScanQueue is the last-resort backend: a direct scan of pending job rows
// with a best-effort claim. It sacrifices strict exclusivity for liveness;
// duplicate processing is harmless because the vector upsert is idempotent.
type ScanQueue struct {
	jobs *repository.EmbeddingJobRepository
	opts Options
}

// NewScanQueue creates the direct-scan queue.
// Parameters:
//   - jobs: durable job registry shared by all backends.
//   - opts: redelivery tuning; zero values use defaults.
// Returns:
//   - *ScanQueue: queue instance.
func NewScanQueue(jobs *repository.EmbeddingJobRepository, opts Options) *ScanQueue {
	return &ScanQueue{
		jobs: jobs,
		opts: opts.withDefaults(),
	}
}

// Name identifies this backend.
func (q *ScanQueue) Name() string {
	return "direct-scan"
}

// Enqueue is a no-op: the pending job row is already visible to the scan.
func (q *ScanQueue) Enqueue(ctx context.Context, job *domain.EmbeddingJob) error {
	return nil
}

// ClaimBatch scans pending rows oldest-first and flips what it can. A row
// lost to a concurrent claimer is skipped.
func (q *ScanQueue) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	now := time.Now()

	pending, err := q.jobs.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	var claimed []domain.EmbeddingJob
	for i := range pending {
		won, err := q.jobs.TryClaim(ctx, pending[i].ID, now, q.opts.Visibility)
		if err != nil {
			return claimed, err
		}
		if !won {
			continue
		}
		claimed = append(claimed, pending[i])
	}

	return claimed, nil
}

// Ack marks the job done.
func (q *ScanQueue) Ack(ctx context.Context, jobID string) error {
	return q.jobs.MarkDone(ctx, jobID)
}

// Fail records the failure, honoring the retry ceiling.
func (q *ScanQueue) Fail(ctx context.Context, job *domain.EmbeddingJob, errMsg string, permanent bool) error {
	if permanent || q.opts.exhausted(job) {
		return q.jobs.MarkFailed(ctx, job.ID, errMsg)
	}
	return q.jobs.MarkRetry(ctx, job.ID, errMsg)
}
