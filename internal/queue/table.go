package queue

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
)

// TableQueue is the first fallback backend. It discovers work by polling the
// claim marker table and wins exclusivity with two compare-and-set flips:
// first the marker row, then the job row. No Redis involvement at all.
type TableQueue struct {
	claims *repository.JobClaimRepository
	jobs   *repository.EmbeddingJobRepository
	opts   Options
}

// NewTableQueue creates the claim-table polling queue.
// Parameters:
//   - claims: claim marker repository.
//   - jobs: durable job registry shared by all backends.
//   - opts: redelivery tuning; zero values use defaults.
// Returns:
//   - *TableQueue: queue instance.
func NewTableQueue(claims *repository.JobClaimRepository, jobs *repository.EmbeddingJobRepository, opts Options) *TableQueue {
	return &TableQueue{
		claims: claims,
		jobs:   jobs,
		opts:   opts.withDefaults(),
	}
}

// Name identifies this backend.
func (q *TableQueue) Name() string {
	return "claim-table"
}

// Enqueue is a no-op: the claim marker is written transactionally with the
// job row, so polling already sees the new work.
func (q *TableQueue) Enqueue(ctx context.Context, job *domain.EmbeddingJob) error {
	return nil
}

// ClaimBatch lists eligible marker rows and tries to flip each one. Rows
// lost to a concurrent claimer are skipped without error.
func (q *TableQueue) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	now := time.Now()

	ids, err := q.claims.ListEligible(ctx, now, q.opts.Visibility, limit)
	if err != nil {
		return nil, err
	}

	var claimed []domain.EmbeddingJob
	for _, id := range ids {
		won, err := q.claims.TryClaim(ctx, id, now, q.opts.Visibility)
		if err != nil {
			return claimed, err
		}
		if !won {
			continue
		}

		// Mirror the claim on the job row so attempts and visibility stay
		// consistent with the other backends. Losing this flip means another
		// claimer already holds the job through a different backend.
		won, err = q.jobs.TryClaim(ctx, id, now, q.opts.Visibility)
		if err != nil {
			return claimed, err
		}
		if !won {
			continue
		}

		job, err := q.jobs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return claimed, err
		}
		claimed = append(claimed, *job)
	}

	return claimed, nil
}

// Ack marks the job done; the repository mirrors the marker row.
func (q *TableQueue) Ack(ctx context.Context, jobID string) error {
	return q.jobs.MarkDone(ctx, jobID)
}

// Fail records the failure, honoring the retry ceiling.
func (q *TableQueue) Fail(ctx context.Context, job *domain.EmbeddingJob, errMsg string, permanent bool) error {
	if permanent || q.opts.exhausted(job) {
		return q.jobs.MarkFailed(ctx, job.ID, errMsg)
	}
	return q.jobs.MarkRetry(ctx, job.ID, errMsg)
}
