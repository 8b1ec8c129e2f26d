package repository

import (
	"context"
	"strings"
	"time"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"gorm.io/gorm"
)

const maxJobErrorLen = 1024

// EmbeddingJobRepository handles the durable embedding job registry.
type EmbeddingJobRepository struct {
	db *gorm.DB
}

// NewEmbeddingJobRepository creates a new EmbeddingJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *EmbeddingJobRepository: repository instance bound to db.
func NewEmbeddingJobRepository(db *gorm.DB) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{db: db}
}

// CreateWithClaim inserts a job row and its claim marker row in one
// transaction so the polling backend can always see enqueued work.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist; status should be pending.
// Returns:
//   - error: non-nil if either insert fails (nothing is persisted then).
func (r *EmbeddingJobRepository) CreateWithClaim(ctx context.Context, job *domain.EmbeddingJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		claim := &domain.JobClaim{JobID: job.ID, Status: domain.JobStatusPending}
		return tx.Create(claim).Error
	})
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.EmbeddingJob: record if found.
//   - error: non-nil if lookup fails.
func (r *EmbeddingJobRepository) GetByID(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	var job domain.EmbeddingJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListBySource retrieves jobs for a knowledge source with pagination.
func (r *EmbeddingJobRepository) ListBySource(ctx context.Context, knowledgeSourceID string, limit, offset int) ([]domain.EmbeddingJob, error) {
	var jobs []domain.EmbeddingJob
	if err := r.db.WithContext(ctx).
		Where("knowledge_source_id = ?", knowledgeSourceID).
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListPending retrieves pending jobs ordered by creation time. Used by the
// direct-scan queue backend, which performs no claim step.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.EmbeddingJob: pending jobs, oldest first.
//   - error: non-nil if the query fails.
func (r *EmbeddingJobRepository) ListPending(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	var jobs []domain.EmbeddingJob
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// TryClaim atomically flips a job to processing if it is eligible: pending,
// or processing with a claim older than the visibility timeout. This is the
// compare-and-set that keeps two workers from claiming the same row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID to claim.
//   - now: claim timestamp.
//   - visibility: visibility timeout for stale-claim takeover.
// Returns:
//   - bool: true if this call won the claim.
//   - error: non-nil if the update fails.
func (r *EmbeddingJobRepository) TryClaim(ctx context.Context, id string, now time.Time, visibility time.Duration) (bool, error) {
	cutoff := now.Add(-visibility)
	res := r.db.WithContext(ctx).Model(&domain.EmbeddingJob{}).
		Where("id = ? AND (status = ? OR (status = ? AND claimed_at < ?))",
			id, domain.JobStatusPending, domain.JobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     domain.JobStatusProcessing,
			"claimed_at": now,
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkDone marks a job done and mirrors the claim marker.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *EmbeddingJobRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.EmbeddingJob{}).Where("id = ?", id).
			Updates(map[string]any{
				"status":     domain.JobStatusDone,
				"last_error": "",
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.JobClaim{}).Where("job_id = ?", id).
			Updates(map[string]any{"status": domain.JobStatusDone}).Error
	})
}

// MarkRetry returns a job to pending after a transient failure, recording
// the error and incrementing the attempts counter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - errMsg: failure description, truncated for storage.
// Returns:
//   - error: non-nil if the update fails.
func (r *EmbeddingJobRepository) MarkRetry(ctx context.Context, id string, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.EmbeddingJob{}).Where("id = ?", id).
			Updates(map[string]any{
				"status":     domain.JobStatusPending,
				"claimed_at": nil,
				"attempts":   gorm.Expr("attempts + ?", 1),
				"last_error": truncateError(errMsg),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.JobClaim{}).Where("job_id = ?", id).
			Updates(map[string]any{"status": domain.JobStatusPending, "claimed_at": nil}).Error
	})
}

// MarkFailed moves a job to the terminal failed state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - errMsg: failure description, truncated for storage.
// Returns:
//   - error: non-nil if the update fails.
func (r *EmbeddingJobRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.EmbeddingJob{}).Where("id = ?", id).
			Updates(map[string]any{
				"status":     domain.JobStatusFailed,
				"attempts":   gorm.Expr("attempts + ?", 1),
				"last_error": truncateError(errMsg),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.JobClaim{}).Where("job_id = ?", id).
			Updates(map[string]any{"status": domain.JobStatusFailed}).Error
	})
}

// DeleteByContent removes all jobs and claim markers for a content item.
// Used when an ingestion is rolled back or a content item is deleted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - contentID: owning content item ID.
// Returns:
//   - error: non-nil if the delete fails.
func (r *EmbeddingJobRepository) DeleteByContent(ctx context.Context, contentID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&domain.EmbeddingJob{}).
			Where("content_id = ?", contentID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Delete(&domain.JobClaim{}, "job_id IN ?", ids).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.EmbeddingJob{}, "id IN ?", ids).Error
	})
}

func truncateError(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > maxJobErrorLen {
		msg = msg[:maxJobErrorLen]
	}
	return msg
}
