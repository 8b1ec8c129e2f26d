package repository

import (
	"context"
	"time"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"gorm.io/gorm"
)

// JobClaimRepository handles the claim marker table consumed by the polling
// queue backend.
type JobClaimRepository struct {
	db *gorm.DB
}

// NewJobClaimRepository creates a new JobClaimRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobClaimRepository: repository instance bound to db.
func NewJobClaimRepository(db *gorm.DB) *JobClaimRepository {
	return &JobClaimRepository{db: db}
}

// ListEligible returns job ids whose marker is claimable: pending, or
// processing with a claim older than the visibility timeout.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - now: current time.
//   - visibility: visibility timeout for stale-claim takeover.
//   - limit: maximum number of ids to return.
// Returns:
//   - []string: eligible job ids, oldest markers first.
//   - error: non-nil if the query fails.
func (r *JobClaimRepository) ListEligible(ctx context.Context, now time.Time, visibility time.Duration, limit int) ([]string, error) {
	cutoff := now.Add(-visibility)
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.JobClaim{}).
		Where("status = ? OR (status = ? AND claimed_at < ?)",
			domain.JobStatusPending, domain.JobStatusProcessing, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("job_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// TryClaim atomically flips an eligible marker row to processing. Only one
// concurrent caller can win the flip for a given row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: marker row to claim.
//   - now: claim timestamp.
//   - visibility: visibility timeout for stale-claim takeover.
// Returns:
//   - bool: true if this call won the claim.
//   - error: non-nil if the update fails.
func (r *JobClaimRepository) TryClaim(ctx context.Context, jobID string, now time.Time, visibility time.Duration) (bool, error) {
	cutoff := now.Add(-visibility)
	res := r.db.WithContext(ctx).Model(&domain.JobClaim{}).
		Where("job_id = ? AND (status = ? OR (status = ? AND claimed_at < ?))",
			jobID, domain.JobStatusPending, domain.JobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":     domain.JobStatusProcessing,
			"claimed_at": now,
		})
	return res.RowsAffected > 0, res.Error
}
