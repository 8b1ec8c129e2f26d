package queue

import (
	"context"
	"errors"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/logger"
)

// Selector orders the backends by preference and degrades through them when
// one is unavailable. Selection happens per call, so a recovered primary is
// picked up again on the next worker cycle without any reset step.
type Selector struct {
	backends []Queue
}

// NewSelector creates a selector over the given backends, most preferred
// first. Nil entries are skipped, which lets callers omit the Redis backend
// when it is disabled by configuration.
// Parameters:
//   - backends: candidate queues in preference order.
// Returns:
//   - *Selector: selector instance.
func NewSelector(backends ...Queue) *Selector {
	s := &Selector{}
	for _, b := range backends {
		if b != nil {
			s.backends = append(s.backends, b)
		}
	}
	return s
}

// Enqueue announces a job to the most preferred backend that accepts it.
// The durable row already exists, so total announce failure is logged and
// swallowed; a polling backend will find the row.
func (s *Selector) Enqueue(ctx context.Context, job *domain.EmbeddingJob) {
	for _, b := range s.backends {
		err := b.Enqueue(ctx, job)
		if err == nil {
			return
		}
		if errors.Is(err, ErrBackendUnavailable) {
			logger.CtxWarn(ctx, "Queue backend %s unavailable for enqueue, degrading: %v", b.Name(), err)
			continue
		}
		logger.CtxWarn(ctx, "Queue backend %s enqueue failed: %v", b.Name(), err)
		return
	}
}

// ClaimBatch claims jobs from the most preferred backend that has any and
// returns the backend that served the claim, so the caller acks and fails
// through the same path. A healthy backend that comes back empty is not
// authoritative: a job whose Redis hint was lost still sits pending in the
// database, so the polling backends get their turn before the cycle gives up.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum jobs to claim.
// Returns:
//   - []domain.EmbeddingJob: claimed jobs.
//   - Queue: backend that produced the claims.
//   - error: non-nil if every backend failed.
func (s *Selector) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, Queue, error) {
	var (
		lastErr error
		idle    Queue
	)
	for _, b := range s.backends {
		jobs, err := b.ClaimBatch(ctx, limit)
		if err == nil {
			if len(jobs) > 0 {
				return jobs, b, nil
			}
			if idle == nil {
				idle = b
			}
			continue
		}
		// A backend may fail after claiming part of the batch; surface what
		// it managed so the work is not abandoned mid-claim.
		if len(jobs) > 0 {
			logger.CtxWarn(ctx, "Queue backend %s failed mid-claim, processing partial batch of %d: %v", b.Name(), len(jobs), err)
			return jobs, b, nil
		}
		if !errors.Is(err, ErrBackendUnavailable) {
			return nil, nil, err
		}
		logger.CtxWarn(ctx, "Queue backend %s unavailable, degrading: %v", b.Name(), err)
		lastErr = err
	}
	if idle != nil {
		return nil, idle, nil
	}
	return nil, nil, lastErr
}
