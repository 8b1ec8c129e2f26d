package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/logger"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
)

const (
	redisPendingKey    = "embedding:jobs:pending"
	redisProcessingKey = "embedding:jobs:processing"
)

// RedisQueue is the primary backend. Pending job IDs live in a Redis list;
// claimed IDs move to a sorted set scored by their visibility deadline, so a
// crashed worker's jobs reappear once the deadline passes. The durable state
// stays in the job registry; Redis only carries delivery hints.
type RedisQueue struct {
	rdb  *redis.Client
	jobs *repository.EmbeddingJobRepository
	opts Options
}

// NewRedisQueue creates the Redis-backed queue.
// Parameters:
//   - rdb: connected Redis client.
//   - jobs: durable job registry shared by all backends.
//   - opts: redelivery tuning; zero values use defaults.
// Returns:
//   - *RedisQueue: queue instance.
func NewRedisQueue(rdb *redis.Client, jobs *repository.EmbeddingJobRepository, opts Options) *RedisQueue {
	return &RedisQueue{
		rdb:  rdb,
		jobs: jobs,
		opts: opts.withDefaults(),
	}
}

// Name identifies this backend.
func (q *RedisQueue) Name() string {
	return "redis"
}

// Enqueue pushes the job ID onto the pending list. The durable row already
// exists, so a push failure only delays pickup until a polling backend or a
// later cycle finds the row.
func (q *RedisQueue) Enqueue(ctx context.Context, job *domain.EmbeddingJob) error {
	if err := q.rdb.RPush(ctx, redisPendingKey, job.ID).Err(); err != nil {
		return fmt.Errorf("%w: rpush: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// ClaimBatch requeues expired claims, then pops up to limit pending IDs and
// races the row-level compare-and-set for each. IDs that lose the race are
// dropped; whichever claimer won is already processing them.
func (q *RedisQueue) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	now := time.Now()

	if err := q.requeueExpired(ctx, now); err != nil {
		return nil, err
	}

	var claimed []domain.EmbeddingJob
	for len(claimed) < limit {
		id, err := q.rdb.LPop(ctx, redisPendingKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return claimed, fmt.Errorf("%w: lpop: %v", ErrBackendUnavailable, err)
		}

		won, err := q.jobs.TryClaim(ctx, id, now, q.opts.Visibility)
		if err != nil {
			// Row claim failed in the database; put the hint back so the
			// job is not stranded without a Redis entry.
			q.requeueHint(ctx, id)
			return claimed, err
		}
		if !won {
			continue
		}

		deadline := now.Add(q.opts.Visibility)
		if err := q.rdb.ZAdd(ctx, redisProcessingKey, redis.Z{
			Score:  float64(deadline.Unix()),
			Member: id,
		}).Err(); err != nil {
			logger.CtxWarn(ctx, "Failed to track claim in redis, visibility falls back to row timestamp: %v", err)
		}

		job, err := q.jobs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Job row was deleted after the hint was pushed (content
				// removed). Drop the stale hint.
				q.rdb.ZRem(ctx, redisProcessingKey, id)
				continue
			}
			return claimed, err
		}
		claimed = append(claimed, *job)
	}

	return claimed, nil
}

// Ack removes the processing entry and marks the job done.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	if err := q.rdb.ZRem(ctx, redisProcessingKey, jobID).Err(); err != nil {
		logger.CtxWarn(ctx, "Failed to remove processing entry for job %s: %v", jobID, err)
	}
	return q.jobs.MarkDone(ctx, jobID)
}

// Fail removes the processing entry and records the failure. Transient
// failures below the retry ceiling go back to pending and are re-announced.
func (q *RedisQueue) Fail(ctx context.Context, job *domain.EmbeddingJob, errMsg string, permanent bool) error {
	if err := q.rdb.ZRem(ctx, redisProcessingKey, job.ID).Err(); err != nil {
		logger.CtxWarn(ctx, "Failed to remove processing entry for job %s: %v", job.ID, err)
	}

	if permanent || q.opts.exhausted(job) {
		return q.jobs.MarkFailed(ctx, job.ID, errMsg)
	}

	if err := q.jobs.MarkRetry(ctx, job.ID, errMsg); err != nil {
		return err
	}
	q.requeueHint(ctx, job.ID)
	return nil
}

// requeueExpired moves claims whose visibility deadline has passed back to
// the pending list. The row-level compare-and-set still guards against a
// slow worker that is in fact alive.
func (q *RedisQueue) requeueExpired(ctx context.Context, now time.Time) error {
	expired, err := q.rdb.ZRangeByScore(ctx, redisProcessingKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return fmt.Errorf("%w: zrangebyscore: %v", ErrBackendUnavailable, err)
	}

	for _, id := range expired {
		if err := q.rdb.ZRem(ctx, redisProcessingKey, id).Err(); err != nil {
			continue
		}
		q.requeueHint(ctx, id)
		logger.CtxInfo(ctx, "Requeued job %s after visibility timeout", id)
	}
	return nil
}

// requeueHint pushes a job ID back onto the pending list, best-effort.
func (q *RedisQueue) requeueHint(ctx context.Context, id string) {
	if err := q.rdb.LPush(ctx, redisPendingKey, id).Err(); err != nil {
		logger.CtxWarn(ctx, "Failed to requeue job %s: %v", id, err)
	}
}
