package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
)

// ErrBackendUnavailable signals that a queue backend cannot currently serve
// requests. The selector treats it as a cue to degrade to the next backend;
// any other error is surfaced as-is.
var ErrBackendUnavailable = errors.New("queue backend unavailable")

// Queue is one delivery mechanism for embedding jobs. All backends share the
// durable job registry; they differ only in how claimable work is discovered
// and how redelivery after a crash is arranged.
type Queue interface {
	// Name identifies the backend in logs and job listings.
	Name() string

	// Enqueue announces a freshly persisted job to the backend. The durable
	// job row and claim marker already exist by the time this is called, so
	// backends that discover work by polling may treat this as a no-op.
	Enqueue(ctx context.Context, job *domain.EmbeddingJob) error

	// ClaimBatch claims up to limit jobs for exclusive processing. A claimed
	// job is invisible to other claimers until it is acked, failed, or its
	// visibility timeout lapses.
	ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, error)

	// Ack marks a claimed job as successfully completed.
	Ack(ctx context.Context, jobID string) error

	// Fail records a processing failure. Transient failures return the job
	// to pending until the retry ceiling is reached; permanent failures and
	// exhausted retries move it to the terminal failed state.
	Fail(ctx context.Context, job *domain.EmbeddingJob, errMsg string, permanent bool) error
}

// Options carries the redelivery tuning shared by all backends.
type Options struct {
	// Visibility is how long a claim shields a job from other claimers.
	Visibility time.Duration

	// MaxAttempts is the retry ceiling; a job failing its MaxAttempts-th
	// attempt goes to failed instead of back to pending.
	MaxAttempts int
}

const (
	defaultVisibility  = 5 * time.Minute
	defaultMaxAttempts = 3
)

func (o Options) withDefaults() Options {
	if o.Visibility <= 0 {
		o.Visibility = defaultVisibility
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// exhausted reports whether this failure consumes the job's last attempt.
// The attempts counter is incremented by the repository when the failure is
// recorded, so the check is against the pre-increment value.
func (o Options) exhausted(job *domain.EmbeddingJob) bool {
	return job.Attempts+1 >= o.MaxAttempts
}
