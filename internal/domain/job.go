package domain

import "time"

// JobStatus represents the status of an embedding job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusDone, and
// JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// EmbeddingJob is one unit of asynchronous work: "this content needs a
// vector computed". ClaimedAt doubles as the visibility-timeout marker; a
// processing job whose ClaimedAt is older than the timeout is considered
// abandoned and becomes reclaimable.
type EmbeddingJob struct {
	ID                string      `gorm:"type:text;primaryKey" json:"id"`
	KnowledgeSourceID string      `gorm:"type:text;not null;index:idx_embedding_jobs_source" json:"knowledge_source_id"`
	ContentID         string      `gorm:"type:text;not null;index:idx_embedding_jobs_content" json:"content_id"`
	ContentType       ContentType `gorm:"type:text;not null" json:"content_type"`
	Status            JobStatus   `gorm:"type:text;index:idx_embedding_jobs_status;default:pending" json:"status"`
	ClaimedAt         *time.Time  `json:"claimed_at,omitempty"`
	Attempts          int         `gorm:"default:0" json:"attempts"`
	LastError         string      `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName returns the database table name for EmbeddingJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (EmbeddingJob) TableName() string {
	return "embedding_jobs"
}

// JobClaim is the marker row used by the polling queue backend. It mirrors
// a job's claim state so the fallback path can flip rows without touching
// the primary queue.
type JobClaim struct {
	JobID     string     `gorm:"type:text;primaryKey" json:"job_id"`
	Status    JobStatus  `gorm:"type:text;index:idx_job_claims_status;default:pending" json:"status"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for JobClaim.
func (JobClaim) TableName() string {
	return "embedding_job_claims"
}
