package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/logger"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
	"github.com/hikevindiaz/link-ai-knowledge/internal/storage"
)

// ErrSourceNotFound is returned when an ingestion targets a knowledge source
// that does not exist.
var ErrSourceNotFound = errors.New("knowledge source not found")

// KnowledgeSourceStore is the knowledge source lookup the orchestrator needs.
type KnowledgeSourceStore interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// ContentStore persists content item rows.
type ContentStore interface {
	Create(ctx context.Context, item *domain.ContentItem) error
	GetByID(ctx context.Context, id string) (*domain.ContentItem, error)
	Delete(ctx context.Context, id string) error
	ListBySource(ctx context.Context, knowledgeSourceID string, limit, offset int) ([]domain.ContentItem, error)
}

// JobStore persists embedding job rows and their claim markers.
type JobStore interface {
	CreateWithClaim(ctx context.Context, job *domain.EmbeddingJob) error
	DeleteByContent(ctx context.Context, contentID string) error
}

// VectorStore removes and writes vector documents.
type VectorStore interface {
	Upsert(ctx context.Context, key repository.VectorKey, vector []float32, payload *repository.VectorPayload) error
	Delete(ctx context.Context, key repository.VectorKey) error
}

// JobAnnouncer pushes a freshly persisted job toward the workers,
// best-effort.
type JobAnnouncer interface {
	Enqueue(ctx context.Context, job *domain.EmbeddingJob)
}

// checkpoint records one completed ingestion stage and how to undo it.
type checkpoint struct {
	name string
	undo func(ctx context.Context) error
}

// IngestService orchestrates content ingestion across the object store, the
// database, and the job queue. Each write records a checkpoint; when a later
// stage fails, completed stages are compensated in reverse order so a failed
// ingestion leaves no orphaned object, row, or job behind.
type IngestService struct {
	sources   KnowledgeSourceStore
	contents  ContentStore
	jobs      JobStore
	vectors   VectorStore
	storage   storage.ObjectStorage
	announcer JobAnnouncer
}

// NewIngestService creates an IngestService.
// Parameters:
//   - sources: knowledge source lookup.
//   - contents: content item store.
//   - jobs: embedding job store.
//   - vectors: vector document store, used by Delete.
//   - store: object storage for uploaded files.
//   - announcer: best-effort job announcement; may be nil.
// Returns:
//   - *IngestService: orchestrator instance.
func NewIngestService(
	sources KnowledgeSourceStore,
	contents ContentStore,
	jobs JobStore,
	vectors VectorStore,
	store storage.ObjectStorage,
	announcer JobAnnouncer,
) *IngestService {
	return &IngestService{
		sources:   sources,
		contents:  contents,
		jobs:      jobs,
		vectors:   vectors,
		storage:   store,
		announcer: announcer,
	}
}

// Ingest persists an inline content item (text, qa, website) and enqueues its
// embedding job. On any stage failure the completed stages are rolled back
// and the original error is returned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - item: content item to ingest; ID is assigned if empty.
// Returns:
//   - *domain.EmbeddingJob: the enqueued job.
//   - error: non-nil if ingestion failed and was rolled back.
func (s *IngestService) Ingest(ctx context.Context, item *domain.ContentItem) (*domain.EmbeddingJob, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if err := s.validate(ctx, item); err != nil {
		return nil, err
	}
	return s.run(ctx, item, nil)
}

// IngestFile uploads a file body to object storage, persists the file
// content item, and enqueues its embedding job. The upload is the first
// saga stage: if a later stage fails, the object is deleted again.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - knowledgeSourceID: owning knowledge source.
//   - fileName: original file name.
//   - mimeType: file MIME type.
//   - reader: file body.
//   - size: file body size in bytes.
// Returns:
//   - *domain.ContentItem: the persisted content item.
//   - *domain.EmbeddingJob: the enqueued job.
//   - error: non-nil if ingestion failed and was rolled back.
func (s *IngestService) IngestFile(ctx context.Context, knowledgeSourceID, fileName, mimeType string, reader io.Reader, size int64) (*domain.ContentItem, *domain.EmbeddingJob, error) {
	id := uuid.New().String()
	key := buildStorageKey(knowledgeSourceID, id, fileName)
	item := domain.NewFileContent(id, knowledgeSourceID, key, mimeType, fileName)

	if err := s.validate(ctx, item); err != nil {
		return nil, nil, err
	}

	upload := func(ctx context.Context) (checkpoint, error) {
		if err := s.storage.Upload(ctx, key, reader, size, mimeType); err != nil {
			return checkpoint{}, fmt.Errorf("failed to upload file object: %w", err)
		}
		return checkpoint{
			name: "object-upload",
			undo: func(ctx context.Context) error {
				return s.storage.Delete(ctx, key)
			},
		}, nil
	}

	job, err := s.run(ctx, item, upload)
	if err != nil {
		return nil, nil, err
	}
	return item, job, nil
}

// run executes the saga stages for an already validated item. firstStage is
// an optional stage executed before the database write (the file upload).
func (s *IngestService) run(ctx context.Context, item *domain.ContentItem, firstStage func(ctx context.Context) (checkpoint, error)) (*domain.EmbeddingJob, error) {
	ctx = logger.SetContentID(logger.SetKnowledgeSourceID(ctx, item.KnowledgeSourceID), item.ID)

	var checkpoints []checkpoint

	if firstStage != nil {
		cp, err := firstStage(ctx)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, cp)
	}

	if err := s.contents.Create(ctx, item); err != nil {
		s.rollback(ctx, checkpoints)
		return nil, fmt.Errorf("failed to persist content item: %w", err)
	}
	checkpoints = append(checkpoints, checkpoint{
		name: "content-row",
		undo: func(ctx context.Context) error {
			return s.contents.Delete(ctx, item.ID)
		},
	})

	job := &domain.EmbeddingJob{
		ID:                uuid.New().String(),
		KnowledgeSourceID: item.KnowledgeSourceID,
		ContentID:         item.ID,
		ContentType:       item.Type,
		Status:            domain.JobStatusPending,
	}
	if err := s.jobs.CreateWithClaim(ctx, job); err != nil {
		s.rollback(ctx, checkpoints)
		return nil, fmt.Errorf("failed to enqueue embedding job: %w", err)
	}

	// The job row is durable; the announcement is only a latency
	// optimization, so its failure never fails the ingestion.
	if s.announcer != nil {
		s.announcer.Enqueue(ctx, job)
	}

	logger.CtxInfo(ctx, "Ingested %s content item, job %s enqueued", item.Type, job.ID)
	return job, nil
}

// rollback compensates completed stages in reverse order. Compensation
// failures are collected and logged as a reconciliation warning rather than
// returned: the caller already has the original stage error.
func (s *IngestService) rollback(ctx context.Context, checkpoints []checkpoint) {
	var failed []string
	for i := len(checkpoints) - 1; i >= 0; i-- {
		cp := checkpoints[i]
		if err := cp.undo(ctx); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", cp.name, err))
		}
	}
	if len(failed) > 0 {
		logger.CtxWarn(ctx, "Ingestion rollback left orphans needing reconciliation: %s", strings.Join(failed, "; "))
		return
	}
	logger.CtxInfo(ctx, "Ingestion rolled back cleanly across %d stage(s)", len(checkpoints))
}

// validate checks the target knowledge source and the variant invariant.
func (s *IngestService) validate(ctx context.Context, item *domain.ContentItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	exists, err := s.sources.Exists(ctx, item.KnowledgeSourceID)
	if err != nil {
		return fmt.Errorf("failed to check knowledge source: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, item.KnowledgeSourceID)
	}
	return nil
}

// Delete removes a content item and everything derived from it: the vector
// document first, then the stored object for file items, then the jobs, then
// the row. Each step is idempotent, so a failed delete can simply be retried.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - contentID: content item to delete.
// Returns:
//   - error: non-nil if any step fails; the delete can be retried.
func (s *IngestService) Delete(ctx context.Context, contentID string) error {
	item, err := s.contents.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	ctx = logger.SetContentID(logger.SetKnowledgeSourceID(ctx, item.KnowledgeSourceID), item.ID)

	key := repository.VectorKey{
		KnowledgeSourceID: item.KnowledgeSourceID,
		ContentID:         item.ID,
		ContentType:       item.Type,
	}
	if err := s.vectors.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete vector document: %w", err)
	}

	if item.Type == domain.ContentTypeFile && item.File.StorageKey != "" {
		// A retried delete may find the object already gone; only a present
		// object needs removing.
		exists, err := s.storage.Exists(ctx, item.File.StorageKey)
		if err != nil {
			return fmt.Errorf("failed to check file object: %w", err)
		}
		if exists {
			if err := s.storage.Delete(ctx, item.File.StorageKey); err != nil {
				return fmt.Errorf("failed to delete file object: %w", err)
			}
		}
	}

	if err := s.jobs.DeleteByContent(ctx, contentID); err != nil {
		return fmt.Errorf("failed to delete embedding jobs: %w", err)
	}

	if err := s.contents.Delete(ctx, contentID); err != nil {
		return fmt.Errorf("failed to delete content item: %w", err)
	}

	logger.CtxInfo(ctx, "Deleted %s content item", item.Type)
	return nil
}

// DeleteSource removes every content item in a knowledge source, then the
// source itself is left to the caller's repository. Items are deleted one by
// one through Delete so vectors and objects are cleaned up too.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - knowledgeSourceID: source whose contents are removed.
// Returns:
//   - error: non-nil on the first failing item delete.
func (s *IngestService) DeleteSource(ctx context.Context, knowledgeSourceID string) error {
	const pageSize = 100
	for {
		items, err := s.contents.ListBySource(ctx, knowledgeSourceID, pageSize, 0)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			if err := s.Delete(ctx, items[i].ID); err != nil {
				return err
			}
		}
	}
}

// FileURL returns the access URL of a file item's stored object, empty for
// inline variants.
// Parameters:
//   - item: content item.
// Returns:
//   - string: object URL, or "" when the item has no stored object.
func (s *IngestService) FileURL(item *domain.ContentItem) string {
	if item.Type != domain.ContentTypeFile || item.File.StorageKey == "" {
		return ""
	}
	return s.storage.GetURL(item.File.StorageKey)
}

// buildStorageKey derives the object key for an uploaded file. The content
// item ID keeps keys unique even for identical file names.
func buildStorageKey(knowledgeSourceID, contentID, fileName string) string {
	base := filepath.Base(fileName)
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("knowledge-sources/%s/files/%s-%s", knowledgeSourceID, contentID, base)
}
