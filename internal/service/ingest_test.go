package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/repository"
)

type fakeSourceStore struct {
	existing map[string]bool
	err      error
}

func (f *fakeSourceStore) Exists(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[id], nil
}

type fakeContentStore struct {
	items     map[string]*domain.ContentItem
	createErr error
	deleteErr error
	deleted   []string
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{items: make(map[string]*domain.ContentItem)}
}

func (f *fakeContentStore) Create(ctx context.Context, item *domain.ContentItem) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *item
	f.items[item.ID] = &copied
	return nil
}

func (f *fakeContentStore) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (f *fakeContentStore) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeContentStore) ListBySource(ctx context.Context, knowledgeSourceID string, limit, offset int) ([]domain.ContentItem, error) {
	var out []domain.ContentItem
	for _, item := range f.items {
		if item.KnowledgeSourceID == knowledgeSourceID && len(out) < limit {
			out = append(out, *item)
		}
	}
	return out, nil
}

type fakeJobStore struct {
	jobs           map[string]*domain.EmbeddingJob
	createErr      error
	deletedContent []string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*domain.EmbeddingJob)}
}

func (f *fakeJobStore) CreateWithClaim(ctx context.Context, job *domain.EmbeddingJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) DeleteByContent(ctx context.Context, contentID string) error {
	for id, j := range f.jobs {
		if j.ContentID == contentID {
			delete(f.jobs, id)
		}
	}
	f.deletedContent = append(f.deletedContent, contentID)
	return nil
}

type fakeVectorStore struct {
	upserts   []repository.VectorKey
	deletes   []repository.VectorKey
	upsertErr error
	deleteErr error
}

func (f *fakeVectorStore) Upsert(ctx context.Context, key repository.VectorKey, vector []float32, payload *repository.VectorPayload) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, key)
	return nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, key repository.VectorKey) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, key)
	return nil
}

type fakeAnnouncer struct {
	announced []string
}

func (f *fakeAnnouncer) Enqueue(ctx context.Context, job *domain.EmbeddingJob) {
	f.announced = append(f.announced, job.ID)
}

type ingestFixture struct {
	sources   *fakeSourceStore
	contents  *fakeContentStore
	jobs      *fakeJobStore
	vectors   *fakeVectorStore
	storage   *fakeObjectStorage
	announcer *fakeAnnouncer
	svc       *IngestService
}

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		sources:   &fakeSourceStore{existing: map[string]bool{"ks1": true}},
		contents:  newFakeContentStore(),
		jobs:      newFakeJobStore(),
		vectors:   &fakeVectorStore{},
		storage:   newFakeObjectStorage(),
		announcer: &fakeAnnouncer{},
	}
	f.svc = NewIngestService(f.sources, f.contents, f.jobs, f.vectors, f.storage, f.announcer)
	return f
}

func TestIngestSuccess(t *testing.T) {
	f := newIngestFixture()
	item := domain.NewTextContent("", "ks1", "some text")

	job, err := f.svc.Ingest(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.ID == "" {
		t.Error("content ID was not assigned")
	}
	if _, ok := f.contents.items[item.ID]; !ok {
		t.Error("content row was not persisted")
	}
	stored, ok := f.jobs.jobs[job.ID]
	if !ok {
		t.Fatal("job row was not persisted")
	}
	if stored.ContentID != item.ID || stored.Status != domain.JobStatusPending {
		t.Errorf("unexpected job: %+v", stored)
	}
	if len(f.announcer.announced) != 1 || f.announcer.announced[0] != job.ID {
		t.Errorf("job was not announced: %v", f.announcer.announced)
	}
}

func TestIngestUnknownSource(t *testing.T) {
	f := newIngestFixture()
	item := domain.NewTextContent("", "missing", "some text")

	_, err := f.svc.Ingest(context.Background(), item)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if len(f.contents.items) != 0 || len(f.jobs.jobs) != 0 {
		t.Error("nothing should be persisted for an unknown source")
	}
}

func TestIngestInvalidContent(t *testing.T) {
	f := newIngestFixture()
	item := domain.NewTextContent("", "ks1", "")

	_, err := f.svc.Ingest(context.Background(), item)
	if !errors.Is(err, domain.ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
	if len(f.contents.items) != 0 {
		t.Error("invalid content must not be persisted")
	}
}

func TestIngestRollsBackContentRowWhenJobFails(t *testing.T) {
	f := newIngestFixture()
	f.jobs.createErr = errors.New("job insert failed")
	item := domain.NewTextContent("", "ks1", "some text")

	_, err := f.svc.Ingest(context.Background(), item)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.contents.items) != 0 {
		t.Error("content row should have been rolled back")
	}
	if len(f.contents.deleted) != 1 {
		t.Errorf("expected one compensating delete, got %d", len(f.contents.deleted))
	}
	if len(f.announcer.announced) != 0 {
		t.Error("failed ingestion must not announce a job")
	}
}

func TestIngestFileSuccess(t *testing.T) {
	f := newIngestFixture()
	body := []byte("file contents")

	item, job, err := f.svc.IngestFile(context.Background(), "ks1", "notes.txt", "text/plain", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.Type != domain.ContentTypeFile {
		t.Errorf("expected file item, got %s", item.Type)
	}
	if !strings.Contains(item.File.StorageKey, "ks1") || !strings.Contains(item.File.StorageKey, "notes.txt") {
		t.Errorf("unexpected storage key: %s", item.File.StorageKey)
	}
	if _, ok := f.storage.objects[item.File.StorageKey]; !ok {
		t.Error("file object was not uploaded")
	}
	if _, ok := f.jobs.jobs[job.ID]; !ok {
		t.Error("job row was not persisted")
	}
}

func TestIngestFileRollsBackObjectWhenContentFails(t *testing.T) {
	f := newIngestFixture()
	f.contents.createErr = errors.New("insert failed")
	body := []byte("file contents")

	_, _, err := f.svc.IngestFile(context.Background(), "ks1", "notes.txt", "text/plain", bytes.NewReader(body), int64(len(body)))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.storage.objects) != 0 {
		t.Error("uploaded object should have been deleted on rollback")
	}
	if len(f.storage.deleted) != 1 {
		t.Errorf("expected one compensating object delete, got %d", len(f.storage.deleted))
	}
}

func TestIngestFileRollsBackInReverseOrderWhenJobFails(t *testing.T) {
	f := newIngestFixture()
	f.jobs.createErr = errors.New("job insert failed")
	body := []byte("file contents")

	_, _, err := f.svc.IngestFile(context.Background(), "ks1", "notes.txt", "text/plain", bytes.NewReader(body), int64(len(body)))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(f.contents.items) != 0 {
		t.Error("content row should have been rolled back")
	}
	if len(f.storage.objects) != 0 {
		t.Error("uploaded object should have been rolled back")
	}
	// Row compensation runs before object compensation.
	if len(f.contents.deleted) != 1 || len(f.storage.deleted) != 1 {
		t.Errorf("expected both compensations: rows=%v objects=%v", f.contents.deleted, f.storage.deleted)
	}
}

func TestDeleteRemovesDerivedState(t *testing.T) {
	f := newIngestFixture()
	item := domain.NewFileContent("c1", "ks1", "ks1/files/doc.pdf", "application/pdf", "doc.pdf")
	f.contents.items["c1"] = item
	f.storage.objects["ks1/files/doc.pdf"] = []byte("data")
	f.jobs.jobs["j1"] = &domain.EmbeddingJob{ID: "j1", ContentID: "c1"}

	if err := f.svc.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.vectors.deletes) != 1 {
		t.Error("vector document was not deleted")
	}
	if _, ok := f.storage.objects["ks1/files/doc.pdf"]; ok {
		t.Error("file object was not deleted")
	}
	if len(f.jobs.jobs) != 0 {
		t.Error("jobs were not deleted")
	}
	if _, ok := f.contents.items["c1"]; ok {
		t.Error("content row was not deleted")
	}
}

func TestDeleteStopsOnVectorFailure(t *testing.T) {
	f := newIngestFixture()
	f.vectors.deleteErr = errors.New("qdrant down")
	item := domain.NewTextContent("c1", "ks1", "body")
	f.contents.items["c1"] = item

	if err := f.svc.Delete(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := f.contents.items["c1"]; !ok {
		t.Error("content row must survive a failed delete so it can be retried")
	}
}

func TestDeleteFileToleratesMissingObject(t *testing.T) {
	f := newIngestFixture()
	item := domain.NewFileContent("c1", "ks1", "ks1/files/doc.pdf", "application/pdf", "doc.pdf")
	f.contents.items["c1"] = item
	// The object is already gone (earlier partial delete); a retried delete
	// must not trip over it.
	f.storage.deleteErr = errors.New("should not be called")

	if err := f.svc.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.contents.items["c1"]; ok {
		t.Error("content row was not deleted")
	}
}

func TestFileURL(t *testing.T) {
	f := newIngestFixture()

	file := domain.NewFileContent("c1", "ks1", "ks1/files/doc.pdf", "application/pdf", "doc.pdf")
	if got := f.svc.FileURL(file); got != "http://storage.test/ks1/files/doc.pdf" {
		t.Errorf("unexpected file URL: %q", got)
	}

	text := domain.NewTextContent("c2", "ks1", "body")
	if got := f.svc.FileURL(text); got != "" {
		t.Errorf("inline variants have no URL, got %q", got)
	}
}

func TestDeleteSourceRemovesAllContents(t *testing.T) {
	f := newIngestFixture()
	f.contents.items["c1"] = domain.NewTextContent("c1", "ks1", "one")
	f.contents.items["c2"] = domain.NewWebsiteContent("c2", "ks1", "https://example.com")
	f.contents.items["c3"] = domain.NewTextContent("c3", "other", "keep me")

	if err := f.svc.DeleteSource(context.Background(), "ks1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.contents.items) != 1 {
		t.Errorf("expected only the other source's item to remain, got %d", len(f.contents.items))
	}
	if _, ok := f.contents.items["c3"]; !ok {
		t.Error("content of other sources must not be touched")
	}
}
