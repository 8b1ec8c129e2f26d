package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/queue"
)

// fakeBackend records completions for claimed jobs.
type fakeBackend struct {
	mu        sync.Mutex
	acked     []string
	failed    []string
	permanent map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{permanent: make(map[string]bool)}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Enqueue(ctx context.Context, job *domain.EmbeddingJob) error { return nil }

func (f *fakeBackend) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	return nil, nil
}

func (f *fakeBackend) Ack(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, jobID)
	return nil
}

func (f *fakeBackend) Fail(ctx context.Context, job *domain.EmbeddingJob, errMsg string, permanent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, job.ID)
	f.permanent[job.ID] = permanent
	return nil
}

// fakeClaimer serves one scripted batch per cycle.
type fakeClaimer struct {
	jobs    []domain.EmbeddingJob
	backend queue.Queue
	err     error
}

func (f *fakeClaimer) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, queue.Queue, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.jobs, f.backend, nil
}

// fakeNormalizer maps content IDs to canned results.
type fakeNormalizer struct {
	texts map[string]string
	errs  map[string]error
}

func (f *fakeNormalizer) Normalize(ctx context.Context, item *domain.ContentItem) (string, error) {
	if err, ok := f.errs[item.ID]; ok {
		return "", err
	}
	if text, ok := f.texts[item.ID]; ok {
		return text, nil
	}
	return "normalized " + item.ID, nil
}

// fakeEmbedder returns a fixed-size vector or a scripted error.
type fakeEmbedder struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type workerFixture struct {
	backend    *fakeBackend
	claimer    *fakeClaimer
	contents   *fakeContentStore
	normalizer *fakeNormalizer
	embedder   *fakeEmbedder
	vectors    *fakeVectorStore
	svc        *WorkerService
}

func newWorkerFixture(jobs ...domain.EmbeddingJob) *workerFixture {
	f := &workerFixture{
		backend:    newFakeBackend(),
		contents:   newFakeContentStore(),
		normalizer: &fakeNormalizer{texts: map[string]string{}, errs: map[string]error{}},
		embedder:   &fakeEmbedder{errs: map[string]error{}},
		vectors:    &fakeVectorStore{},
	}
	f.claimer = &fakeClaimer{jobs: jobs, backend: f.backend}
	f.svc = NewWorkerService(f.claimer, f.contents, f.normalizer, f.embedder, f.vectors, WorkerOptions{
		BatchSize:   10,
		Concurrency: 2,
	})
	return f
}

func textJob(id, contentID string) domain.EmbeddingJob {
	return domain.EmbeddingJob{
		ID:                id,
		KnowledgeSourceID: "ks1",
		ContentID:         contentID,
		ContentType:       domain.ContentTypeText,
		Status:            domain.JobStatusProcessing,
	}
}

func TestRunCycleProcessesBatch(t *testing.T) {
	f := newWorkerFixture(textJob("j1", "c1"), textJob("j2", "c2"))
	f.contents.items["c1"] = domain.NewTextContent("c1", "ks1", "one")
	f.contents.items["c2"] = domain.NewTextContent("c2", "ks1", "two")

	processed, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Errorf("expected 2 processed, got %d", processed)
	}
	if len(f.backend.acked) != 2 {
		t.Errorf("expected 2 acks, got %v", f.backend.acked)
	}
	if len(f.vectors.upserts) != 2 {
		t.Errorf("expected 2 upserts, got %d", len(f.vectors.upserts))
	}
}

func TestRunCycleEmptyBatch(t *testing.T) {
	f := newWorkerFixture()

	processed, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 processed, got %d", processed)
	}
}

func TestRunCycleSurfacesClaimError(t *testing.T) {
	f := newWorkerFixture()
	f.claimer.err = errors.New("all backends down")

	_, err := f.svc.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected claim error to surface")
	}
}

func TestRunCycleIsolatesJobFailures(t *testing.T) {
	f := newWorkerFixture(textJob("j1", "c1"), textJob("j2", "c2"), textJob("j3", "c3"))
	f.contents.items["c1"] = domain.NewTextContent("c1", "ks1", "one")
	f.contents.items["c2"] = domain.NewTextContent("c2", "ks1", "two")
	f.contents.items["c3"] = domain.NewTextContent("c3", "ks1", "three")
	f.normalizer.texts["c2"] = "embed me"
	f.embedder.errs["embed me"] = errors.New("rate limited")

	processed, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Errorf("expected 2 processed despite one failure, got %d", processed)
	}
	if len(f.backend.failed) != 1 || f.backend.failed[0] != "j2" {
		t.Errorf("expected j2 to fail, got %v", f.backend.failed)
	}
	if f.backend.permanent["j2"] {
		t.Error("embedding failure should be transient")
	}
}

func TestRunCycleMalformedContentFailsPermanently(t *testing.T) {
	f := newWorkerFixture(textJob("j1", "c1"))
	f.contents.items["c1"] = domain.NewTextContent("c1", "ks1", "one")
	f.normalizer.errs["c1"] = fmt.Errorf("%w: no storage key", ErrMalformedContent)

	processed, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 processed, got %d", processed)
	}
	if !f.backend.permanent["j1"] {
		t.Error("malformed content must fail permanently, not retry")
	}
}

func TestRunCycleMissingContentFailsPermanently(t *testing.T) {
	f := newWorkerFixture(textJob("j1", "gone"))

	processed, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Errorf("expected 0 processed, got %d", processed)
	}
	if !f.backend.permanent["j1"] {
		t.Error("deleted content must fail the job permanently")
	}
}

func TestReprocessingUpsertsSameKey(t *testing.T) {
	f := newWorkerFixture(textJob("j1", "c1"))
	f.contents.items["c1"] = domain.NewTextContent("c1", "ks1", "one")

	if _, err := f.svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Simulate redelivery of the same job.
	if _, err := f.svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.vectors.upserts) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(f.vectors.upserts))
	}
	if f.vectors.upserts[0].PointID() != f.vectors.upserts[1].PointID() {
		t.Error("reprocessing must target the same vector point")
	}
}
