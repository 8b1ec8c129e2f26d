package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
)

// fakeQueue is a scriptable backend for selector tests.
type fakeQueue struct {
	name       string
	claimJobs  []domain.EmbeddingJob
	claimErr   error
	enqueueErr error
	enqueued   []string
	claims     int
}

func (f *fakeQueue) Name() string { return f.name }

func (f *fakeQueue) Enqueue(ctx context.Context, job *domain.EmbeddingJob) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, job.ID)
	return nil
}

func (f *fakeQueue) ClaimBatch(ctx context.Context, limit int) ([]domain.EmbeddingJob, error) {
	f.claims++
	return f.claimJobs, f.claimErr
}

func (f *fakeQueue) Ack(ctx context.Context, jobID string) error { return nil }

func (f *fakeQueue) Fail(ctx context.Context, job *domain.EmbeddingJob, errMsg string, permanent bool) error {
	return nil
}

func job(id string) domain.EmbeddingJob {
	return domain.EmbeddingJob{ID: id, KnowledgeSourceID: "ks-1", ContentID: "c-" + id, ContentType: domain.ContentTypeText}
}

func TestSelectorPrefersPrimary(t *testing.T) {
	primary := &fakeQueue{name: "primary", claimJobs: []domain.EmbeddingJob{job("j1")}}
	fallback := &fakeQueue{name: "fallback", claimJobs: []domain.EmbeddingJob{job("j2")}}

	s := NewSelector(primary, fallback)
	jobs, backend, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.Name() != "primary" {
		t.Errorf("expected primary backend, got %s", backend.Name())
	}
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Errorf("expected primary jobs, got %+v", jobs)
	}
	if fallback.claims != 0 {
		t.Errorf("fallback should not have been consulted, got %d claims", fallback.claims)
	}
}

func TestSelectorDegradesWhenPrimaryUnavailable(t *testing.T) {
	primary := &fakeQueue{name: "primary", claimErr: fmt.Errorf("%w: down", ErrBackendUnavailable)}
	fallback := &fakeQueue{name: "fallback", claimJobs: []domain.EmbeddingJob{job("j2")}}
	direct := &fakeQueue{name: "direct"}

	s := NewSelector(primary, fallback, direct)
	jobs, backend, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.Name() != "fallback" {
		t.Errorf("expected fallback backend, got %s", backend.Name())
	}
	if len(jobs) != 1 || jobs[0].ID != "j2" {
		t.Errorf("expected fallback jobs, got %+v", jobs)
	}
	if direct.claims != 0 {
		t.Errorf("direct backend should not have been consulted")
	}
}

func TestSelectorDegradesThroughAllBackends(t *testing.T) {
	unavailable := fmt.Errorf("%w: down", ErrBackendUnavailable)
	primary := &fakeQueue{name: "primary", claimErr: unavailable}
	fallback := &fakeQueue{name: "fallback", claimErr: unavailable}
	direct := &fakeQueue{name: "direct", claimJobs: []domain.EmbeddingJob{job("j3")}}

	s := NewSelector(primary, fallback, direct)
	jobs, backend, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.Name() != "direct" {
		t.Errorf("expected direct backend, got %s", backend.Name())
	}
	if len(jobs) != 1 {
		t.Errorf("expected one job, got %d", len(jobs))
	}
}

func TestSelectorFallsThroughEmptyPrimary(t *testing.T) {
	primary := &fakeQueue{name: "primary"}
	fallback := &fakeQueue{name: "fallback", claimJobs: []domain.EmbeddingJob{job("j2")}}

	s := NewSelector(primary, fallback)
	jobs, backend, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.claims != 1 {
		t.Errorf("primary should have been consulted first, got %d claims", primary.claims)
	}
	if backend.Name() != "fallback" {
		t.Errorf("expected fallback to serve the claim, got %s", backend.Name())
	}
	if len(jobs) != 1 || jobs[0].ID != "j2" {
		t.Errorf("expected the fallback's job, got %+v", jobs)
	}
}

func TestSelectorAllBackendsEmpty(t *testing.T) {
	primary := &fakeQueue{name: "primary"}
	fallback := &fakeQueue{name: "fallback"}
	direct := &fakeQueue{name: "direct"}

	s := NewSelector(primary, fallback, direct)
	jobs, _, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
	for _, b := range []*fakeQueue{primary, fallback, direct} {
		if b.claims != 1 {
			t.Errorf("backend %s consulted %d times, want 1", b.name, b.claims)
		}
	}
}

func TestSelectorReturnsNonAvailabilityErrors(t *testing.T) {
	dbErr := errors.New("database gone")
	primary := &fakeQueue{name: "primary", claimErr: dbErr}
	fallback := &fakeQueue{name: "fallback"}

	s := NewSelector(primary, fallback)
	_, _, err := s.ClaimBatch(context.Background(), 10)
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected database error to surface, got %v", err)
	}
	if fallback.claims != 0 {
		t.Errorf("fallback should not be consulted on non-availability errors")
	}
}

func TestSelectorUsesPartialBatchFromFailingBackend(t *testing.T) {
	primary := &fakeQueue{
		name:      "primary",
		claimJobs: []domain.EmbeddingJob{job("j1"), job("j2")},
		claimErr:  fmt.Errorf("%w: lost connection mid-claim", ErrBackendUnavailable),
	}
	fallback := &fakeQueue{name: "fallback"}

	s := NewSelector(primary, fallback)
	jobs, backend, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.Name() != "primary" {
		t.Errorf("partial batch should stay with the claiming backend, got %s", backend.Name())
	}
	if len(jobs) != 2 {
		t.Errorf("expected partial batch of 2, got %d", len(jobs))
	}
}

func TestSelectorSkipsNilBackends(t *testing.T) {
	fallback := &fakeQueue{name: "fallback", claimJobs: []domain.EmbeddingJob{job("j1")}}

	s := NewSelector(nil, fallback)
	jobs, backend, err := s.ClaimBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.Name() != "fallback" {
		t.Errorf("expected fallback backend, got %s", backend.Name())
	}
	if len(jobs) != 1 {
		t.Errorf("expected one job, got %d", len(jobs))
	}
}

func TestSelectorEnqueueDegrades(t *testing.T) {
	primary := &fakeQueue{name: "primary", enqueueErr: fmt.Errorf("%w: down", ErrBackendUnavailable)}
	fallback := &fakeQueue{name: "fallback"}

	s := NewSelector(primary, fallback)
	j := job("j1")
	s.Enqueue(context.Background(), &j)

	if len(fallback.enqueued) != 1 || fallback.enqueued[0] != "j1" {
		t.Errorf("expected enqueue to degrade to fallback, got %v", fallback.enqueued)
	}
}

func TestOptionsExhausted(t *testing.T) {
	opts := Options{MaxAttempts: 3}.withDefaults()

	testCases := []struct {
		attempts int
		want     bool
	}{
		{attempts: 0, want: false},
		{attempts: 1, want: false},
		{attempts: 2, want: true},
		{attempts: 5, want: true},
	}
	for _, tc := range testCases {
		j := domain.EmbeddingJob{Attempts: tc.attempts}
		if got := opts.exhausted(&j); got != tc.want {
			t.Errorf("exhausted with attempts=%d: got %v, want %v", tc.attempts, got, tc.want)
		}
	}
}
