package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.EmbeddingJob{}, &domain.JobClaim{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func pendingJob(id string) *domain.EmbeddingJob {
	return &domain.EmbeddingJob{
		ID:                id,
		KnowledgeSourceID: "ks-1",
		ContentID:         "c-" + id,
		ContentType:       domain.ContentTypeText,
		Status:            domain.JobStatusPending,
	}
}

func TestTryClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	r := NewEmbeddingJobRepository(db)
	ctx := context.Background()

	if err := r.CreateWithClaim(ctx, pendingJob("j1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	now := time.Now()
	won, err := r.TryClaim(ctx, "j1", now, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Fatal("first claim should win")
	}

	won, err = r.TryClaim(ctx, "j1", now, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if won {
		t.Error("second claim on a fresh processing job must lose")
	}
}

func TestTryClaimTakesOverExpiredClaim(t *testing.T) {
	db := newTestDB(t)
	r := NewEmbeddingJobRepository(db)
	ctx := context.Background()
	visibility := 5 * time.Minute

	if err := r.CreateWithClaim(ctx, pendingJob("j1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	now := time.Now()
	if won, err := r.TryClaim(ctx, "j1", now, visibility); err != nil || !won {
		t.Fatalf("initial claim failed: won=%v err=%v", won, err)
	}

	// Age the claim past the visibility timeout, as if the worker died.
	stale := now.Add(-2 * visibility)
	if err := db.Model(&domain.EmbeddingJob{}).Where("id = ?", "j1").
		Update("claimed_at", stale).Error; err != nil {
		t.Fatalf("failed to age claim: %v", err)
	}

	won, err := r.TryClaim(ctx, "j1", time.Now(), visibility)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Error("expired claim must be reclaimable")
	}

	job, err := r.GetByID(ctx, "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Errorf("expected processing after takeover, got %s", job.Status)
	}
	if job.ClaimedAt == nil || !job.ClaimedAt.After(stale) {
		t.Error("takeover should refresh the claim timestamp")
	}
}

func TestMarkRetryMakesJobClaimableAgain(t *testing.T) {
	db := newTestDB(t)
	r := NewEmbeddingJobRepository(db)
	ctx := context.Background()

	if err := r.CreateWithClaim(ctx, pendingJob("j1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if won, err := r.TryClaim(ctx, "j1", time.Now(), 5*time.Minute); err != nil || !won {
		t.Fatalf("initial claim failed: won=%v err=%v", won, err)
	}

	if err := r.MarkRetry(ctx, "j1", "transient failure"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := r.GetByID(ctx, "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobStatusPending || job.Attempts != 1 {
		t.Errorf("expected pending with 1 attempt, got %s/%d", job.Status, job.Attempts)
	}

	won, err := r.TryClaim(ctx, "j1", time.Now(), 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Error("a retried job must be claimable without waiting out the timeout")
	}
}

func TestListEligibleMarkers(t *testing.T) {
	db := newTestDB(t)
	jobs := NewEmbeddingJobRepository(db)
	claims := NewJobClaimRepository(db)
	ctx := context.Background()
	visibility := 5 * time.Minute
	now := time.Now()

	for _, id := range []string{"untouched", "fresh", "stale"} {
		if err := jobs.CreateWithClaim(ctx, pendingJob(id)); err != nil {
			t.Fatalf("failed to create job %s: %v", id, err)
		}
	}
	for _, id := range []string{"fresh", "stale"} {
		if won, err := claims.TryClaim(ctx, id, now, visibility); err != nil || !won {
			t.Fatalf("marker claim for %s failed: won=%v err=%v", id, won, err)
		}
	}
	if err := db.Model(&domain.JobClaim{}).Where("job_id = ?", "stale").
		Update("claimed_at", now.Add(-2*visibility)).Error; err != nil {
		t.Fatalf("failed to age marker: %v", err)
	}

	ids, err := claims.ListEligible(ctx, time.Now(), visibility, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eligible := make(map[string]bool, len(ids))
	for _, id := range ids {
		eligible[id] = true
	}
	if !eligible["untouched"] {
		t.Error("pending marker must be eligible")
	}
	if !eligible["stale"] {
		t.Error("expired processing marker must be eligible")
	}
	if eligible["fresh"] {
		t.Error("live processing marker must not be eligible")
	}
}
