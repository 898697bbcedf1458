package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/repository"
)

func TestImportJobRepositoryClaimAndLifecycleIntegration(t *testing.T) {
	tdb := openTestDB(t)
	if err := tdb.gorm.Exec("DELETE FROM import_jobs").Error; err != nil {
		t.Fatalf("failed to cleanup import_jobs: %v", err)
	}

	repo := repository.NewImportJobRepository(tdb.gorm)
	ctx := context.Background()

	opts := domain.DefaultUpsertOptions()
	opts.ChunkSize = 50
	jobID, err := repo.Enqueue(ctx, domain.EnqueueImportJob{
		TenantID:   "tenant-1",
		TenantCode: "ACME",
		ActorID:    "actor-1",
		SourcePath: "members.csv",
		Options:    opts,
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if strings.TrimSpace(jobID) == "" {
		t.Fatal("expected non-empty job id")
	}

	claimed, err := repo.ClaimNext(ctx, 30*time.Second)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected claimed job")
	}
	if claimed.ID != jobID || claimed.Attempts != 1 || claimed.TenantCode != "ACME" {
		t.Fatalf("unexpected claimed job: %+v", claimed)
	}
	if claimed.Options.ChunkSize != 50 {
		t.Fatalf("options did not round trip: %+v", claimed.Options)
	}

	again, err := repo.ClaimNext(ctx, 30*time.Second)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if again != nil {
		t.Fatalf("leased job must not be claimed twice, got %s", again.ID)
	}

	if err := repo.Heartbeat(ctx, claimed.ID, 30*time.Second); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	progress := domain.ImportProgress{ProcessedCount: 10, CreatedCount: 8, UpdatedCount: 1, FailedCount: 1, BatchesDone: 1, TotalBatches: 2}
	if err := repo.UpdateProgress(ctx, claimed.ID, progress); err != nil {
		t.Fatalf("update progress failed: %v", err)
	}

	summary := domain.ImportSummary{
		ProcessedCount: 10,
		CreatedCount:   8,
		UpdatedCount:   1,
		FailedCount:    1,
		Failures:       []domain.ImportFailure{{RowIndex: 4, Reason: "duplicate"}},
	}
	if err := repo.Complete(ctx, claimed.ID, summary); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if err := repo.Heartbeat(ctx, claimed.ID, 30*time.Second); err == nil {
		t.Fatal("expected heartbeat on a finished job to fail")
	}
}

func TestImportJobRepositoryRequeueAndFailIntegration(t *testing.T) {
	tdb := openTestDB(t)
	if err := tdb.gorm.Exec("DELETE FROM import_jobs").Error; err != nil {
		t.Fatalf("failed to cleanup import_jobs: %v", err)
	}

	repo := repository.NewImportJobRepository(tdb.gorm)
	ctx := context.Background()

	jobID, err := repo.Enqueue(ctx, domain.EnqueueImportJob{TenantID: "tenant-1", SourcePath: "members.csv"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	claimed, err := repo.ClaimNext(ctx, time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim failed: job=%v err=%v", claimed, err)
	}
	if err := repo.Requeue(ctx, jobID, "store unavailable"); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}

	reclaimed, err := repo.ClaimNext(ctx, time.Minute)
	if err != nil || reclaimed == nil {
		t.Fatalf("reclaim failed: job=%v err=%v", reclaimed, err)
	}
	if reclaimed.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", reclaimed.Attempts)
	}

	if err := repo.Fail(ctx, jobID, "file rejected"); err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	next, err := repo.ClaimNext(ctx, time.Minute)
	if err != nil {
		t.Fatalf("claim after fail errored: %v", err)
	}
	if next != nil {
		t.Fatalf("failed job must not be claimed, got %s", next.ID)
	}
}
