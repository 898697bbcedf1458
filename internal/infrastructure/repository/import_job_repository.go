package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	jobStatusQueued    = "queued"
	jobStatusRunning   = "running"
	jobStatusSucceeded = "succeeded"
	jobStatusFailed    = "failed"
)

type ImportJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Enqueue(ctx context.Context, req domain.EnqueueImportJob) (string, error) {
	options, err := json.Marshal(req.Options)
	if err != nil {
		return "", fmt.Errorf("encode import options: %w", err)
	}

	job := models.ImportJob{
		TenantID:   req.TenantID,
		TenantCode: req.TenantCode,
		ActorID:    req.ActorID,
		SourcePath: req.SourcePath,
		Status:     jobStatusQueued,
		Options:    options,
	}

	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}

	return job.ID, nil
}

// ClaimNext leases the oldest queued job, or a running one whose lease expired. It returns
// nil when nothing is claimable.
func (r *ImportJobRepository) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.ImportJob, error) {
	var claimed *domain.ImportJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.ImportJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND lease_expires_at < NOW())", jobStatusQueued, jobStatusRunning).
			Where("attempts < max_attempts").
			Order("created_at").
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("select claimable job: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		row := rows[0]
		now := time.Now().UTC()
		lease := now.Add(leaseDuration)
		err = tx.Model(&models.ImportJob{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"status":           jobStatusRunning,
				"attempts":         gorm.Expr("attempts + 1"),
				"heartbeat_at":     now,
				"lease_expires_at": lease,
				"started_at":       gorm.Expr("COALESCE(started_at, ?)", now),
				"updated_at":       now,
			}).Error
		if err != nil {
			return fmt.Errorf("lease job: %w", err)
		}

		var opts domain.UpsertOptions
		if len(row.Options) > 0 {
			if err := json.Unmarshal(row.Options, &opts); err != nil {
				return fmt.Errorf("decode import options: %w", err)
			}
		}

		claimed = &domain.ImportJob{
			ID:          row.ID,
			TenantID:    row.TenantID,
			TenantCode:  row.TenantCode,
			ActorID:     row.ActorID,
			SourcePath:  row.SourcePath,
			Status:      jobStatusRunning,
			Options:     opts,
			Attempts:    row.Attempts + 1,
			MaxAttempts: row.MaxAttempts,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim import job: %w", err)
	}
	return claimed, nil
}

func (r *ImportJobRepository) Heartbeat(ctx context.Context, jobID string, leaseDuration time.Duration) error {
	now := time.Now().UTC()
	return r.updateRunning(ctx, jobID, "heartbeat", map[string]any{
		"heartbeat_at":     now,
		"lease_expires_at": now.Add(leaseDuration),
		"updated_at":       now,
	})
}

func (r *ImportJobRepository) UpdateProgress(ctx context.Context, jobID string, progress domain.ImportProgress) error {
	return r.updateRunning(ctx, jobID, "update progress", map[string]any{
		"progress_processed": progress.ProcessedCount,
		"created_count":      progress.CreatedCount,
		"updated_count":      progress.UpdatedCount,
		"failed_count":       progress.FailedCount,
		"batches_done":       progress.BatchesDone,
		"total_batches":      progress.TotalBatches,
		"updated_at":         time.Now().UTC(),
	})
}

func (r *ImportJobRepository) Complete(ctx context.Context, jobID string, summary domain.ImportSummary) error {
	encoded, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode import summary: %w", err)
	}

	now := time.Now().UTC()
	return r.update(ctx, jobID, "complete", map[string]any{
		"status":             jobStatusSucceeded,
		"progress_processed": summary.ProcessedCount,
		"created_count":      summary.CreatedCount,
		"updated_count":      summary.UpdatedCount,
		"failed_count":       summary.FailedCount,
		"batch_id":           nullableText(summary.BatchID),
		"summary":            string(encoded),
		"error_message":      nil,
		"lease_expires_at":   nil,
		"finished_at":        now,
		"updated_at":         now,
	})
}

func (r *ImportJobRepository) Requeue(ctx context.Context, jobID string, reason string) error {
	return r.update(ctx, jobID, "requeue", map[string]any{
		"status":           jobStatusQueued,
		"error_message":    reason,
		"lease_expires_at": nil,
		"updated_at":       time.Now().UTC(),
	})
}

func (r *ImportJobRepository) Fail(ctx context.Context, jobID string, reason string) error {
	now := time.Now().UTC()
	return r.update(ctx, jobID, "fail", map[string]any{
		"status":           jobStatusFailed,
		"error_message":    reason,
		"lease_expires_at": nil,
		"finished_at":      now,
		"updated_at":       now,
	})
}

func (r *ImportJobRepository) updateRunning(ctx context.Context, jobID, op string, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", jobID, jobStatusRunning).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("%s import job: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s import job %s: job is not running", op, jobID)
	}
	return nil
}

func (r *ImportJobRepository) update(ctx context.Context, jobID, op string, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ?", jobID).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("%s import job: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s import job %s: not found", op, jobID)
	}
	return nil
}
