package member

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/sirupsen/logrus"
)

const maxStoredFailures = 100

type ImportSource interface {
	Open(ctx context.Context, sourcePath string) (io.ReadCloser, error)
}

type batchExecutor interface {
	ExecuteBatchedWithProgress(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions, onBatch func(BatchProgress)) (BatchExecutionResult, error)
}

type importWorkerJobRepo interface {
	ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.ImportJob, error)
	Heartbeat(ctx context.Context, jobID string, leaseDuration time.Duration) error
	UpdateProgress(ctx context.Context, jobID string, progress domain.ImportProgress) error
	Complete(ctx context.Context, jobID string, summary domain.ImportSummary) error
	Requeue(ctx context.Context, jobID string, reason string) error
	Fail(ctx context.Context, jobID string, reason string) error
}

type ImportWorkerConfig struct {
	Workers           int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	MaxFileBytes      int64
	Logger            logrus.FieldLogger
}

type ImportWorker struct {
	repo   importWorkerJobRepo
	source ImportSource
	engine batchExecutor
	cfg    ImportWorkerConfig

	once sync.Once
}

func NewImportWorker(repo importWorkerJobRepo, source ImportSource, engine batchExecutor, cfg ImportWorkerConfig) *ImportWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 60 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseDuration / 2
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 64 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &ImportWorker{
		repo:   repo,
		source: source,
		engine: engine,
		cfg:    cfg,
	}
}

func (w *ImportWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			go w.workerLoop(ctx)
		}
	})
}

func (w *ImportWorker) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.repo.ClaimNext(ctx, w.cfg.LeaseDuration)
		if err != nil {
			w.cfg.Logger.WithError(err).Warn("claim next import job failed")
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if job == nil {
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := w.ProcessJob(ctx, *job); err != nil {
			w.cfg.Logger.WithError(err).WithField("job_id", job.ID).Error("process import job failed")
		}
	}
}

func (w *ImportWorker) ProcessJob(ctx context.Context, job domain.ImportJob) error {
	data, err := w.readSource(ctx, job.SourcePath)
	if err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("read import source: %w", err))
	}

	stopHeartbeat := w.heartbeat(ctx, job.ID)
	var (
		progress    domain.ImportProgress
		progressErr error
	)
	result, err := w.engine.ExecuteBatchedWithProgress(ctx, ImportContext{
		TenantID:   job.TenantID,
		TenantCode: job.TenantCode,
		ActorID:    job.ActorID,
	}, ImportFile{Name: job.SourcePath, Data: data}, job.Options, func(batch BatchProgress) {
		progress.ProcessedCount += int64(batch.Rows)
		progress.CreatedCount += int64(batch.Created)
		progress.UpdatedCount += int64(batch.Updated)
		progress.FailedCount += int64(batch.Failed)
		progress.BatchesDone = batch.BatchIndex
		progress.TotalBatches = batch.TotalBatches
		if progressErr != nil {
			return
		}
		progressErr = w.repo.UpdateProgress(ctx, job.ID, progress)
	})
	stopHeartbeat()

	if err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("execute import: %w", err))
	}
	if progressErr != nil {
		w.cfg.Logger.WithError(progressErr).WithField("job_id", job.ID).Warn("update import progress failed")
	}

	if err := w.repo.Complete(ctx, job.ID, summarize(result)); err != nil {
		return w.onProcessingError(ctx, job, fmt.Errorf("complete job: %w", err))
	}
	return nil
}

func (w *ImportWorker) readSource(ctx context.Context, sourcePath string) ([]byte, error) {
	reader, err := w.source.Open(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, w.cfg.MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > w.cfg.MaxFileBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidImportSource, w.cfg.MaxFileBytes)
	}
	return data, nil
}

// heartbeat extends the lease until the returned stop function is called.
func (w *ImportWorker) heartbeat(ctx context.Context, jobID string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(ctx, jobID, w.cfg.LeaseDuration); err != nil {
					w.cfg.Logger.WithError(err).WithField("job_id", jobID).Warn("import job heartbeat failed")
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func summarize(result BatchExecutionResult) domain.ImportSummary {
	summary := domain.ImportSummary{
		ProcessedCount: int64(result.TotalRows),
		CreatedCount:   int64(result.Created),
		UpdatedCount:   int64(result.Updated),
		FailedCount:    int64(result.Failed),
		BatchID:        result.BatchID,
		AuditEntryIDs:  result.AuditEntryIDs,
	}
	for _, re := range result.RecoverableErrors {
		if len(summary.Failures) >= maxStoredFailures {
			break
		}
		summary.Failures = append(summary.Failures, domain.ImportFailure{RowIndex: int64(re.RowIndex), Reason: re.Message})
	}
	for _, ce := range result.CriticalErrors {
		if len(summary.Failures) >= maxStoredFailures {
			break
		}
		summary.Failures = append(summary.Failures, domain.ImportFailure{RowIndex: int64(ce.RowIndex), Reason: ce.Error()})
	}
	return summary
}

// permanent failures are not worth another attempt.
func permanent(err error) bool {
	return errors.Is(err, ErrFileRejected) ||
		errors.Is(err, ErrMissingHeader) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrMissingTenant) ||
		errors.Is(err, ErrInvalidImportSource)
}

func (w *ImportWorker) onProcessingError(ctx context.Context, job domain.ImportJob, err error) error {
	reason := truncateReason(err.Error())
	if job.Attempts < job.MaxAttempts && !permanent(err) {
		if requeueErr := w.repo.Requeue(ctx, job.ID, reason); requeueErr != nil {
			return fmt.Errorf("%v; requeue failed: %w", err, requeueErr)
		}
		return err
	}

	if failErr := w.repo.Fail(ctx, job.ID, reason); failErr != nil {
		return fmt.Errorf("%v; fail update failed: %w", err, failErr)
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
