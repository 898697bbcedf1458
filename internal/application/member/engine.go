package member

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRows        = 10000
	estimatedXLSXRowBytes = 64
	defaultRollbackWindow = 24 * time.Hour
	defaultHistoryLimit   = 50
)

const (
	OutcomeSuccess        = "success"
	OutcomePartialSuccess = "partial_success"
	OutcomeFailed         = "failed"
)

// ImportContext scopes an engine call to one tenant and the acting operator.
type ImportContext struct {
	TenantID   string
	TenantCode string
	ActorID    string
}

type ImportFile struct {
	Name string
	Data []byte
}

type EngineConfig struct {
	MaxRows        int
	Capacity       domain.CapacityProfile
	RollbackWindow time.Duration
	HistoryLimit   int
	// MaxHashWorkers caps hashing parallelism below the chunk size; zero means no cap.
	MaxHashWorkers int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRows:        defaultMaxRows,
		Capacity:       domain.CapacityMedium,
		RollbackWindow: defaultRollbackWindow,
		HistoryLimit:   defaultHistoryLimit,
	}
}

type Dependencies struct {
	Directory domain.DirectoryStore
	Hasher    domain.CredentialHasher
	Journal   domain.AuditJournal
	Generator CredentialGenerator
	Logger    logrus.FieldLogger
	Now       func() time.Time
}

type PreviewRow struct {
	RowIndex         int                `json:"row_index"`
	Name             string             `json:"name"`
	Login            string             `json:"login"`
	Action           domain.Action      `json:"action"`
	ExistingID       string             `json:"existing_id,omitempty"`
	ManagerFound     bool               `json:"manager_found"`
	Errors           []domain.Violation `json:"errors,omitempty"`
	Warnings         []domain.Violation `json:"warnings,omitempty"`
	CredentialRepair bool               `json:"credential_repair,omitempty"`
}

type PreviewResult struct {
	Format       string       `json:"format,omitempty"`
	TotalRows    int          `json:"total_rows"`
	ValidRows    int          `json:"valid_rows"`
	InvalidRows  int          `json:"invalid_rows"`
	ToCreate     int          `json:"to_create"`
	ToUpdate     int          `json:"to_update"`
	Rows         []PreviewRow `json:"rows"`
	ParseErrors  []string     `json:"parse_errors,omitempty"`
	Plan         BatchPlan    `json:"plan"`
	AuditEntryID string       `json:"audit_entry_id,omitempty"`
}

type RepairedCredential struct {
	RowIndex   int    `json:"row_index"`
	Login      string `json:"login"`
	Credential string `json:"credential"`
}

type ExecutionResult struct {
	TotalRows           int                        `json:"total_rows"`
	Created             int                        `json:"created"`
	Updated             int                        `json:"updated"`
	Failed              int                        `json:"failed"`
	Success             bool                       `json:"success"`
	Outcome             string                     `json:"outcome"`
	Errors              []string                   `json:"errors"`
	RecoverableErrors   []*domain.RecoverableError `json:"recoverable_errors,omitempty"`
	CriticalErrors      []*domain.CriticalError    `json:"critical_errors,omitempty"`
	Warnings            []*domain.RecoverableError `json:"warnings,omitempty"`
	RepairedCredentials []RepairedCredential       `json:"repaired_credentials,omitempty"`
	AuditEntryIDs       []string                   `json:"audit_entry_ids,omitempty"`
	DurationMillis      int64                      `json:"duration_ms"`
}

type BatchProgress struct {
	BatchIndex     int    `json:"batch_index"`
	TotalBatches   int    `json:"total_batches"`
	Rows           int    `json:"rows"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	Failed         int    `json:"failed"`
	AuditEntryID   string `json:"audit_entry_id,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
}

type BatchExecutionResult struct {
	ExecutionResult
	BatchID      string          `json:"batch_id,omitempty"`
	TotalBatches int             `json:"total_batches"`
	Plan         BatchPlan       `json:"plan"`
	Progress     []BatchProgress `json:"per_batch_progress"`
}

type RetryResult struct {
	ExecutionResult
	RetriedRows    []int                      `json:"retried_rows"`
	OriginalErrors []*domain.RecoverableError `json:"original_errors"`
}

// FileRejectedError carries the schema problems that rejected the whole file.
type FileRejectedError struct {
	ParseErrors []string
}

func (e *FileRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFileRejected, strings.Join(e.ParseErrors, "; "))
}

func (e *FileRejectedError) Unwrap() error {
	return ErrFileRejected
}

type ImportEngine interface {
	Preview(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions) (PreviewResult, error)
	Execute(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions) (ExecutionResult, error)
	ExecuteBatched(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions) (BatchExecutionResult, error)
	ExecuteBatchedWithProgress(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions, onBatch func(BatchProgress)) (BatchExecutionResult, error)
	RetryFailedRows(ctx context.Context, ictx ImportContext, file ImportFile, errs []*domain.RecoverableError, fixes []Fix, opts domain.UpsertOptions) (RetryResult, error)
	Rollback(ctx context.Context, ictx ImportContext, entryID string) (RollbackResult, error)
	GetHistory(ctx context.Context, tenantID string) ([]domain.AuditEntry, error)
	GetStatistics(ctx context.Context, tenantID string) (Statistics, error)
}

type importEngine struct {
	parser   *RowParser
	resolver *DirectoryResolver
	rules    *RuleEngine
	hashers  *HasherPool
	writer   *TransactionalWriter
	journal  *Journal
	cfg      EngineConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewImportEngine(deps Dependencies, cfg EngineConfig) ImportEngine {
	defaults := DefaultEngineConfig()
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaults.MaxRows
	}
	if _, ok := domain.ParseCapacityProfile(string(cfg.Capacity)); !ok {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.RollbackWindow <= 0 {
		cfg.RollbackWindow = defaults.RollbackWindow
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	writer := NewTransactionalWriter(deps.Directory, deps.Hasher)
	writer.now = deps.Now
	journal := NewJournal(deps.Journal, deps.Directory, cfg.RollbackWindow, cfg.HistoryLimit)
	journal.now = deps.Now

	return &importEngine{
		parser:   NewRowParser(cfg.MaxRows),
		resolver: NewDirectoryResolver(deps.Directory),
		rules:    NewRuleEngine(),
		hashers:  NewHasherPool(deps.Hasher, deps.Generator, cfg.MaxHashWorkers),
		writer:   writer,
		journal:  journal,
		cfg:      cfg,
		logger:   deps.Logger,
		now:      deps.Now,
	}
}

func (e *importEngine) parse(ictx ImportContext, data []byte) (ParseResult, error) {
	if strings.TrimSpace(ictx.TenantID) == "" {
		return ParseResult{}, ErrMissingTenant
	}
	parsed, err := e.parser.Parse(data)
	if err != nil {
		return ParseResult{}, err
	}
	if parsed.Rejected() {
		return parsed, &FileRejectedError{ParseErrors: parsed.ParseErrors}
	}
	return parsed, nil
}

func (e *importEngine) enrich(ctx context.Context, ictx ImportContext, rows []domain.CandidateRow, opts domain.UpsertOptions) error {
	if err := e.resolver.Resolve(ctx, ictx.TenantID, rows); err != nil {
		return err
	}
	e.rules.ValidateAll(rows, ValidationPolicy{
		DeferCredentialPolicy: opts.AutoFixCredentials,
		TenantCode:            ictx.TenantCode,
	})
	return nil
}

func (e *importEngine) analyze(ctx context.Context, ictx ImportContext, data []byte, opts domain.UpsertOptions) (ParseResult, error) {
	parsed, err := e.parse(ictx, data)
	if err != nil {
		return parsed, err
	}
	if err := e.enrich(ctx, ictx, parsed.Rows, opts); err != nil {
		return parsed, err
	}
	return parsed, nil
}

func (e *importEngine) Preview(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions) (PreviewResult, error) {
	result := PreviewResult{Plan: PlanBatches(EstimateRows(file.Data), e.cfg.Capacity, opts)}

	parsed, err := e.analyze(ctx, ictx, file.Data, opts)
	var rejected *FileRejectedError
	switch {
	case errors.As(err, &rejected):
		result.Format = parsed.Format
		result.ParseErrors = rejected.ParseErrors
		return result, nil
	case err != nil:
		return PreviewResult{}, err
	}

	result.Format = parsed.Format
	result.TotalRows = len(parsed.Rows)
	result.Rows = make([]PreviewRow, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		preview := PreviewRow{
			RowIndex:         row.RowIndex,
			Name:             row.Name,
			Login:            row.Login(),
			Action:           row.Action,
			ExistingID:       row.ExistingID,
			ManagerFound:     row.ManagerFound,
			Errors:           row.Violations,
			Warnings:         row.Warnings,
			CredentialRepair: row.RepairCredential,
		}
		// Rows whose action the options forbid fail on execute, so they count as invalid here.
		disabled := ""
		if row.Valid() {
			disabled = actionDisabled(row.Action, opts)
		}
		if disabled != "" {
			preview.Errors = append(append([]domain.Violation(nil), row.Violations...), domain.Violation{
				Code:    domain.ViolationActionDisabled,
				Message: disabled,
			})
		}
		result.Rows = append(result.Rows, preview)
		if !row.Valid() || disabled != "" {
			result.InvalidRows++
			continue
		}
		result.ValidRows++
		if row.Action == domain.ActionUpdate {
			result.ToUpdate++
		} else {
			result.ToCreate++
		}
	}

	entry, err := e.journal.Record(ctx, domain.AuditEntry{
		TenantID: ictx.TenantID,
		ActorID:  ictx.ActorID,
		Action:   domain.AuditImportPreview,
		Metadata: e.fileMetadata(file, domain.AuditMetadata{
			TotalRows: result.TotalRows,
			Failed:    result.InvalidRows,
			Options:   &opts,
		}),
	})
	if err != nil {
		e.logger.WithError(err).WithField("tenant_id", ictx.TenantID).Warn("record import preview")
	} else {
		result.AuditEntryID = entry.ID
	}
	return result, nil
}

// gate stops before any write when invalid rows must not be skipped.
func gate(rows []domain.CandidateRow, opts domain.UpsertOptions) (ExecutionResult, error) {
	if opts.ContinueOnValidationError {
		return ExecutionResult{}, nil
	}
	var result ExecutionResult
	for _, row := range rows {
		if !row.Valid() {
			result.addClassification(Classification{Recoverable: ViolationError(row)})
		}
	}
	if len(result.RecoverableErrors) == 0 {
		return ExecutionResult{}, nil
	}
	result.Outcome = OutcomeFailed
	for _, re := range result.RecoverableErrors {
		result.Errors = append(result.Errors, re.Error())
	}
	return result, fmt.Errorf("%w: %d invalid rows", ErrValidationFailed, len(result.RecoverableErrors))
}

func (e *importEngine) Execute(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions) (ExecutionResult, error) {
	parsed, err := e.analyze(ctx, ictx, file.Data, opts)
	if err != nil {
		return ExecutionResult{}, err
	}
	if result, err := gate(parsed.Rows, opts); err != nil {
		return result, err
	}

	result, err := e.runChunk(ctx, ictx, file, parsed.Rows, opts, chunkPosition{action: domain.AuditImportExecute, index: 1, total: 1})
	result.finalize(opts)
	return result, err
}

func (e *importEngine) ExecuteBatched(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions) (BatchExecutionResult, error) {
	return e.ExecuteBatchedWithProgress(ctx, ictx, file, opts, nil)
}

// ExecuteBatchedWithProgress runs chunks strictly one after another. Each chunk is
// hashed, written and journaled before the next one starts.
func (e *importEngine) ExecuteBatchedWithProgress(ctx context.Context, ictx ImportContext, file ImportFile, opts domain.UpsertOptions, onBatch func(BatchProgress)) (BatchExecutionResult, error) {
	plan := PlanBatches(EstimateRows(file.Data), e.cfg.Capacity, opts)

	parsed, err := e.analyze(ctx, ictx, file.Data, opts)
	if err != nil {
		return BatchExecutionResult{}, err
	}
	if result, err := gate(parsed.Rows, opts); err != nil {
		return BatchExecutionResult{ExecutionResult: result, Plan: plan}, err
	}

	chunks := plan.Chunks(parsed.Rows)
	out := BatchExecutionResult{Plan: plan, TotalBatches: len(chunks)}
	action := domain.AuditImportExecute
	if plan.Batching {
		out.BatchID = uuid.NewString()
		action = domain.AuditImportBatchExecute
	}

	for i, chunk := range chunks {
		result, err := e.runChunk(ctx, ictx, file, chunk, opts, chunkPosition{
			action:  action,
			batchID: out.BatchID,
			index:   i + 1,
			total:   len(chunks),
		})
		out.merge(result)

		progress := BatchProgress{
			BatchIndex:     i + 1,
			TotalBatches:   len(chunks),
			Rows:           result.TotalRows,
			Created:        result.Created,
			Updated:        result.Updated,
			Failed:         result.Failed,
			DurationMillis: result.DurationMillis,
		}
		if len(result.AuditEntryIDs) > 0 {
			progress.AuditEntryID = result.AuditEntryIDs[0]
		}
		out.Progress = append(out.Progress, progress)
		if onBatch != nil {
			onBatch(progress)
		}
		if err != nil {
			out.finalize(opts)
			return out, err
		}
	}
	out.finalize(opts)
	return out, nil
}

// RetryFailedRows re-runs only the rows named by retryable errors, with credential
// repair and continue-on-validation forced on.
func (e *importEngine) RetryFailedRows(ctx context.Context, ictx ImportContext, file ImportFile, errs []*domain.RecoverableError, fixes []Fix, opts domain.UpsertOptions) (RetryResult, error) {
	if problems := ValidateFixes(errs, fixes); len(problems) > 0 {
		return RetryResult{}, &FixValidationError{Problems: problems}
	}

	parsed, err := e.parse(ictx, file.Data)
	if err != nil {
		return RetryResult{}, err
	}

	targets := make(map[int]bool, len(errs))
	for _, re := range errs {
		if re.Retryable {
			targets[re.RowIndex] = true
		}
	}
	fixByRow := make(map[int]Fix, len(fixes))
	for _, fix := range fixes {
		fixByRow[fix.RowIndex] = fix
	}

	out := RetryResult{OriginalErrors: errs, RetriedRows: []int{}}
	rows := make([]domain.CandidateRow, 0, len(targets))
	for _, row := range parsed.Rows {
		if !targets[row.RowIndex] {
			continue
		}
		if fix, ok := fixByRow[row.RowIndex]; ok {
			applyFix(&row, fix)
		}
		rows = append(rows, row)
		out.RetriedRows = append(out.RetriedRows, row.RowIndex)
	}

	opts.AutoFixCredentials = true
	opts.ContinueOnValidationError = true
	if len(rows) == 0 {
		out.finalize(opts)
		return out, nil
	}
	if err := e.enrich(ctx, ictx, rows, opts); err != nil {
		return RetryResult{}, err
	}

	result, err := e.runChunk(ctx, ictx, file, rows, opts, chunkPosition{action: domain.AuditImportExecute, index: 1, total: 1})
	out.ExecutionResult = result
	out.finalize(opts)
	return out, err
}

func (e *importEngine) Rollback(ctx context.Context, ictx ImportContext, entryID string) (RollbackResult, error) {
	if strings.TrimSpace(ictx.TenantID) == "" {
		return RollbackResult{}, ErrMissingTenant
	}
	log := e.logger.WithFields(logrus.Fields{
		"tenant_id":      ictx.TenantID,
		"actor_id":       ictx.ActorID,
		"audit_entry_id": entryID,
	})

	result, err := e.journal.Rollback(ctx, ictx.TenantID, ictx.ActorID, entryID)
	var rejection *RollbackRejection
	switch {
	case errors.As(err, &rejection):
		observeRollback(string(rejection.Reason))
		log.WithField("reason", rejection.Reason).Info("rollback rejected")
		return RollbackResult{}, err
	case err != nil:
		observeRollback("error")
		log.WithError(err).Error("rollback failed")
		return RollbackResult{}, err
	}

	observeRollback("success")
	log.WithFields(logrus.Fields{
		"deleted":  result.DeletedRecords,
		"reverted": result.RevertedRecords,
		"skipped":  result.SkippedRecords,
	}).Info("import rolled back")
	return result, nil
}

func (e *importEngine) GetHistory(ctx context.Context, tenantID string) ([]domain.AuditEntry, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrMissingTenant
	}
	return e.journal.History(ctx, tenantID)
}

func (e *importEngine) GetStatistics(ctx context.Context, tenantID string) (Statistics, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Statistics{}, ErrMissingTenant
	}
	return e.journal.Statistics(ctx, tenantID)
}

type chunkPosition struct {
	action  domain.AuditAction
	batchID string
	index   int
	total   int
}

// runChunk hashes every credential of the chunk, writes rows one by one and appends one
// audit entry. With SkipOnError off the first failed write stops the loop; rows already
// written stay committed and are still journaled.
func (e *importEngine) runChunk(ctx context.Context, ictx ImportContext, file ImportFile, rows []domain.CandidateRow, opts domain.UpsertOptions, pos chunkPosition) (ExecutionResult, error) {
	started := e.now()
	var (
		result   ExecutionResult
		changes  domain.ChangeSet
		abortErr error
	)

	creds, err := e.hashers.Prepare(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("%w: prepare credentials: %w", ErrExecutionAborted, err)
	}

	for _, row := range rows {
		outcome, err := e.writer.WriteRow(ctx, ictx.TenantID, row, creds[row.RowIndex], opts)
		result.TotalRows++
		if err != nil {
			result.Failed++
			c := Categorize(err, row, e.now().UTC())
			result.addClassification(c)
			observeError(c)
			if row.Valid() && !opts.SkipOnError {
				abortErr = fmt.Errorf("%w: %w", ErrExecutionAborted, c.Err())
				break
			}
			continue
		}

		if outcome.Action == domain.ActionUpdate {
			result.Updated++
		} else {
			result.Created++
		}
		changes.Merge(outcome.Changes)
		if outcome.ManagerDropped {
			ref, _ := row.ManagerReference()
			warning := rowError(row, domain.KindManagerNotFound, fmt.Sprintf("manager %q not found; member written without a manager", ref.Value), true)
			warning.SuggestedFix = SuggestedFix(domain.KindManagerNotFound)
			result.Warnings = append(result.Warnings, warning)
		}
		if cred := creds[row.RowIndex]; cred.Repaired {
			result.RepairedCredentials = append(result.RepairedCredentials, RepairedCredential{
				RowIndex:   row.RowIndex,
				Login:      row.Login(),
				Credential: cred.Plain,
			})
		}
	}

	elapsed := e.now().Sub(started)
	result.DurationMillis = elapsed.Milliseconds()
	observeChunk(string(pos.action), elapsed.Seconds())
	observeRows(result.Created, result.Updated, result.Failed)

	log := e.logger.WithFields(logrus.Fields{
		"tenant_id": ictx.TenantID,
		"actor_id":  ictx.ActorID,
		"batch_id":  pos.batchID,
		"batch":     fmt.Sprintf("%d/%d", pos.index, pos.total),
		"created":   result.Created,
		"updated":   result.Updated,
		"failed":    result.Failed,
		"duration":  elapsed.String(),
	})

	snapshot := opts
	meta := e.fileMetadata(file, domain.AuditMetadata{
		TotalRows:      result.TotalRows,
		Created:        result.Created,
		Updated:        result.Updated,
		Failed:         result.Failed,
		DurationMillis: result.DurationMillis,
		Outcome:        outcomeOf(result, opts),
		Options:        &snapshot,
	})
	if pos.batchID != "" {
		meta.BatchID = pos.batchID
		meta.BatchIndex = pos.index
		meta.TotalBatches = pos.total
	}

	entry, err := e.journal.Record(ctx, domain.AuditEntry{
		TenantID:  ictx.TenantID,
		ActorID:   ictx.ActorID,
		Action:    pos.action,
		ChangeSet: changes,
		Metadata:  meta,
	})
	if err != nil {
		result.CriticalErrors = append(result.CriticalErrors, &domain.CriticalError{
			Kind:                   domain.KindInternal,
			Message:                err.Error(),
			Timestamp:              e.now().UTC(),
			RequiresOperatorAction: true,
		})
		log.WithError(err).Error("import chunk written but not journaled")
	} else {
		result.AuditEntryIDs = append(result.AuditEntryIDs, entry.ID)
		log = log.WithField("audit_entry_id", entry.ID)
	}

	if abortErr != nil {
		log.WithError(abortErr).Warn("import chunk aborted")
	} else {
		log.Info("import chunk written")
	}
	return result, abortErr
}

func (e *importEngine) fileMetadata(file ImportFile, meta domain.AuditMetadata) domain.AuditMetadata {
	sum := sha256.Sum256(file.Data)
	meta.FileName = file.Name
	meta.FileSize = int64(len(file.Data))
	meta.FileChecksum = hex.EncodeToString(sum[:])
	return meta
}

func (r *ExecutionResult) addClassification(c Classification) {
	if c.Critical != nil {
		r.CriticalErrors = append(r.CriticalErrors, c.Critical)
	}
	if c.Recoverable != nil {
		r.RecoverableErrors = append(r.RecoverableErrors, c.Recoverable)
	}
}

func (r *ExecutionResult) merge(other ExecutionResult) {
	r.TotalRows += other.TotalRows
	r.Created += other.Created
	r.Updated += other.Updated
	r.Failed += other.Failed
	r.RecoverableErrors = append(r.RecoverableErrors, other.RecoverableErrors...)
	r.CriticalErrors = append(r.CriticalErrors, other.CriticalErrors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.RepairedCredentials = append(r.RepairedCredentials, other.RepairedCredentials...)
	r.AuditEntryIDs = append(r.AuditEntryIDs, other.AuditEntryIDs...)
	r.DurationMillis += other.DurationMillis
}

func (r *ExecutionResult) finalize(opts domain.UpsertOptions) {
	r.Outcome = outcomeOf(*r, opts)
	r.Success = r.Outcome != OutcomeFailed
	r.Errors = make([]string, 0, len(r.RecoverableErrors)+len(r.CriticalErrors))
	for _, re := range r.RecoverableErrors {
		r.Errors = append(r.Errors, re.Error())
	}
	for _, ce := range r.CriticalErrors {
		r.Errors = append(r.Errors, ce.Error())
	}
}

// outcomeOf labels partial success explicitly: some rows written, some failed, and
// skipping failed rows was allowed.
func outcomeOf(r ExecutionResult, opts domain.UpsertOptions) string {
	switch {
	case r.Failed == 0 && len(r.CriticalErrors) == 0:
		return OutcomeSuccess
	case (r.Created > 0 || r.Updated > 0) && opts.SkipOnError:
		return OutcomePartialSuccess
	case r.Failed == 0:
		return OutcomeSuccess
	}
	return OutcomeFailed
}
