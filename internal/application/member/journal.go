package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

type RollbackReason string

const (
	RollbackNotFound          RollbackReason = "not_found"
	RollbackWrongTenant       RollbackReason = "wrong_tenant"
	RollbackNotRollbackable   RollbackReason = "not_rollbackable"
	RollbackExpired           RollbackReason = "expired"
	RollbackAlreadyRolledBack RollbackReason = "already_rolled_back"
)

// RollbackRejection is returned when a precondition fails. Nothing was mutated.
type RollbackRejection struct {
	EntryID string         `json:"entry_id"`
	Reason  RollbackReason `json:"reason"`
}

func (r *RollbackRejection) Error() string {
	return fmt.Sprintf("rollback of %s rejected: %s", r.EntryID, r.Reason)
}

type RollbackResult struct {
	RollbackEntryID   string `json:"rollback_entry_id"`
	OriginalEntryID   string `json:"original_entry_id"`
	RolledBackRecords int    `json:"rolled_back_records"`
	DeletedRecords    int    `json:"deleted_records"`
	RevertedRecords   int    `json:"reverted_records"`
	SkippedRecords    int    `json:"skipped_records"`
}

type Statistics struct {
	TotalPreviews         int        `json:"total_previews"`
	TotalExecutions       int        `json:"total_executions"`
	TotalRollbacks        int        `json:"total_rollbacks"`
	RowsCreated           int        `json:"rows_created"`
	RowsUpdated           int        `json:"rows_updated"`
	RowsFailed            int        `json:"rows_failed"`
	SuccessRate           float64    `json:"success_rate"`
	AverageDurationMillis int64      `json:"average_duration_ms"`
	LastImportAt          *time.Time `json:"last_import_at,omitempty"`
	RollbackEligible      int        `json:"rollback_eligible"`
}

// Journal records executions and undoes them within the rollback window.
type Journal struct {
	entries      domain.AuditJournal
	directory    domain.DirectoryStore
	window       time.Duration
	historyLimit int
	now          func() time.Time
}

func NewJournal(entries domain.AuditJournal, directory domain.DirectoryStore, window time.Duration, historyLimit int) *Journal {
	return &Journal{
		entries:      entries,
		directory:    directory,
		window:       window,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

func (j *Journal) Record(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = j.now().UTC()
	}
	stored, err := j.entries.Append(ctx, entry)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("%w: append %s: %v", ErrAuditJournal, entry.Action, err)
	}
	return stored, nil
}

func (j *Journal) Rollback(ctx context.Context, tenantID, actorID, entryID string) (RollbackResult, error) {
	original, err := j.entries.Get(ctx, entryID)
	if errors.Is(err, domain.ErrAuditEntryNotFound) {
		return RollbackResult{}, &RollbackRejection{EntryID: entryID, Reason: RollbackNotFound}
	}
	if err != nil {
		return RollbackResult{}, fmt.Errorf("%w: %v", ErrAuditJournal, err)
	}

	switch {
	case original.TenantID != tenantID:
		return RollbackResult{}, &RollbackRejection{EntryID: entryID, Reason: RollbackWrongTenant}
	case !original.Action.IsExecute():
		return RollbackResult{}, &RollbackRejection{EntryID: entryID, Reason: RollbackNotRollbackable}
	case !original.WithinWindow(j.now(), j.window):
		return RollbackResult{}, &RollbackRejection{EntryID: entryID, Reason: RollbackExpired}
	}

	_, found, err := j.entries.FindRollbackOf(ctx, tenantID, entryID)
	if err != nil {
		return RollbackResult{}, fmt.Errorf("%w: %v", ErrAuditJournal, err)
	}
	if found {
		return RollbackResult{}, &RollbackRejection{EntryID: entryID, Reason: RollbackAlreadyRolledBack}
	}

	started := j.now()
	result := RollbackResult{OriginalEntryID: entryID}
	err = j.directory.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		result = RollbackResult{OriginalEntryID: entryID}
		var reverted domain.ChangeSet

		for _, group := range revertGroups(original.ChangeSet) {
			if _, err := w.Get(ctx, tenantID, group.id); errors.Is(err, domain.ErrMemberNotFound) {
				result.SkippedRecords++
				continue
			} else if err != nil {
				return err
			}
			if err := w.Update(ctx, tenantID, group.id, group.changes); err != nil {
				return err
			}
			result.RevertedRecords++
			for _, c := range group.changes {
				reverted.RecordUpdate(c)
			}
		}

		created := original.ChangeSet.Created()
		for i := len(created) - 1; i >= 0; i-- {
			err := w.Delete(ctx, tenantID, created[i])
			if errors.Is(err, domain.ErrMemberNotFound) {
				result.SkippedRecords++
				continue
			}
			if err != nil {
				return err
			}
			result.DeletedRecords++
		}
		result.RolledBackRecords = result.DeletedRecords + result.RevertedRecords

		entry, err := j.entries.Append(ctx, domain.AuditEntry{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			ActorID:    actorID,
			Action:     domain.AuditImportRollback,
			Timestamp:  j.now().UTC(),
			RollbackOf: entryID,
			ChangeSet:  reverted,
			Metadata: domain.AuditMetadata{
				DeletedRecords:  result.DeletedRecords,
				RevertedRecords: result.RevertedRecords,
				SkippedRecords:  result.SkippedRecords,
				DurationMillis:  j.now().Sub(started).Milliseconds(),
			},
		})
		if err != nil {
			return err
		}
		result.RollbackEntryID = entry.ID
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyRolledBack) {
		return RollbackResult{}, &RollbackRejection{EntryID: entryID, Reason: RollbackAlreadyRolledBack}
	}
	if err != nil {
		return RollbackResult{}, fmt.Errorf("%w: %w", ErrRollbackFailed, err)
	}
	return result, nil
}

type revertGroup struct {
	id      string
	changes []domain.FieldUpdated
}

// revertGroups walks updates newest first and inverts them per record, leaving
// credential fields untouched.
func revertGroups(cs domain.ChangeSet) []revertGroup {
	updates := cs.Updated()
	index := make(map[string]int)
	var groups []revertGroup
	for i := len(updates) - 1; i >= 0; i-- {
		u := updates[i]
		if u.Field.IsCredential() {
			continue
		}
		pos, ok := index[u.ID]
		if !ok {
			pos = len(groups)
			index[u.ID] = pos
			groups = append(groups, revertGroup{id: u.ID})
		}
		groups[pos].changes = append(groups[pos].changes, domain.FieldUpdated{
			ID:       u.ID,
			Field:    u.Field,
			OldValue: u.NewValue,
			NewValue: u.OldValue,
		})
	}
	return groups
}

func (j *Journal) History(ctx context.Context, tenantID string) ([]domain.AuditEntry, error) {
	entries, err := j.entries.List(ctx, tenantID, j.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditJournal, err)
	}
	return entries, nil
}

func (j *Journal) Statistics(ctx context.Context, tenantID string) (Statistics, error) {
	entries, err := j.entries.List(ctx, tenantID, 0)
	if err != nil {
		return Statistics{}, fmt.Errorf("%w: %v", ErrAuditJournal, err)
	}

	var (
		stats         Statistics
		totalDuration int64
		rolledBack    = make(map[string]bool)
		executions    = make(map[string]bool)
		now           = j.now()
	)
	for _, e := range entries {
		if e.Action == domain.AuditImportRollback {
			rolledBack[e.RollbackOf] = true
		}
	}

	for _, e := range entries {
		switch {
		case e.Action == domain.AuditImportPreview:
			stats.TotalPreviews++
		case e.Action == domain.AuditImportRollback:
			stats.TotalRollbacks++
		case e.Action.IsExecute():
			// Chunks of one batched run share a batch id and count as one execution.
			key := e.ID
			if e.Metadata.BatchID != "" {
				key = e.Metadata.BatchID
			}
			executions[key] = true
			stats.RowsCreated += e.Metadata.Created
			stats.RowsUpdated += e.Metadata.Updated
			stats.RowsFailed += e.Metadata.Failed
			totalDuration += e.Metadata.DurationMillis
			if stats.LastImportAt == nil || e.Timestamp.After(*stats.LastImportAt) {
				ts := e.Timestamp
				stats.LastImportAt = &ts
			}
			if !rolledBack[e.ID] && e.WithinWindow(now, j.window) {
				stats.RollbackEligible++
			}
		}
	}

	stats.TotalExecutions = len(executions)
	if stats.TotalExecutions > 0 {
		stats.AverageDurationMillis = totalDuration / int64(stats.TotalExecutions)
	}
	if processed := stats.RowsCreated + stats.RowsUpdated + stats.RowsFailed; processed > 0 {
		stats.SuccessRate = float64(stats.RowsCreated+stats.RowsUpdated) / float64(processed)
	}
	return stats, nil
}
