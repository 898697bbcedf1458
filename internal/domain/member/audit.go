package member

import (
	"encoding/json"
	"fmt"
	"time"
)

type AuditAction string

const (
	AuditImportPreview      AuditAction = "import_preview"
	AuditImportExecute      AuditAction = "import_execute"
	AuditImportBatchExecute AuditAction = "import_batch_execute"
	AuditImportRollback     AuditAction = "import_rollback"
)

// IsExecute reports whether entries with this action mutated the directory and can be rolled back.
func (a AuditAction) IsExecute() bool {
	return a == AuditImportExecute || a == AuditImportBatchExecute
}

// RedactedValue replaces credential material in recorded diffs.
const RedactedValue = "[redacted]"

// Change is one fact of a change-set: either Created or FieldUpdated.
type Change interface {
	RecordID() string
	isChange()
}

type Created struct {
	ID string
}

func (c Created) RecordID() string { return c.ID }
func (Created) isChange()          {}

type FieldUpdated struct {
	ID       string `json:"record_id"`
	Field    Field  `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

func (u FieldUpdated) RecordID() string { return u.ID }
func (FieldUpdated) isChange()          {}

type ChangeSet struct {
	Changes []Change
}

func (c *ChangeSet) RecordCreated(id string) {
	c.Changes = append(c.Changes, Created{ID: id})
}

func (c *ChangeSet) RecordUpdate(u FieldUpdated) {
	c.Changes = append(c.Changes, u)
}

func (c *ChangeSet) Merge(other ChangeSet) {
	c.Changes = append(c.Changes, other.Changes...)
}

func (c ChangeSet) Created() []string {
	var out []string
	for _, ch := range c.Changes {
		if created, ok := ch.(Created); ok {
			out = append(out, created.ID)
		}
	}
	return out
}

func (c ChangeSet) Updated() []FieldUpdated {
	var out []FieldUpdated
	for _, ch := range c.Changes {
		if updated, ok := ch.(FieldUpdated); ok {
			out = append(out, updated)
		}
	}
	return out
}

func (c ChangeSet) IsEmpty() bool {
	return len(c.Changes) == 0
}

type changeSetJSON struct {
	Created []string       `json:"created"`
	Updated []FieldUpdated `json:"updated"`
}

func (c ChangeSet) MarshalJSON() ([]byte, error) {
	out := changeSetJSON{Created: []string{}, Updated: []FieldUpdated{}}
	for _, ch := range c.Changes {
		switch v := ch.(type) {
		case Created:
			out.Created = append(out.Created, v.ID)
		case FieldUpdated:
			out.Updated = append(out.Updated, v)
		default:
			return nil, fmt.Errorf("unsupported change %T", ch)
		}
	}
	return json.Marshal(out)
}

func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	var in changeSetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Changes = make([]Change, 0, len(in.Created)+len(in.Updated))
	for _, id := range in.Created {
		c.Changes = append(c.Changes, Created{ID: id})
	}
	for _, u := range in.Updated {
		c.Changes = append(c.Changes, u)
	}
	return nil
}

type AuditMetadata struct {
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	FileChecksum string `json:"file_checksum,omitempty"`

	TotalRows      int    `json:"total_rows"`
	Created        int    `json:"created"`
	Updated        int    `json:"updated"`
	Failed         int    `json:"failed"`
	DurationMillis int64  `json:"duration_ms"`
	Outcome        string `json:"outcome,omitempty"`

	BatchID      string `json:"batch_id,omitempty"`
	BatchIndex   int    `json:"batch_index,omitempty"`
	TotalBatches int    `json:"total_batches,omitempty"`

	Options *UpsertOptions `json:"options,omitempty"`

	DeletedRecords  int `json:"deleted_records,omitempty"`
	RevertedRecords int `json:"reverted_records,omitempty"`
	SkippedRecords  int `json:"skipped_records,omitempty"`
}

// AuditEntry is append-only. Rollback appends a new entry with RollbackOf set.
type AuditEntry struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenant_id"`
	ActorID    string        `json:"actor_id"`
	Action     AuditAction   `json:"action"`
	Timestamp  time.Time     `json:"timestamp"`
	Metadata   AuditMetadata `json:"metadata"`
	ChangeSet  ChangeSet     `json:"change_set"`
	RollbackOf string        `json:"rollback_of,omitempty"`
}

// WithinWindow reports whether the entry is young enough to be rolled back at now.
func (e AuditEntry) WithinWindow(now time.Time, window time.Duration) bool {
	return now.Sub(e.Timestamp) <= window
}
