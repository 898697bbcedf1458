package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

const auditColumns = "id, tenant_id, actor_id, action, occurred_at, metadata, change_set, COALESCE(rollback_of, '')"

func (s *Store) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encode audit metadata: %w", err)
	}
	changeSet, err := json.Marshal(entry.ChangeSet)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("encode audit change set: %w", err)
	}

	_, err = s.conn(ctx).ExecContext(ctx, `
INSERT INTO audit_entries (id, tenant_id, actor_id, action, occurred_at, metadata, change_set, rollback_of)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TenantID, entry.ActorID, string(entry.Action), entry.Timestamp.UTC(),
		string(metadata), string(changeSet), nullable(entry.RollbackOf),
	)
	if err != nil {
		if entry.RollbackOf != "" && isUniqueViolation(err) {
			return domain.AuditEntry{}, domain.ErrAlreadyRolledBack
		}
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", translateError(err))
	}
	return entry, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.AuditEntry, error) {
	row := s.conn(ctx).QueryRowContext(ctx, "SELECT "+auditColumns+" FROM audit_entries WHERE id = ?", id)
	entry, err := scanAuditEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuditEntry{}, domain.ErrAuditEntryNotFound
	}
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("get audit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) FindRollbackOf(ctx context.Context, tenantID, entryID string) (domain.AuditEntry, bool, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		"SELECT "+auditColumns+" FROM audit_entries WHERE tenant_id = ? AND rollback_of = ?",
		tenantID, entryID,
	)
	entry, err := scanAuditEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuditEntry{}, false, nil
	}
	if err != nil {
		return domain.AuditEntry{}, false, fmt.Errorf("find rollback entry: %w", err)
	}
	return entry, true, nil
}

func (s *Store) List(ctx context.Context, tenantID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_entries WHERE tenant_id = ? ORDER BY occurred_at DESC, rowid DESC LIMIT ?",
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", translateError(err))
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list audit entries: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (domain.AuditEntry, error) {
	var (
		entry      domain.AuditEntry
		action     string
		occurredAt time.Time
		metadata   string
		changeSet  string
	)
	if err := row.Scan(&entry.ID, &entry.TenantID, &entry.ActorID, &action, &occurredAt, &metadata, &changeSet, &entry.RollbackOf); err != nil {
		return domain.AuditEntry{}, err
	}
	entry.Action = domain.AuditAction(action)
	entry.Timestamp = occurredAt.UTC()
	if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("decode audit metadata %s: %w", entry.ID, err)
	}
	if err := json.Unmarshal([]byte(changeSet), &entry.ChangeSet); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("decode audit change set %s: %w", entry.ID, err)
	}
	return entry, nil
}
