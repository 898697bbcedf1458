package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

// AuditJournalRepository stores audit entries append-only. The partial unique index on
// rollback_of settles concurrent rollbacks of the same entry. Appends made inside
// DirectoryRepository.WithinTx share its transaction.
type AuditJournalRepository struct {
	db *gorm.DB
}

func NewAuditJournalRepository(db *gorm.DB) *AuditJournalRepository {
	return &AuditJournalRepository{db: db}
}

func (r *AuditJournalRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	row, err := toAuditModel(entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}

	if tx, ok := txFromContext(ctx); ok {
		err = insertAuditEntry(ctx, tx, row)
	} else {
		err = r.db.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		if entry.RollbackOf != "" && isUniqueViolation(err) {
			return domain.AuditEntry{}, domain.ErrAlreadyRolledBack
		}
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", translateError(err))
	}
	return entry, nil
}

func insertAuditEntry(ctx context.Context, tx pgx.Tx, row models.AuditEntry) error {
	_, err := tx.Exec(ctx, `
INSERT INTO audit_entries (id, tenant_id, actor_id, action, occurred_at, metadata, change_set, rollback_of)
VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::uuid)`,
		row.ID, row.TenantID, row.ActorID, row.Action, row.OccurredAt,
		string(row.Metadata), string(row.ChangeSet), row.RollbackOf,
	)
	return err
}

func (r *AuditJournalRepository) Get(ctx context.Context, id string) (domain.AuditEntry, error) {
	var row models.AuditEntry
	err := r.db.WithContext(ctx).First(&row, "id::text = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AuditEntry{}, domain.ErrAuditEntryNotFound
		}
		return domain.AuditEntry{}, fmt.Errorf("get audit entry: %w", translateError(err))
	}
	return fromAuditModel(row)
}

func (r *AuditJournalRepository) FindRollbackOf(ctx context.Context, tenantID, entryID string) (domain.AuditEntry, bool, error) {
	var rows []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rollback_of::text = ?", tenantID, entryID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return domain.AuditEntry{}, false, fmt.Errorf("find rollback entry: %w", translateError(err))
	}
	if len(rows) == 0 {
		return domain.AuditEntry{}, false, nil
	}
	entry, err := fromAuditModel(rows[0])
	if err != nil {
		return domain.AuditEntry{}, false, err
	}
	return entry, true, nil
}

func (r *AuditJournalRepository) List(ctx context.Context, tenantID string, limit int) ([]domain.AuditEntry, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("occurred_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.AuditEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", translateError(err))
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := fromAuditModel(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toAuditModel(entry domain.AuditEntry) (models.AuditEntry, error) {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("encode audit metadata: %w", err)
	}
	changeSet, err := json.Marshal(entry.ChangeSet)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("encode audit change set: %w", err)
	}
	return models.AuditEntry{
		ID:         entry.ID,
		TenantID:   entry.TenantID,
		ActorID:    entry.ActorID,
		Action:     string(entry.Action),
		OccurredAt: entry.Timestamp.UTC(),
		Metadata:   metadata,
		ChangeSet:  changeSet,
		RollbackOf: nullableText(entry.RollbackOf),
	}, nil
}

func fromAuditModel(row models.AuditEntry) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ID:         row.ID,
		TenantID:   row.TenantID,
		ActorID:    row.ActorID,
		Action:     domain.AuditAction(row.Action),
		Timestamp:  row.OccurredAt.UTC(),
		RollbackOf: derefText(row.RollbackOf),
	}
	if err := json.Unmarshal(row.Metadata, &entry.Metadata); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("decode audit metadata %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.ChangeSet, &entry.ChangeSet); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("decode audit change set %s: %w", row.ID, err)
	}
	return entry, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
