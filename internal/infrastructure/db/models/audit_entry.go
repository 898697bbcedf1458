package models

import (
	"encoding/json"
	"time"
)

// AuditEntry rows are inserted once and never updated.
type AuditEntry struct {
	ID         string          `gorm:"type:uuid;primaryKey"`
	TenantID   string          `gorm:"type:text;not null"`
	ActorID    string          `gorm:"type:text;not null;default:''"`
	Action     string          `gorm:"type:text;not null"`
	OccurredAt time.Time       `gorm:"not null"`
	Metadata   json.RawMessage `gorm:"type:jsonb;not null"`
	ChangeSet  json.RawMessage `gorm:"type:jsonb;not null"`
	RollbackOf *string         `gorm:"type:uuid"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
