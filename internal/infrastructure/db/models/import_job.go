package models

import (
	"encoding/json"
	"time"
)

type ImportJob struct {
	ID                string          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	TenantID          string          `gorm:"type:text;not null"`
	TenantCode        string          `gorm:"type:text;not null;default:''"`
	ActorID           string          `gorm:"type:text;not null;default:''"`
	SourcePath        string          `gorm:"type:text;not null"`
	Status            string          `gorm:"type:text;not null"`
	Options           json.RawMessage `gorm:"type:jsonb;not null"`
	ProgressProcessed int64           `gorm:"not null;default:0"`
	CreatedCount      int64           `gorm:"not null;default:0"`
	UpdatedCount      int64           `gorm:"not null;default:0"`
	FailedCount       int64           `gorm:"not null;default:0"`
	BatchesDone       int             `gorm:"not null;default:0"`
	TotalBatches      int             `gorm:"not null;default:0"`
	BatchID           *string         `gorm:"type:uuid"`
	Summary           json.RawMessage `gorm:"type:jsonb"`
	Attempts          int             `gorm:"not null;default:0"`
	MaxAttempts       int             `gorm:"not null;default:5"`
	ErrorMessage      *string         `gorm:"type:text"`
	HeartbeatAt       *time.Time
	LeaseExpiresAt    *time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ImportJob) TableName() string {
	return "import_jobs"
}
