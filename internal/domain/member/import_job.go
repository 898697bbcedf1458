package member

type EnqueueImportJob struct {
	TenantID   string
	TenantCode string
	ActorID    string
	SourcePath string
	Options    UpsertOptions
}

type ImportJob struct {
	ID          string
	TenantID    string
	TenantCode  string
	ActorID     string
	SourcePath  string
	Status      string
	Options     UpsertOptions
	Attempts    int
	MaxAttempts int
}

type ImportFailure struct {
	RowIndex int64  `json:"row_index"`
	Reason   string `json:"reason"`
}

type ImportProgress struct {
	ProcessedCount int64
	CreatedCount   int64
	UpdatedCount   int64
	FailedCount    int64
	BatchesDone    int
	TotalBatches   int
}

type ImportSummary struct {
	ProcessedCount int64           `json:"processed_count"`
	CreatedCount   int64           `json:"created_count"`
	UpdatedCount   int64           `json:"updated_count"`
	FailedCount    int64           `json:"failed_count"`
	BatchID        string          `json:"batch_id,omitempty"`
	AuditEntryIDs  []string        `json:"audit_entry_ids,omitempty"`
	Failures       []ImportFailure `json:"failures,omitempty"`
}
