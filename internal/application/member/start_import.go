package member

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

var importExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
}

type StartImportInput struct {
	TenantID   string
	TenantCode string
	ActorID    string
	SourcePath string
	Options    domain.UpsertOptions
}

type StartImportOutput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type StartImport interface {
	Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error)
}

type startImport struct {
	importJobRepo domain.ImportJobRepository
}

func NewStartImport(importJobRepo domain.ImportJobRepository) StartImport {
	return &startImport{importJobRepo: importJobRepo}
}

func (uc *startImport) Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return StartImportOutput{}, ErrMissingTenant
	}
	sourcePath := strings.TrimSpace(in.SourcePath)
	if sourcePath == "" || !importExtensions[strings.ToLower(filepath.Ext(sourcePath))] {
		return StartImportOutput{}, ErrInvalidImportSource
	}

	jobID, err := uc.importJobRepo.Enqueue(ctx, domain.EnqueueImportJob{
		TenantID:   in.TenantID,
		TenantCode: in.TenantCode,
		ActorID:    in.ActorID,
		SourcePath: sourcePath,
		Options:    in.Options,
	})
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrEnqueueImportJob, err)
	}

	return StartImportOutput{
		JobID:  jobID,
		Status: "queued",
	}, nil
}
