package member

import "errors"

var (
	ErrInvalidImportSource = errors.New("invalid import source")
	ErrEnqueueImportJob    = errors.New("failed to enqueue import job")
	ErrInvalidMemberID     = errors.New("invalid member id")
	ErrMemberNotFound      = errors.New("member not found")
	ErrGetMemberByID       = errors.New("failed to get member by id")

	ErrMissingTenant    = errors.New("tenant is required")
	ErrMissingHeader    = errors.New("missing or unreadable header")
	ErrFileRejected     = errors.New("import file rejected")
	ErrValidationFailed = errors.New("rows failed validation")
	ErrExecutionAborted = errors.New("execution aborted")
	ErrInvalidFixes     = errors.New("fixes are not sufficient for retry")
	ErrResolveDirectory = errors.New("failed to resolve directory records")
	ErrAuditJournal     = errors.New("audit journal failure")
	ErrRollbackFailed   = errors.New("rollback failed")
)
