package member

import "errors"

var (
	ErrMemberNotFound          = errors.New("member not found")
	ErrUnknownField            = errors.New("unknown member field")
	ErrInvalidStatusTransition = errors.New("invalid member status transition")

	// Store failures, translated from driver errors by the infrastructure layer.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrManagerReference    = errors.New("manager reference not resolvable")
	ErrStoreUnavailable    = errors.New("directory store unavailable")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInternal            = errors.New("internal error")

	ErrCredentialHashing = errors.New("credential hashing failed")
	ErrWeakCredential    = errors.New("credential does not satisfy policy")

	ErrAuditEntryNotFound = errors.New("audit entry not found")
	ErrAlreadyRolledBack  = errors.New("audit entry already rolled back")
)
