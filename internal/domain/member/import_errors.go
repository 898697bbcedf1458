package member

import (
	"fmt"
	"time"
)

type RecoverableKind string

const (
	KindValidation      RecoverableKind = "validation"
	KindDuplicate       RecoverableKind = "duplicate"
	KindManagerNotFound RecoverableKind = "manager_not_found"
	KindWeakCredential  RecoverableKind = "weak_credential"
)

type CriticalKind string

const (
	KindStoreUnavailable CriticalKind = "store_unavailable"
	KindPermissionDenied CriticalKind = "permission_denied"
	KindInternal         CriticalKind = "internal"
)

// RecoverableError is a per-row failure the operator can fix in the input and retry.
type RecoverableError struct {
	RowIndex     int             `json:"row_index"`
	Name         string          `json:"name"`
	Email        string          `json:"email,omitempty"`
	Username     string          `json:"username,omitempty"`
	Kind         RecoverableKind `json:"kind"`
	Message      string          `json:"message"`
	SuggestedFix string          `json:"suggested_fix,omitempty"`
	Retryable    bool            `json:"retryable"`
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.RowIndex, e.Kind, e.Message)
}

// CriticalError cannot be fixed by editing the input and always needs an operator.
type CriticalError struct {
	RowIndex               int          `json:"row_index,omitempty"`
	Kind                   CriticalKind `json:"kind"`
	Message                string       `json:"message"`
	Timestamp              time.Time    `json:"timestamp"`
	RequiresOperatorAction bool         `json:"requires_operator_action"`
}

func (e *CriticalError) Error() string {
	if e.RowIndex > 0 {
		return fmt.Sprintf("row %d: %s: %s", e.RowIndex, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
