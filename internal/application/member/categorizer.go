package member

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

// Classification holds exactly one of Recoverable or Critical.
type Classification struct {
	Recoverable *domain.RecoverableError
	Critical    *domain.CriticalError
}

func (c Classification) Err() error {
	if c.Critical != nil {
		return c.Critical
	}
	return c.Recoverable
}

var (
	storePatterns      = []string{"connection", "connect:", "unavailable", "timeout", "deadline exceeded", "broken pipe", "too many clients", "database is locked"}
	permissionPatterns = []string{"permission", "denied", "forbidden", "unauthorized", "not authorized"}
	credentialPatterns = []string{"password", "pin ", "pin must", "credential"}
	duplicatePatterns  = []string{"duplicate", "unique", "already exists"}
	managerPatterns    = []string{"manager"}
)

var suggestedFixes = map[domain.RecoverableKind]string{
	domain.KindValidation:      "correct the row's values and retry",
	domain.KindDuplicate:       "change the email, username, employee id or person id so it is unique within the tenant",
	domain.KindManagerNotFound: "reference an existing manager or admin, or drop the manager reference",
	domain.KindWeakCredential:  "supply a compliant credential or retry with credential auto-repair",
}

func SuggestedFix(kind domain.RecoverableKind) string {
	return suggestedFixes[kind]
}

// Categorize maps any failure of a row to one recoverable or critical error. It is total
// and depends only on its arguments.
func Categorize(err error, row domain.CandidateRow, at time.Time) Classification {
	var recoverable *domain.RecoverableError
	if errors.As(err, &recoverable) {
		out := *recoverable
		if out.SuggestedFix == "" {
			out.SuggestedFix = SuggestedFix(out.Kind)
		}
		return Classification{Recoverable: &out}
	}
	var fatal *domain.CriticalError
	if errors.As(err, &fatal) {
		out := *fatal
		return Classification{Critical: &out}
	}

	message := "unknown failure"
	if err != nil {
		message = err.Error()
	}
	lower := strings.ToLower(message)

	switch {
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded), containsAny(lower, storePatterns):
		return critical(row, domain.KindStoreUnavailable, message, at)
	case errors.Is(err, domain.ErrPermissionDenied), containsAny(lower, permissionPatterns):
		return critical(row, domain.KindPermissionDenied, message, at)
	case errors.Is(err, domain.ErrInternal), errors.Is(err, domain.ErrCredentialHashing), errors.Is(err, context.Canceled):
		return critical(row, domain.KindInternal, message, at)
	case errors.Is(err, domain.ErrWeakCredential), containsAny(lower, credentialPatterns):
		return recoverableFor(row, domain.KindWeakCredential, message, true)
	case errors.Is(err, domain.ErrDuplicateIdentifier), containsAny(lower, duplicatePatterns):
		return recoverableFor(row, domain.KindDuplicate, message, true)
	case errors.Is(err, domain.ErrManagerReference), containsAny(lower, managerPatterns):
		return recoverableFor(row, domain.KindManagerNotFound, message, true)
	}
	return recoverableFor(row, domain.KindValidation, message, true)
}

// ViolationError turns a row's validation violations into one recoverable error whose kind
// follows the first violation that has a specific kind.
func ViolationError(row domain.CandidateRow) *domain.RecoverableError {
	kind := domain.KindValidation
	retryable := true
	messages := make([]string, 0, len(row.Violations))
	for _, v := range row.Violations {
		messages = append(messages, v.Message)
		if v.Code == domain.ViolationArchived {
			retryable = false
		}
		if kind != domain.KindValidation {
			continue
		}
		switch v.Code {
		case domain.ViolationDuplicate:
			kind = domain.KindDuplicate
		case domain.ViolationCredential:
			kind = domain.KindWeakCredential
		case domain.ViolationManager:
			kind = domain.KindManagerNotFound
		}
	}
	err := rowError(row, kind, strings.Join(messages, "; "), retryable)
	err.SuggestedFix = SuggestedFix(kind)
	return err
}

func critical(row domain.CandidateRow, kind domain.CriticalKind, message string, at time.Time) Classification {
	return Classification{Critical: &domain.CriticalError{
		RowIndex:               row.RowIndex,
		Kind:                   kind,
		Message:                message,
		Timestamp:              at,
		RequiresOperatorAction: true,
	}}
}

func recoverableFor(row domain.CandidateRow, kind domain.RecoverableKind, message string, retryable bool) Classification {
	err := rowError(row, kind, message, retryable)
	err.SuggestedFix = SuggestedFix(kind)
	return Classification{Recoverable: err}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
