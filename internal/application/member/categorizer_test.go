package member_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

func TestCategorizeIsTotal(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	row := domain.CandidateRow{RowIndex: 4, Name: "Alice", Email: "alice@example.com"}

	cases := []struct {
		name        string
		err         error
		critical    domain.CriticalKind
		recoverable domain.RecoverableKind
	}{
		{name: "store sentinel", err: fmt.Errorf("row 4: %w", domain.ErrStoreUnavailable), critical: domain.KindStoreUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, critical: domain.KindStoreUnavailable},
		{name: "connection text", err: errors.New("read tcp: connection reset by peer"), critical: domain.KindStoreUnavailable},
		{name: "permission sentinel", err: domain.ErrPermissionDenied, critical: domain.KindPermissionDenied},
		{name: "permission text", err: errors.New("ERROR: permission denied for table members"), critical: domain.KindPermissionDenied},
		{name: "internal", err: domain.ErrInternal, critical: domain.KindInternal},
		{name: "hashing", err: fmt.Errorf("%w: bcrypt: cost out of range", domain.ErrCredentialHashing), critical: domain.KindInternal},
		{name: "weak credential", err: domain.ErrWeakCredential, recoverable: domain.KindWeakCredential},
		{name: "password text", err: errors.New("password too short"), recoverable: domain.KindWeakCredential},
		{name: "duplicate sentinel", err: fmt.Errorf("insert: %w", domain.ErrDuplicateIdentifier), recoverable: domain.KindDuplicate},
		{name: "unique text", err: errors.New("UNIQUE constraint failed: members.email"), recoverable: domain.KindDuplicate},
		{name: "manager sentinel", err: domain.ErrManagerReference, recoverable: domain.KindManagerNotFound},
		{name: "anything else", err: errors.New("name too long"), recoverable: domain.KindValidation},
		{name: "nil", err: nil, recoverable: domain.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := app.Categorize(tc.err, row, at)
			require.True(t, (c.Critical == nil) != (c.Recoverable == nil), "exactly one classification")
			if tc.critical != "" {
				require.NotNil(t, c.Critical)
				assert.Equal(t, tc.critical, c.Critical.Kind)
				assert.True(t, c.Critical.RequiresOperatorAction)
				assert.Equal(t, at, c.Critical.Timestamp)
				assert.Equal(t, 4, c.Critical.RowIndex)
				return
			}
			require.NotNil(t, c.Recoverable)
			assert.Equal(t, tc.recoverable, c.Recoverable.Kind)
			assert.Equal(t, "alice@example.com", c.Recoverable.Email)
			assert.NotEmpty(t, c.Recoverable.SuggestedFix)
			assert.True(t, c.Recoverable.Retryable)
		})
	}
}

func TestCategorizePassesTypedErrorsThrough(t *testing.T) {
	t.Parallel()

	typed := &domain.RecoverableError{RowIndex: 2, Kind: domain.KindDuplicate, Message: "taken", Retryable: false}
	c := app.Categorize(fmt.Errorf("row 2: %w", typed), domain.CandidateRow{RowIndex: 2}, time.Now())
	require.NotNil(t, c.Recoverable)
	assert.Equal(t, "taken", c.Recoverable.Message)
	assert.False(t, c.Recoverable.Retryable)
	assert.Equal(t, app.SuggestedFix(domain.KindDuplicate), c.Recoverable.SuggestedFix)
	assert.Empty(t, typed.SuggestedFix, "input is not mutated")
}

func TestViolationErrorKind(t *testing.T) {
	t.Parallel()

	row := domain.CandidateRow{RowIndex: 3, Name: "Bob"}
	row.AddViolation(domain.ViolationRequired, "person id is required")
	row.AddViolation(domain.ViolationCredential, "password must be at least 8 characters")

	err := app.ViolationError(row)
	assert.Equal(t, domain.KindWeakCredential, err.Kind)
	assert.Equal(t, "person id is required; password must be at least 8 characters", err.Message)
	assert.True(t, err.Retryable)

	archived := domain.CandidateRow{RowIndex: 5}
	archived.AddViolation(domain.ViolationArchived, "archived")
	assert.False(t, app.ViolationError(archived).Retryable)
}
