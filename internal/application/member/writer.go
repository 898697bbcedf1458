package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

// RowOutcome describes one successfully written row.
type RowOutcome struct {
	RowIndex int
	Action   domain.Action
	MemberID string
	// Changes is the audit view of the write; credential values are redacted.
	Changes domain.ChangeSet
	// ManagerDropped is set when the manager reference could not be resolved at write time.
	ManagerDropped bool
}

// TransactionalWriter writes one row per transaction so a failing row never rolls back
// its siblings.
type TransactionalWriter struct {
	store  domain.DirectoryStore
	hasher domain.CredentialHasher
	newID  func() string
	now    func() time.Time
}

func NewTransactionalWriter(store domain.DirectoryStore, hasher domain.CredentialHasher) *TransactionalWriter {
	return &TransactionalWriter{
		store:  store,
		hasher: hasher,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

func (w *TransactionalWriter) WriteRow(ctx context.Context, tenantID string, row domain.CandidateRow, cred PreparedCredential, opts domain.UpsertOptions) (RowOutcome, error) {
	if !row.Valid() {
		return RowOutcome{}, ViolationError(row)
	}
	if row.Action != domain.ActionCreate && row.Action != domain.ActionUpdate {
		return RowOutcome{}, fmt.Errorf("%w: row %d has no resolved action", domain.ErrInternal, row.RowIndex)
	}
	if reason := actionDisabled(row.Action, opts); reason != "" {
		return RowOutcome{}, rowError(row, domain.KindValidation, reason, false)
	}
	if cred.Err != nil {
		return RowOutcome{}, fmt.Errorf("row %d: %w", row.RowIndex, cred.Err)
	}

	outcome := RowOutcome{RowIndex: row.RowIndex, Action: row.Action}
	err := w.store.WithinTx(ctx, func(ctx context.Context, tx domain.DirectoryWriter) error {
		managerID, dropped, err := w.managerID(ctx, tenantID, tx, row)
		if err != nil {
			return err
		}
		outcome.ManagerDropped = dropped

		if row.Action == domain.ActionCreate {
			return w.create(ctx, tenantID, tx, row, cred, managerID, &outcome)
		}
		return w.update(ctx, tenantID, tx, row, cred, managerID, opts, &outcome)
	})
	if err != nil {
		return RowOutcome{}, fmt.Errorf("row %d: %w", row.RowIndex, err)
	}
	return outcome, nil
}

// managerID re-resolves the reference inside the transaction so managers created
// earlier in the same import are found.
func (w *TransactionalWriter) managerID(ctx context.Context, tenantID string, tx domain.DirectoryWriter, row domain.CandidateRow) (string, bool, error) {
	if row.ManagerFound {
		return row.ManagerID, false, nil
	}
	ref, ok := row.ManagerReference()
	if !ok {
		return "", false, nil
	}
	manager, err := tx.FindManager(ctx, tenantID, ref)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	return manager.ID, false, nil
}

func (w *TransactionalWriter) create(ctx context.Context, tenantID string, tx domain.DirectoryWriter, row domain.CandidateRow, cred PreparedCredential, managerID string, outcome *RowOutcome) error {
	role, _ := domain.ParseRole(row.Role)
	now := w.now().UTC()
	m := domain.Member{
		ID:           w.newID(),
		TenantID:     tenantID,
		Name:         row.Name,
		Email:        row.Email,
		Username:     row.Username,
		Role:         role,
		Department:   row.Department,
		Position:     row.Position,
		Shift:        row.Shift,
		EmployeeID:   row.EmployeeID,
		PersonID:     row.PersonID,
		ManagerID:    managerID,
		WorkerType:   cred.WorkerType,
		PasswordHash: cred.PasswordHash,
		PIN:          cred.PIN,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Insert(ctx, m); err != nil {
		return err
	}
	outcome.MemberID = m.ID
	outcome.Changes.RecordCreated(m.ID)
	return nil
}

func (w *TransactionalWriter) update(ctx context.Context, tenantID string, tx domain.DirectoryWriter, row domain.CandidateRow, cred PreparedCredential, managerID string, opts domain.UpsertOptions, outcome *RowOutcome) error {
	current, err := tx.Get(ctx, tenantID, row.ExistingID)
	if err != nil {
		return err
	}
	if current.IsArchived() {
		return rowError(row, domain.KindValidation, "member is archived and cannot be updated by import", false)
	}
	outcome.MemberID = current.ID

	diffs := diffMember(current, desiredValues(row, cred, managerID), opts)
	diffs = append(diffs, w.credentialDiffs(current, cred)...)
	if len(diffs) == 0 {
		return nil
	}
	if err := tx.Update(ctx, tenantID, current.ID, diffs); err != nil {
		return err
	}
	for _, d := range diffs {
		if d.Field.IsCredential() {
			d.OldValue, d.NewValue = domain.RedactedValue, domain.RedactedValue
		}
		outcome.Changes.RecordUpdate(d)
	}
	return nil
}

// desiredValues lists the non-credential fields the row supplies. Empty optional
// columns leave the stored value alone.
func desiredValues(row domain.CandidateRow, cred PreparedCredential, managerID string) map[domain.Field]string {
	role, _ := domain.ParseRole(row.Role)
	values := map[domain.Field]string{
		domain.FieldName:       row.Name,
		domain.FieldEmail:      row.Email,
		domain.FieldUsername:   row.Username,
		domain.FieldRole:       string(role),
		domain.FieldDepartment: row.Department,
		domain.FieldPosition:   row.Position,
		domain.FieldShift:      row.Shift,
		domain.FieldEmployeeID: row.EmployeeID,
		domain.FieldPersonID:   row.PersonID,
		domain.FieldManagerID:  managerID,
		domain.FieldWorkerType: string(cred.WorkerType),
	}
	for f, v := range values {
		if v == "" {
			delete(values, f)
		}
	}
	return values
}

var diffOrder = []domain.Field{
	domain.FieldName,
	domain.FieldEmail,
	domain.FieldUsername,
	domain.FieldRole,
	domain.FieldDepartment,
	domain.FieldPosition,
	domain.FieldShift,
	domain.FieldEmployeeID,
	domain.FieldPersonID,
	domain.FieldManagerID,
	domain.FieldWorkerType,
}

func diffMember(current domain.Member, desired map[domain.Field]string, opts domain.UpsertOptions) []domain.FieldUpdated {
	var diffs []domain.FieldUpdated
	for _, f := range diffOrder {
		next, ok := desired[f]
		if !ok || !opts.Updatable(f) {
			continue
		}
		if prev := current.Value(f); prev != next {
			diffs = append(diffs, domain.FieldUpdated{ID: current.ID, Field: f, OldValue: prev, NewValue: next})
		}
	}
	return diffs
}

func (w *TransactionalWriter) credentialDiffs(current domain.Member, cred PreparedCredential) []domain.FieldUpdated {
	if cred.WorkerType == domain.WorkerOperational {
		if current.PIN == cred.PIN {
			return nil
		}
		return []domain.FieldUpdated{{ID: current.ID, Field: domain.FieldPIN, OldValue: current.PIN, NewValue: cred.PIN}}
	}
	if current.PasswordHash != "" && w.hasher.Matches(current.PasswordHash, cred.Plain) {
		return nil
	}
	return []domain.FieldUpdated{{ID: current.ID, Field: domain.FieldPasswordHash, OldValue: current.PasswordHash, NewValue: cred.PasswordHash}}
}

func rowError(row domain.CandidateRow, kind domain.RecoverableKind, message string, retryable bool) *domain.RecoverableError {
	return &domain.RecoverableError{
		RowIndex:  row.RowIndex,
		Name:      row.Name,
		Email:     row.Email,
		Username:  row.Username,
		Kind:      kind,
		Message:   message,
		Retryable: retryable,
	}
}

// actionDisabled explains why opts forbid the action; it is empty when the action is allowed.
func actionDisabled(action domain.Action, opts domain.UpsertOptions) string {
	switch {
	case action == domain.ActionCreate && !opts.CreateNew:
		return "creating new members is disabled for this import"
	case action == domain.ActionUpdate && !opts.UpdateExisting:
		return "updating existing members is disabled for this import"
	}
	return ""
}
