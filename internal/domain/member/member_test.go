package member_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	role, ok := domain.ParseRole(" Manager ")
	if !ok || role != domain.RoleManager {
		t.Fatalf("expected manager, got %q ok=%v", role, ok)
	}
	if _, ok := domain.ParseRole("owner"); ok {
		t.Fatal("expected owner to be rejected")
	}
	if domain.RoleMember.CanManage() {
		t.Fatal("member role must not manage")
	}
	if !domain.RoleAdmin.CanManage() {
		t.Fatal("admin role must manage")
	}
}

func TestParseWorkerTypeDefaultsToOffice(t *testing.T) {
	t.Parallel()

	wt, ok := domain.ParseWorkerType("")
	if !ok || wt != domain.WorkerOffice {
		t.Fatalf("expected office default, got %q", wt)
	}
	if _, ok := domain.ParseWorkerType("contractor"); ok {
		t.Fatal("expected contractor to be rejected")
	}
}

func TestMemberStatusTransitions(t *testing.T) {
	t.Parallel()

	m := domain.Member{Status: domain.StatusActive}
	if err := m.Reactivate(); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := m.Deactivate(); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := m.Reactivate(); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if err := m.Archive(); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := m.Archive(); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected archived to be terminal, got %v", err)
	}
	if err := m.Reactivate(); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected archived member to stay archived, got %v", err)
	}
}

func TestMemberSetAndValue(t *testing.T) {
	t.Parallel()

	var m domain.Member
	if err := m.Set(domain.FieldDepartment, "Ops"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if m.Value(domain.FieldDepartment) != "Ops" {
		t.Fatalf("unexpected department %q", m.Department)
	}
	if err := m.Set(domain.Field("salary"), "1"); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestUpsertOptionsUpdatable(t *testing.T) {
	t.Parallel()

	opts := domain.DefaultUpsertOptions()
	if opts.Updatable(domain.FieldEmail) {
		t.Fatal("email is not in the default allowlist")
	}
	if !opts.Updatable(domain.FieldPasswordHash) {
		t.Fatal("credential fields are always updatable")
	}

	opts.UpdatableFields = []domain.Field{domain.FieldEmail}
	if !opts.Updatable(domain.FieldEmail) {
		t.Fatal("explicit allowlist must be honored")
	}
	if opts.Updatable(domain.FieldName) {
		t.Fatal("name is outside the explicit allowlist")
	}
}

func TestCandidateRowIdentifiersPriority(t *testing.T) {
	t.Parallel()

	row := domain.CandidateRow{PersonID: "P-1", Username: "alice", EmployeeID: "E-9"}
	ids := row.Identifiers()
	if len(ids) != 3 {
		t.Fatalf("expected 3 identifiers, got %d", len(ids))
	}
	if ids[0].Kind != domain.IdentifierUsername || ids[1].Kind != domain.IdentifierEmployeeID || ids[2].Kind != domain.IdentifierPersonID {
		t.Fatalf("unexpected order: %+v", ids)
	}

	row.ManagerPersonID = "P-2"
	row.ManagerEmployeeID = "E-2"
	ref, ok := row.ManagerReference()
	if !ok || ref.Kind != domain.IdentifierEmployeeID {
		t.Fatalf("expected employee id manager reference, got %+v", ref)
	}
}

func TestChangeSetJSONRoundTrip(t *testing.T) {
	t.Parallel()

	var cs domain.ChangeSet
	cs.RecordCreated("m-1")
	cs.RecordUpdate(domain.FieldUpdated{ID: "m-2", Field: domain.FieldDepartment, OldValue: "A", NewValue: "B"})

	raw, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"created":["m-1"],"updated":[{"record_id":"m-2","field":"department","old_value":"A","new_value":"B"}]}`
	if string(raw) != want {
		t.Fatalf("unexpected json:\n%s", raw)
	}

	var decoded domain.ChangeSet
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := decoded.Created(); len(got) != 1 || got[0] != "m-1" {
		t.Fatalf("unexpected created: %v", got)
	}
	if got := decoded.Updated(); len(got) != 1 || got[0].NewValue != "B" {
		t.Fatalf("unexpected updated: %v", got)
	}
}

func TestAuditEntryWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	entry := domain.AuditEntry{Action: domain.AuditImportExecute, Timestamp: now.Add(-23 * time.Hour)}
	if !entry.WithinWindow(now, 24*time.Hour) {
		t.Fatal("expected entry inside window")
	}
	entry.Timestamp = now.Add(-25 * time.Hour)
	if entry.WithinWindow(now, 24*time.Hour) {
		t.Fatal("expected entry outside window")
	}
	if domain.AuditImportPreview.IsExecute() || !domain.AuditImportBatchExecute.IsExecute() {
		t.Fatal("unexpected execute classification")
	}
}
