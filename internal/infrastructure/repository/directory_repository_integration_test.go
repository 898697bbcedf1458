package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/repository"
)

func newTestMember(tenantID, email, personID string, role domain.Role) domain.Member {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Member{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         "Member " + personID,
		Email:        email,
		Role:         role,
		PersonID:     personID,
		WorkerType:   domain.WorkerOffice,
		PasswordHash: "hash",
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestDirectoryRepositoryLifecycleIntegration(t *testing.T) {
	tdb := openTestDB(t)
	repo := repository.NewDirectoryRepository(tdb.pool)
	ctx := context.Background()
	tenantID := "tenant-" + uuid.NewString()

	manager := newTestMember(tenantID, "Boss@Example.com", "P-1", domain.RoleManager)
	report := newTestMember(tenantID, "report@example.com", "P-2", domain.RoleMember)
	report.ManagerID = manager.ID

	err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		if err := w.Insert(ctx, manager); err != nil {
			return err
		}
		return w.Insert(ctx, report)
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	found, err := repo.FindByIdentifier(ctx, tenantID, domain.Identifier{Kind: domain.IdentifierEmail, Value: "boss@example.com"})
	if err != nil {
		t.Fatalf("find by email failed: %v", err)
	}
	if found.ID != manager.ID {
		t.Fatalf("unexpected member: %s", found.ID)
	}

	if _, err := repo.FindManager(ctx, tenantID, domain.Identifier{Kind: domain.IdentifierPersonID, Value: "P-2"}); !errors.Is(err, domain.ErrMemberNotFound) {
		t.Fatalf("expected member role to be excluded from manager lookup, got %v", err)
	}
	if _, err := repo.FindByIdentifier(ctx, "other-tenant", domain.Identifier{Kind: domain.IdentifierPersonID, Value: "P-1"}); !errors.Is(err, domain.ErrMemberNotFound) {
		t.Fatalf("expected tenant isolation, got %v", err)
	}

	err = repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Update(ctx, tenantID, report.ID, []domain.FieldUpdated{
			{ID: report.ID, Field: domain.FieldDepartment, OldValue: "", NewValue: "Ops"},
			{ID: report.ID, Field: domain.FieldManagerID, OldValue: manager.ID, NewValue: ""},
		})
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	err = repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		got, err := w.Get(ctx, tenantID, report.ID)
		if err != nil {
			return err
		}
		if got.Department != "Ops" || got.ManagerID != "" {
			t.Fatalf("unexpected member after update: %+v", got)
		}
		return w.Delete(ctx, tenantID, report.ID)
	})
	if err != nil {
		t.Fatalf("get/delete failed: %v", err)
	}

	err = repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Delete(ctx, tenantID, report.ID)
	})
	if !errors.Is(err, domain.ErrMemberNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDirectoryRepositoryTranslatesConstraintErrorsIntegration(t *testing.T) {
	tdb := openTestDB(t)
	repo := repository.NewDirectoryRepository(tdb.pool)
	ctx := context.Background()
	tenantID := "tenant-" + uuid.NewString()

	first := newTestMember(tenantID, "dup@example.com", "P-1", domain.RoleMember)
	if err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Insert(ctx, first)
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	second := newTestMember(tenantID, "DUP@example.com", "P-2", domain.RoleMember)
	err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Insert(ctx, second)
	})
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier, got %v", err)
	}

	orphan := newTestMember(tenantID, "orphan@example.com", "P-3", domain.RoleMember)
	orphan.ManagerID = uuid.NewString()
	err = repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Insert(ctx, orphan)
	})
	if !errors.Is(err, domain.ErrManagerReference) {
		t.Fatalf("expected manager reference error, got %v", err)
	}
}

func TestDirectoryRepositoryRollsBackFailedTxIntegration(t *testing.T) {
	tdb := openTestDB(t)
	repo := repository.NewDirectoryRepository(tdb.pool)
	ctx := context.Background()
	tenantID := "tenant-" + uuid.NewString()

	m := newTestMember(tenantID, "tx@example.com", "P-1", domain.RoleMember)
	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		if err := w.Insert(ctx, m); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	if _, err := repo.FindByIdentifier(ctx, tenantID, domain.Identifier{Kind: domain.IdentifierEmail, Value: "tx@example.com"}); !errors.Is(err, domain.ErrMemberNotFound) {
		t.Fatalf("expected insert to be rolled back, got %v", err)
	}
}

func TestDirectoryRepositoryIdentifiersUniqueIgnoringCaseIntegration(t *testing.T) {
	tdb := openTestDB(t)
	repo := repository.NewDirectoryRepository(tdb.pool)
	ctx := context.Background()
	tenantID := "tenant-" + uuid.NewString()

	first := newTestMember(tenantID, "first@example.com", "PX-1", domain.RoleMember)
	first.EmployeeID = "E1"
	if err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Insert(ctx, first)
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	sameEmployee := newTestMember(tenantID, "second@example.com", "PX-2", domain.RoleMember)
	sameEmployee.EmployeeID = "e1"
	err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Insert(ctx, sameEmployee)
	})
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate employee id, got %v", err)
	}

	samePerson := newTestMember(tenantID, "third@example.com", "px-1", domain.RoleMember)
	err = repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		return w.Insert(ctx, samePerson)
	})
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate person id, got %v", err)
	}

	found, err := repo.FindByIdentifier(ctx, tenantID, domain.Identifier{Kind: domain.IdentifierEmployeeID, Value: "e1"})
	if err != nil || found.ID != first.ID {
		t.Fatalf("expected lookup to ignore case, got %+v err=%v", found, err)
	}
}

func TestDirectoryRepositoryRejectsMalformedMemberIDIntegration(t *testing.T) {
	tdb := openTestDB(t)
	repo := repository.NewDirectoryRepository(tdb.pool)
	ctx := context.Background()
	tenantID := "tenant-" + uuid.NewString()

	err := repo.WithinTx(ctx, func(ctx context.Context, w domain.DirectoryWriter) error {
		if _, err := w.Get(ctx, tenantID, "not-a-uuid"); !errors.Is(err, domain.ErrMemberNotFound) {
			t.Fatalf("expected get to report not found, got %v", err)
		}
		if err := w.Update(ctx, tenantID, "not-a-uuid", []domain.FieldUpdated{{Field: domain.FieldDepartment, NewValue: "Ops"}}); !errors.Is(err, domain.ErrMemberNotFound) {
			t.Fatalf("expected update to report not found, got %v", err)
		}
		if err := w.Delete(ctx, tenantID, "not-a-uuid"); !errors.Is(err, domain.ErrMemberNotFound) {
			t.Fatalf("expected delete to report not found, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}
