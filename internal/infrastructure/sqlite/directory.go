package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

const memberColumns = `id, tenant_id, name, COALESCE(email, ''), COALESCE(username, ''), role,
  department, position, shift, COALESCE(employee_id, ''), person_id, COALESCE(manager_id, ''),
  worker_type, password_hash, pin, status, created_at, updated_at`

var identifierColumns = map[domain.IdentifierKind]string{
	domain.IdentifierEmail:      "email",
	domain.IdentifierUsername:   "username",
	domain.IdentifierEmployeeID: "employee_id",
	domain.IdentifierPersonID:   "person_id",
}

var updateExpressions = map[domain.Field]string{
	domain.FieldName:         "name = ?",
	domain.FieldEmail:        "email = NULLIF(?, '')",
	domain.FieldUsername:     "username = NULLIF(?, '')",
	domain.FieldRole:         "role = ?",
	domain.FieldDepartment:   "department = ?",
	domain.FieldPosition:     "position = ?",
	domain.FieldShift:        "shift = ?",
	domain.FieldEmployeeID:   "employee_id = NULLIF(?, '')",
	domain.FieldPersonID:     "person_id = ?",
	domain.FieldManagerID:    "manager_id = NULLIF(?, '')",
	domain.FieldWorkerType:   "worker_type = ?",
	domain.FieldPasswordHash: "password_hash = ?",
	domain.FieldPIN:          "pin = ?",
}

func (s *Store) FindByIdentifier(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, s.conn(ctx), tenantID, id, false)
}

func (s *Store) FindManager(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, s.conn(ctx), tenantID, id, true)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, w domain.DirectoryWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translateError(err))
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx), &directoryTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit directory tx: %w", translateError(err))
	}
	return nil
}

// GetByID serves member lookups for the CLI.
func (s *Store) GetByID(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	m, err := getMember(ctx, s.conn(ctx), tenantID, memberID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type directoryTx struct {
	tx *sql.Tx
}

func (t *directoryTx) FindByIdentifier(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, t.tx, tenantID, id, false)
}

func (t *directoryTx) FindManager(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, t.tx, tenantID, id, true)
}

func (t *directoryTx) Get(ctx context.Context, tenantID, id string) (domain.Member, error) {
	return getMember(ctx, t.tx, tenantID, id)
}

func (t *directoryTx) Insert(ctx context.Context, m domain.Member) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO members (
  id, tenant_id, name, email, username, role, department, position, shift,
  employee_id, person_id, manager_id, worker_type, password_hash, pin, status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TenantID, m.Name, nullable(m.Email), nullable(m.Username), string(m.Role),
		m.Department, m.Position, m.Shift, nullable(m.EmployeeID), m.PersonID, nullable(m.ManagerID),
		string(m.WorkerType), m.PasswordHash, m.PIN, string(m.Status), m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", translateError(err))
	}
	return nil
}

func (t *directoryTx) Update(ctx context.Context, tenantID, id string, changes []domain.FieldUpdated) error {
	if len(changes) == 0 {
		return nil
	}

	sets := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+3)
	for _, c := range changes {
		expr, ok := updateExpressions[c.Field]
		if !ok {
			return fmt.Errorf("update member: %w: %s", domain.ErrUnknownField, c.Field)
		}
		sets = append(sets, expr)
		args = append(args, c.NewValue)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, tenantID, id)

	res, err := t.tx.ExecContext(ctx,
		"UPDATE members SET "+strings.Join(sets, ", ")+" WHERE tenant_id = ? AND id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", translateError(err))
	}
	return requireAffected(res)
}

func (t *directoryTx) Delete(ctx context.Context, tenantID, id string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM members WHERE tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", translateError(err))
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func findMember(ctx context.Context, q queryer, tenantID string, id domain.Identifier, managersOnly bool) (domain.Member, error) {
	column, ok := identifierColumns[id.Kind]
	if !ok {
		return domain.Member{}, fmt.Errorf("find member: unsupported identifier %q", id.Kind)
	}

	query := "SELECT " + memberColumns + " FROM members WHERE tenant_id = ? AND lower(" + column + ") = lower(?)"
	if managersOnly {
		query += " AND role IN ('manager', 'admin')"
	}
	query += " ORDER BY created_at, id LIMIT 1"

	m, err := scanMember(q.QueryRowContext(ctx, query, tenantID, id.Value))
	if err != nil {
		return domain.Member{}, fmt.Errorf("find member by %s: %w", id.Kind, err)
	}
	return m, nil
}

func getMember(ctx context.Context, q queryer, tenantID, id string) (domain.Member, error) {
	row := q.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE tenant_id = ? AND id = ?", tenantID, id)
	m, err := scanMember(row)
	if err != nil {
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func scanMember(row *sql.Row) (domain.Member, error) {
	var (
		m          domain.Member
		role       string
		workerType string
		status     string
	)
	err := row.Scan(
		&m.ID, &m.TenantID, &m.Name, &m.Email, &m.Username, &role,
		&m.Department, &m.Position, &m.Shift, &m.EmployeeID, &m.PersonID, &m.ManagerID,
		&workerType, &m.PasswordHash, &m.PIN, &status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Member{}, domain.ErrMemberNotFound
		}
		return domain.Member{}, translateError(err)
	}
	m.Role = domain.Role(role)
	m.WorkerType = domain.WorkerType(workerType)
	m.Status = domain.Status(status)
	return m, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
