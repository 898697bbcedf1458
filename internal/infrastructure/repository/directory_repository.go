package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

const memberColumns = `id::text, tenant_id, name, COALESCE(email, ''), COALESCE(username, ''), role,
  department, position, shift, COALESCE(employee_id, ''), person_id, COALESCE(manager_id::text, ''),
  worker_type, password_hash, pin, status, created_at, updated_at`

var identifierPredicates = map[domain.IdentifierKind]string{
	domain.IdentifierEmail:      "lower(email) = lower($2)",
	domain.IdentifierUsername:   "lower(username) = lower($2)",
	domain.IdentifierEmployeeID: "lower(employee_id) = lower($2)",
	domain.IdentifierPersonID:   "lower(person_id) = lower($2)",
}

// updateExpressions maps updatable fields to their SET expression; %d is the bind position.
var updateExpressions = map[domain.Field]string{
	domain.FieldName:         "name = $%d",
	domain.FieldEmail:        "email = NULLIF($%d, '')",
	domain.FieldUsername:     "username = NULLIF($%d, '')",
	domain.FieldRole:         "role = $%d",
	domain.FieldDepartment:   "department = $%d",
	domain.FieldPosition:     "position = $%d",
	domain.FieldShift:        "shift = $%d",
	domain.FieldEmployeeID:   "employee_id = NULLIF($%d, '')",
	domain.FieldPersonID:     "person_id = $%d",
	domain.FieldManagerID:    "manager_id = NULLIF($%d, '')::uuid",
	domain.FieldWorkerType:   "worker_type = $%d",
	domain.FieldPasswordHash: "password_hash = $%d",
	domain.FieldPIN:          "pin = $%d",
}

type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DirectoryRepository is the Postgres directory store. Every statement is scoped by tenant.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) FindByIdentifier(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, r.pool, tenantID, id, false)
}

func (r *DirectoryRepository) FindManager(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, r.pool, tenantID, id, true)
}

func (r *DirectoryRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, w domain.DirectoryWriter) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translateError(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx), &directoryTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit directory tx: %w", translateError(err))
	}
	return nil
}

type txKey struct{}

// txFromContext returns the transaction opened by WithinTx, so a journal append made
// inside the callback commits or rolls back with the directory writes.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

type directoryTx struct {
	tx pgx.Tx
}

func (t *directoryTx) FindByIdentifier(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, t.tx, tenantID, id, false)
}

func (t *directoryTx) FindManager(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findMember(ctx, t.tx, tenantID, id, true)
}

func (t *directoryTx) Get(ctx context.Context, tenantID, id string) (domain.Member, error) {
	if !isMemberID(id) {
		return domain.Member{}, fmt.Errorf("get member: %w", domain.ErrMemberNotFound)
	}
	row := t.tx.QueryRow(ctx, "SELECT "+memberColumns+" FROM members WHERE tenant_id = $1 AND id = $2::uuid FOR UPDATE", tenantID, id)
	m, err := scanMember(row)
	if err != nil {
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (t *directoryTx) Insert(ctx context.Context, m domain.Member) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO members (
  id, tenant_id, name, email, username, role, department, position, shift,
  employee_id, person_id, manager_id, worker_type, password_hash, pin, status, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9,
  $10, $11, $12::uuid, $13, $14, $15, $16, $17, $18
)`,
		m.ID, m.TenantID, m.Name, nullableText(m.Email), nullableText(m.Username), string(m.Role),
		m.Department, m.Position, m.Shift, nullableText(m.EmployeeID), m.PersonID, nullableText(m.ManagerID),
		string(m.WorkerType), m.PasswordHash, m.PIN, string(m.Status), m.CreatedAt, m.UpdatedAt,
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
	if !isMemberID(id) {
		return domain.ErrMemberNotFound
	}

	sets := make([]string, 0, len(changes)+1)
	args := []any{tenantID, id}
	for _, c := range changes {
		expr, ok := updateExpressions[c.Field]
		if !ok {
			return fmt.Errorf("update member: %w: %s", domain.ErrUnknownField, c.Field)
		}
		args = append(args, c.NewValue)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	tag, err := t.tx.Exec(ctx,
		"UPDATE members SET "+strings.Join(sets, ", ")+" WHERE tenant_id = $1 AND id = $2::uuid",
		args...,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (t *directoryTx) Delete(ctx context.Context, tenantID, id string) error {
	if !isMemberID(id) {
		return domain.ErrMemberNotFound
	}
	tag, err := t.tx.Exec(ctx, "DELETE FROM members WHERE tenant_id = $1 AND id = $2::uuid", tenantID, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func findMember(ctx context.Context, q dbtx, tenantID string, id domain.Identifier, managersOnly bool) (domain.Member, error) {
	predicate, ok := identifierPredicates[id.Kind]
	if !ok {
		return domain.Member{}, fmt.Errorf("find member: unsupported identifier %q", id.Kind)
	}

	query := "SELECT " + memberColumns + " FROM members WHERE tenant_id = $1 AND " + predicate
	if managersOnly {
		query += " AND role IN ('manager', 'admin')"
	}
	query += " ORDER BY created_at, id LIMIT 1"

	m, err := scanMember(q.QueryRow(ctx, query, tenantID, id.Value))
	if err != nil {
		return domain.Member{}, fmt.Errorf("find member by %s: %w", id.Kind, err)
	}
	return m, nil
}

func scanMember(row pgx.Row) (domain.Member, error) {
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
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Member{}, domain.ErrMemberNotFound
		}
		return domain.Member{}, translateError(err)
	}
	m.Role = domain.Role(role)
	m.WorkerType = domain.WorkerType(workerType)
	m.Status = domain.Status(status)
	return m, nil
}

// translateError maps driver failures onto the domain's store sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentifier, pgErr.ConstraintName)
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: %s", domain.ErrManagerReference, pgErr.ConstraintName)
		case pgErr.Code == "42501":
			return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, pgErr.Message)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}

// isMemberID reports whether id can match the uuid primary key.
func isMemberID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
