package member

import (
	"strings"
	"time"
)

type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleMember:
		return RoleMember, true
	case RoleManager:
		return RoleManager, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// CanManage reports whether members with this role may be referenced as a manager.
func (r Role) CanManage() bool {
	return r == RoleManager || r == RoleAdmin
}

type WorkerType string

const (
	WorkerOffice      WorkerType = "office"
	WorkerOperational WorkerType = "operational"
)

func ParseWorkerType(raw string) (WorkerType, bool) {
	switch WorkerType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", WorkerOffice:
		return WorkerOffice, true
	case WorkerOperational:
		return WorkerOperational, true
	}
	return "", false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// Field names a directory record exposes to diffs, updates and rollback.
type Field string

const (
	FieldName         Field = "name"
	FieldEmail        Field = "email"
	FieldUsername     Field = "username"
	FieldRole         Field = "role"
	FieldDepartment   Field = "department"
	FieldPosition     Field = "position"
	FieldShift        Field = "shift"
	FieldEmployeeID   Field = "employee_id"
	FieldPersonID     Field = "person_id"
	FieldManagerID    Field = "manager_id"
	FieldWorkerType   Field = "worker_type"
	FieldPasswordHash Field = "password_hash"
	FieldPIN          Field = "pin"
)

// CredentialFields are diffed on every update and never reverted by rollback.
var CredentialFields = []Field{FieldPasswordHash, FieldPIN}

// DefaultUpdatableFields is the allowlist used when options do not name one.
var DefaultUpdatableFields = []Field{
	FieldName,
	FieldRole,
	FieldDepartment,
	FieldPosition,
	FieldShift,
	FieldEmployeeID,
	FieldManagerID,
	FieldWorkerType,
}

func (f Field) IsCredential() bool {
	return f == FieldPasswordHash || f == FieldPIN
}

func ParseField(raw string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FieldName, FieldEmail, FieldUsername, FieldRole, FieldDepartment, FieldPosition, FieldShift,
		FieldEmployeeID, FieldPersonID, FieldManagerID, FieldWorkerType, FieldPasswordHash, FieldPIN:
		return f, true
	}
	return "", false
}

type Member struct {
	ID           string
	TenantID     string
	Name         string
	Email        string
	Username     string
	Role         Role
	Department   string
	Position     string
	Shift        string
	EmployeeID   string
	PersonID     string
	ManagerID    string
	WorkerType   WorkerType
	PasswordHash string
	PIN          string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m Member) Value(f Field) string {
	switch f {
	case FieldName:
		return m.Name
	case FieldEmail:
		return m.Email
	case FieldUsername:
		return m.Username
	case FieldRole:
		return string(m.Role)
	case FieldDepartment:
		return m.Department
	case FieldPosition:
		return m.Position
	case FieldShift:
		return m.Shift
	case FieldEmployeeID:
		return m.EmployeeID
	case FieldPersonID:
		return m.PersonID
	case FieldManagerID:
		return m.ManagerID
	case FieldWorkerType:
		return string(m.WorkerType)
	case FieldPasswordHash:
		return m.PasswordHash
	case FieldPIN:
		return m.PIN
	}
	return ""
}

func (m *Member) Set(f Field, value string) error {
	switch f {
	case FieldName:
		m.Name = value
	case FieldEmail:
		m.Email = value
	case FieldUsername:
		m.Username = value
	case FieldRole:
		m.Role = Role(value)
	case FieldDepartment:
		m.Department = value
	case FieldPosition:
		m.Position = value
	case FieldShift:
		m.Shift = value
	case FieldEmployeeID:
		m.EmployeeID = value
	case FieldPersonID:
		m.PersonID = value
	case FieldManagerID:
		m.ManagerID = value
	case FieldWorkerType:
		m.WorkerType = WorkerType(value)
	case FieldPasswordHash:
		m.PasswordHash = value
	case FieldPIN:
		m.PIN = value
	default:
		return ErrUnknownField
	}
	return nil
}

// Login returns the identifier the member signs in with.
func (m Member) Login() string {
	if m.Email != "" {
		return m.Email
	}
	return m.Username
}

func (m *Member) Deactivate() error {
	if m.Status != StatusActive {
		return ErrInvalidStatusTransition
	}
	m.Status = StatusInactive
	return nil
}

func (m *Member) Archive() error {
	if m.Status == StatusArchived {
		return ErrInvalidStatusTransition
	}
	m.Status = StatusArchived
	return nil
}

func (m *Member) Reactivate() error {
	if m.Status != StatusInactive {
		return ErrInvalidStatusTransition
	}
	m.Status = StatusActive
	return nil
}

func (m Member) IsArchived() bool {
	return m.Status == StatusArchived
}
