package member

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

type IdentifierKind string

const (
	IdentifierEmail      IdentifierKind = "email"
	IdentifierUsername   IdentifierKind = "username"
	IdentifierEmployeeID IdentifierKind = "employee_id"
	IdentifierPersonID   IdentifierKind = "person_id"
)

// IdentifierPriority is the order in which identifiers are matched; the first hit wins.
var IdentifierPriority = []IdentifierKind{
	IdentifierEmail,
	IdentifierUsername,
	IdentifierEmployeeID,
	IdentifierPersonID,
}

type Identifier struct {
	Kind  IdentifierKind
	Value string
}

type ViolationCode string

const (
	ViolationMalformed      ViolationCode = "malformed"
	ViolationRequired       ViolationCode = "required"
	ViolationFormat         ViolationCode = "format"
	ViolationCredential     ViolationCode = "credential"
	ViolationDuplicate      ViolationCode = "duplicate"
	ViolationCompany        ViolationCode = "company"
	ViolationManager        ViolationCode = "manager"
	ViolationArchived       ViolationCode = "archived"
	ViolationActionDisabled ViolationCode = "action_disabled"
)

type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
}

// CandidateRow is one input record. The parser fills the raw columns, the resolver
// and validator enrich it, the writer consumes it.
type CandidateRow struct {
	RowIndex int

	Name              string
	Email             string
	Username          string
	Role              string
	Department        string
	UserType          string
	Password          string
	ManagerEmail      string
	ManagerPersonID   string
	ManagerEmployeeID string
	CompanyCode       string
	EmployeeID        string
	PersonID          string
	Position          string
	Shift             string

	// Malformed holds the raw line when the record could not be split into the header's columns.
	Malformed string

	Action       Action
	ExistingID   string
	ManagerFound bool
	ManagerID    string

	Violations []Violation
	Warnings   []Violation

	// RepairCredential marks a row whose credential fails policy but will be regenerated.
	RepairCredential bool
}

func (r CandidateRow) Valid() bool {
	return len(r.Violations) == 0
}

func (r CandidateRow) Login() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

func (r CandidateRow) Identifier(kind IdentifierKind) string {
	switch kind {
	case IdentifierEmail:
		return r.Email
	case IdentifierUsername:
		return r.Username
	case IdentifierEmployeeID:
		return r.EmployeeID
	case IdentifierPersonID:
		return r.PersonID
	}
	return ""
}

// Identifiers returns the non-empty identifiers in match priority order.
func (r CandidateRow) Identifiers() []Identifier {
	out := make([]Identifier, 0, len(IdentifierPriority))
	for _, kind := range IdentifierPriority {
		if v := r.Identifier(kind); v != "" {
			out = append(out, Identifier{Kind: kind, Value: v})
		}
	}
	return out
}

// ManagerReference returns the first supplied manager reference in identifier priority order.
func (r CandidateRow) ManagerReference() (Identifier, bool) {
	switch {
	case r.ManagerEmail != "":
		return Identifier{Kind: IdentifierEmail, Value: r.ManagerEmail}, true
	case r.ManagerEmployeeID != "":
		return Identifier{Kind: IdentifierEmployeeID, Value: r.ManagerEmployeeID}, true
	case r.ManagerPersonID != "":
		return Identifier{Kind: IdentifierPersonID, Value: r.ManagerPersonID}, true
	}
	return Identifier{}, false
}

func (r *CandidateRow) ClearManagerReference() {
	r.ManagerEmail = ""
	r.ManagerEmployeeID = ""
	r.ManagerPersonID = ""
	r.ManagerFound = false
	r.ManagerID = ""
}

func (r *CandidateRow) AddViolation(code ViolationCode, message string) {
	r.Violations = append(r.Violations, Violation{Code: code, Message: message})
}

func (r *CandidateRow) AddWarning(code ViolationCode, message string) {
	r.Warnings = append(r.Warnings, Violation{Code: code, Message: message})
}
