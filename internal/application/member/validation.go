package member

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

const minPasswordLength = 8

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

type ValidationPolicy struct {
	// DeferCredentialPolicy flags credential problems for repair instead of reporting them.
	DeferCredentialPolicy bool
	TenantCode            string
}

// RuleEngine runs the per-row checks. Output depends only on the rows and the policy.
type RuleEngine struct {
	validate *validator.Validate
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{validate: validator.New()}
}

// Validate returns the ordered violations of a single row.
func (e *RuleEngine) Validate(row domain.CandidateRow, policy ValidationPolicy) []domain.Violation {
	var out []domain.Violation
	add := func(code domain.ViolationCode, format string, args ...any) {
		out = append(out, domain.Violation{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if row.Malformed != "" {
		add(domain.ViolationMalformed, "malformed line: %s", row.Malformed)
	}

	if row.Name == "" {
		add(domain.ViolationRequired, "name is required")
	}
	if row.Role == "" {
		add(domain.ViolationRequired, "role is required")
	} else if _, ok := domain.ParseRole(row.Role); !ok {
		add(domain.ViolationFormat, "role %q is not one of member, manager, admin", row.Role)
	}

	switch {
	case row.Email == "" && row.Username == "":
		add(domain.ViolationRequired, "one of email or username is required")
	case row.Email != "" && row.Username != "":
		add(domain.ViolationFormat, "only one of email or username may be set")
	case row.Email != "":
		if err := e.validate.Var(row.Email, "email"); err != nil {
			add(domain.ViolationFormat, "email %q is not a valid address", row.Email)
		}
	}

	if row.PersonID == "" {
		add(domain.ViolationRequired, "person id is required")
	}

	workerType, workerOK := domain.ParseWorkerType(row.UserType)
	if !workerOK {
		add(domain.ViolationFormat, "user type %q is not one of office, operational", row.UserType)
	}

	if problem := CheckCredential(workerType, row.Password); problem != "" && workerOK && !policy.DeferCredentialPolicy {
		code := domain.ViolationCredential
		if row.Password == "" {
			code = domain.ViolationRequired
		}
		add(code, "%s", problem)
	}

	if row.CompanyCode != "" && policy.TenantCode != "" && !strings.EqualFold(row.CompanyCode, policy.TenantCode) {
		add(domain.ViolationCompany, "company code %q does not match %q", row.CompanyCode, policy.TenantCode)
	}

	return out
}

// ValidateAll appends each row's violations, flags rows whose credential will be
// repaired, and marks later rows repeating an identifier already used in the file.
func (e *RuleEngine) ValidateAll(rows []domain.CandidateRow, policy ValidationPolicy) {
	seen := make(map[domain.Identifier]int, len(rows))
	for i := range rows {
		row := &rows[i]
		row.Violations = append(row.Violations, e.Validate(*row, policy)...)

		workerType, ok := domain.ParseWorkerType(row.UserType)
		row.RepairCredential = policy.DeferCredentialPolicy && ok && CheckCredential(workerType, row.Password) != ""

		for _, id := range row.Identifiers() {
			key := domain.Identifier{Kind: id.Kind, Value: strings.ToLower(id.Value)}
			if first, dup := seen[key]; dup {
				row.AddViolation(domain.ViolationDuplicate, fmt.Sprintf("%s %q duplicates row %d", id.Kind, id.Value, first))
				continue
			}
			seen[key] = row.RowIndex
		}
	}
}

// CheckCredential returns a human-readable policy problem, or "" when the credential complies.
func CheckCredential(workerType domain.WorkerType, credential string) string {
	if credential == "" {
		if workerType == domain.WorkerOperational {
			return "PIN is required"
		}
		return "password is required"
	}
	if workerType == domain.WorkerOperational {
		if !pinPattern.MatchString(credential) {
			return "PIN must be 4 to 6 digits"
		}
		return ""
	}
	if utf8.RuneCountInString(credential) < minPasswordLength {
		return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if len(credential) > maxPasswordBytes {
		return fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes)
	}
	return ""
}
