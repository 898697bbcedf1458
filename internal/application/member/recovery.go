package member

import (
	"fmt"
	"sort"
	"strings"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

// Fix patches one input row before a retry. Field keys use the input column names.
type Fix struct {
	RowIndex             int               `json:"row_index"`
	Fields               map[string]string `json:"fields,omitempty"`
	RegenerateCredential bool              `json:"regenerate_credential,omitempty"`
	DropManager          bool              `json:"drop_manager,omitempty"`
}

// FixValidationError lists why the supplied fixes cannot resolve their errors.
type FixValidationError struct {
	Problems []string
}

func (e *FixValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFixes, strings.Join(e.Problems, "; "))
}

func (e *FixValidationError) Unwrap() error {
	return ErrInvalidFixes
}

var identifierColumns = map[string]bool{
	colEmail:      true,
	colUsername:   true,
	colEmployeeID: true,
	colPersonID:   true,
}

var managerColumns = map[string]bool{
	colManagerEmail:      true,
	colManagerPersonID:   true,
	colManagerEmployeeID: true,
}

// ValidateFixes checks each fix is structurally able to resolve the error of its row.
// It returns nil when every fix is sufficient.
func ValidateFixes(errs []*domain.RecoverableError, fixes []Fix) []string {
	byRow := make(map[int]*domain.RecoverableError, len(errs))
	for _, e := range errs {
		byRow[e.RowIndex] = e
	}

	var problems []string
	for _, fix := range fixes {
		target, ok := byRow[fix.RowIndex]
		if !ok {
			problems = append(problems, fmt.Sprintf("row %d: no recoverable error to fix", fix.RowIndex))
			continue
		}

		columns := make(map[string]string, len(fix.Fields))
		for name, value := range fix.Fields {
			col := normalizeColumn(name)
			if col == "" {
				problems = append(problems, fmt.Sprintf("row %d: unknown column %q", fix.RowIndex, name))
				continue
			}
			columns[col] = value
		}
		if v, ok := columns[colPassword]; ok && strings.TrimSpace(v) == "" {
			problems = append(problems, fmt.Sprintf("row %d: replacement credential is empty", fix.RowIndex))
		}

		switch target.Kind {
		case domain.KindDuplicate:
			if !changesAny(columns, identifierColumns) {
				problems = append(problems, fmt.Sprintf("row %d: duplicate fix must change an identifier column", fix.RowIndex))
			}
		case domain.KindManagerNotFound:
			if !fix.DropManager && !changesAny(columns, managerColumns) {
				problems = append(problems, fmt.Sprintf("row %d: manager fix must change the manager reference or drop it", fix.RowIndex))
			}
		case domain.KindWeakCredential:
			if _, ok := columns[colPassword]; !ok && !fix.RegenerateCredential {
				problems = append(problems, fmt.Sprintf("row %d: credential fix must supply or regenerate a credential", fix.RowIndex))
			}
		case domain.KindValidation:
			if len(columns) == 0 && !fix.RegenerateCredential && !fix.DropManager {
				problems = append(problems, fmt.Sprintf("row %d: validation fix changes nothing", fix.RowIndex))
			}
		}
	}
	return problems
}

func changesAny(columns map[string]string, allowed map[string]bool) bool {
	for col, v := range columns {
		if allowed[col] && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// BulkApplyCommonFixes proposes deterministic fixes for the error kinds that have one.
// Validation errors need operator input and get no proposal.
func BulkApplyCommonFixes(errs []*domain.RecoverableError) []Fix {
	var fixes []Fix
	for _, e := range errs {
		if !e.Retryable {
			continue
		}
		switch e.Kind {
		case domain.KindWeakCredential:
			fixes = append(fixes, Fix{RowIndex: e.RowIndex, RegenerateCredential: true})
		case domain.KindManagerNotFound:
			fixes = append(fixes, Fix{RowIndex: e.RowIndex, DropManager: true})
		case domain.KindDuplicate:
			if fix, ok := disambiguate(e); ok {
				fixes = append(fixes, fix)
			}
		}
	}
	sort.Slice(fixes, func(a, b int) bool { return fixes[a].RowIndex < fixes[b].RowIndex })
	return fixes
}

func disambiguate(e *domain.RecoverableError) (Fix, bool) {
	switch {
	case e.Email != "":
		local, host, ok := strings.Cut(e.Email, "@")
		if !ok {
			return Fix{}, false
		}
		return Fix{RowIndex: e.RowIndex, Fields: map[string]string{
			colEmail: fmt.Sprintf("%s+%d@%s", local, e.RowIndex, host),
		}}, true
	case e.Username != "":
		return Fix{RowIndex: e.RowIndex, Fields: map[string]string{
			colUsername: fmt.Sprintf("%s-%d", e.Username, e.RowIndex),
		}}, true
	}
	return Fix{}, false
}

// applyFix patches a parsed row. Unknown columns were rejected by ValidateFixes.
func applyFix(row *domain.CandidateRow, fix Fix) {
	for name, value := range fix.Fields {
		setColumn(row, normalizeColumn(name), strings.TrimSpace(value))
	}
	if fix.DropManager {
		row.ClearManagerReference()
	}
	if fix.RegenerateCredential {
		row.Password = ""
	}
}
