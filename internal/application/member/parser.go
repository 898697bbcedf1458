package member

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Column keys, matched against header names folded to lower case without separators.
const (
	colName              = "name"
	colEmail             = "email"
	colUsername          = "username"
	colRole              = "role"
	colDepartment        = "department"
	colUserType          = "usertype"
	colPassword          = "password"
	colManagerEmail      = "manageremail"
	colManagerPersonID   = "managerpersonid"
	colManagerEmployeeID = "manageremployeeid"
	colCompanyCode       = "companycode"
	colEmployeeID        = "employeeid"
	colPersonID          = "personid"
	colPosition          = "position"
	colShift             = "shift"
)

var columnAliases = map[string]string{
	"workertype": colUserType,
	"pin":        colPassword,
}

var knownColumns = map[string]bool{
	colName: true, colEmail: true, colUsername: true, colRole: true, colDepartment: true,
	colUserType: true, colPassword: true, colManagerEmail: true, colManagerPersonID: true,
	colManagerEmployeeID: true, colCompanyCode: true, colEmployeeID: true, colPersonID: true,
	colPosition: true, colShift: true,
}

var requiredColumns = []string{colName, colRole, colPersonID, colPassword}

var headerFolder = cases.Fold()

// normalizeColumn maps a header or fix key to its column key; unknown names map to "".
func normalizeColumn(raw string) string {
	folded := headerFolder.String(strings.TrimSpace(raw))
	folded = strings.NewReplacer("_", "", "-", "", " ", "").Replace(folded)
	if alias, ok := columnAliases[folded]; ok {
		return alias
	}
	if knownColumns[folded] {
		return folded
	}
	return ""
}

type ParseResult struct {
	Format      string
	Rows        []domain.CandidateRow
	ParseErrors []string
}

func (r ParseResult) Rejected() bool {
	return len(r.ParseErrors) > 0
}

type RowParser struct {
	maxRows int
}

func NewRowParser(maxRows int) *RowParser {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &RowParser{maxRows: maxRows}
}

// Parse turns raw bytes into candidate rows. A schema problem rejects the whole file
// through ParseErrors; only an unreadable header is returned as an error.
func (p *RowParser) Parse(data []byte) (ParseResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ParseResult{}, ErrMissingHeader
	}

	if mimetype.Detect(data).Is(xlsxMIME) {
		records, err := readSpreadsheet(data)
		if err != nil {
			return ParseResult{}, err
		}
		return p.build(FormatXLSX, records, false)
	}

	records, err := readDelimited(data)
	if err != nil {
		return ParseResult{}, err
	}
	return p.build(FormatCSV, records, true)
}

type rawRecord struct {
	fields []string
	line   string
	err    string
}

func readDelimited(data []byte) ([]rawRecord, error) {
	utf16 := bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
	if !utf16 && !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: file is not valid UTF-8", ErrMissingHeader)
	}
	decoded, _, err := transform.Bytes(xunicode.BOMOverride(xunicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		records     []rawRecord
		lines       = strings.Split(string(decoded), "\n")
		width       = -1
		lastErrLine = -1
	)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) || parseErr.StartLine == lastErrLine {
				if len(records) == 0 {
					return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
				}
				break
			}
			lastErrLine = parseErr.StartLine
			records = append(records, rawRecord{fields: fields, line: strings.Join(fields, string(reader.Comma)), err: parseErr.Err.Error()})
			continue
		}

		if width < 0 {
			width = len(fields)
		} else if len(fields) != width {
			if split := splitSpannedRecord(reader, decoded, lines); split != nil {
				records = append(records, split...)
				continue
			}
		}
		records = append(records, rawRecord{fields: fields, line: strings.Join(fields, string(reader.Comma))})
	}
	return records, nil
}

// splitSpannedRecord handles a record of the wrong width that covers several physical lines,
// which is what an unterminated quote produces. Every covered line becomes its own record so
// no line is lost and row numbers stay aligned with the file. It returns nil when the record
// sits on a single line.
func splitSpannedRecord(reader *csv.Reader, decoded []byte, lines []string) []rawRecord {
	startLine, _ := reader.FieldPos(0)
	offset := int(reader.InputOffset())
	endLine := bytes.Count(decoded[:offset], []byte{'\n'})
	if offset == len(decoded) && !bytes.HasSuffix(decoded, []byte{'\n'}) {
		endLine++
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if endLine <= startLine {
		return nil
	}

	var records []rawRecord
	for n := startLine; n <= endLine; n++ {
		text := strings.TrimRight(lines[n-1], "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, readLine(text, reader.Comma))
	}
	return records
}

func readLine(text string, comma rune) rawRecord {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	fields, err := reader.Read()
	if err != nil {
		return rawRecord{fields: []string{text}, line: text, err: err.Error()}
	}
	return rawRecord{fields: fields, line: text}
}

func sniffDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		return ';'
	}
	return ','
}

func readSpreadsheet(data []byte) ([]rawRecord, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrMissingHeader
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}

	records := make([]rawRecord, 0, len(rows))
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		records = append(records, rawRecord{fields: row, line: strings.Join(row, ",")})
	}
	return records, nil
}

func (p *RowParser) build(format string, records []rawRecord, strictWidth bool) (ParseResult, error) {
	if len(records) == 0 || isBlank(records[0].fields) {
		return ParseResult{}, ErrMissingHeader
	}

	header := records[0].fields
	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, name := range header {
		columns[i] = normalizeColumn(name)
		if columns[i] != "" {
			present[columns[i]] = true
		}
	}

	result := ParseResult{Format: format}
	for _, col := range requiredColumns {
		if !present[col] {
			result.ParseErrors = append(result.ParseErrors, fmt.Sprintf("missing required column %q", col))
		}
	}
	if !present[colEmail] && !present[colUsername] {
		result.ParseErrors = append(result.ParseErrors, `missing login column: one of "email" or "username" is required`)
	}

	data := records[1:]
	switch {
	case len(data) == 0:
		result.ParseErrors = append(result.ParseErrors, "file contains no data rows")
	case len(data) > p.maxRows:
		result.ParseErrors = append(result.ParseErrors, fmt.Sprintf("file contains %d data rows, limit is %d", len(data), p.maxRows))
	}
	if result.Rejected() {
		return result, nil
	}

	result.Rows = make([]domain.CandidateRow, 0, len(data))
	for i, rec := range data {
		row := domain.CandidateRow{RowIndex: i + 1}
		values := make(map[string]string, len(columns))
		for j, col := range columns {
			if col == "" || j >= len(rec.fields) {
				continue
			}
			values[col] = strings.TrimSpace(rec.fields[j])
		}
		fillRow(&row, values)

		switch {
		case rec.err != "":
			row.Malformed = fmt.Sprintf("%s (%s)", rec.line, rec.err)
		case strictWidth && len(rec.fields) != len(header):
			row.Malformed = fmt.Sprintf("%s (has %d fields, header has %d)", rec.line, len(rec.fields), len(header))
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func fillRow(row *domain.CandidateRow, values map[string]string) {
	for col, v := range values {
		setColumn(row, col, v)
	}
}

func setColumn(row *domain.CandidateRow, col, v string) bool {
	switch col {
	case colName:
		row.Name = v
	case colEmail:
		row.Email = strings.ToLower(v)
	case colUsername:
		row.Username = v
	case colRole:
		row.Role = v
	case colDepartment:
		row.Department = v
	case colUserType:
		row.UserType = v
	case colPassword:
		row.Password = v
	case colManagerEmail:
		row.ManagerEmail = strings.ToLower(v)
	case colManagerPersonID:
		row.ManagerPersonID = v
	case colManagerEmployeeID:
		row.ManagerEmployeeID = v
	case colCompanyCode:
		row.CompanyCode = v
	case colEmployeeID:
		row.EmployeeID = v
	case colPersonID:
		row.PersonID = v
	case colPosition:
		row.Position = v
	case colShift:
		row.Shift = v
	default:
		return false
	}
	return true
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// EstimateRows derives a data-row estimate from the input size without parsing it.
func EstimateRows(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	if mimetype.Detect(data).Is(xlsxMIME) {
		return len(data) / estimatedXLSXRowBytes
	}
	lines := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		lines++
	}
	if lines <= 1 {
		return 0
	}
	return lines - 1
}
