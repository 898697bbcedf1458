package member_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
)

func TestRowParserParsesHeaderInAnyOrder(t *testing.T) {
	t.Parallel()

	data := []byte("Person_ID;Role;E-Mail;Name;PASSWORD;Manager Email;unknown\n" +
		"P1;member;Alice@Example.com;Alice;Secret-pass1;Boss@Example.com;ignored\n")

	result, err := app.NewRowParser(0).Parse(data)
	require.NoError(t, err)
	require.False(t, result.Rejected(), result.ParseErrors)
	assert.Equal(t, app.FormatCSV, result.Format)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, 1, row.RowIndex)
	assert.Equal(t, "Alice", row.Name)
	assert.Equal(t, "alice@example.com", row.Email)
	assert.Equal(t, "boss@example.com", row.ManagerEmail)
	assert.Equal(t, "P1", row.PersonID)
	assert.Equal(t, "Secret-pass1", row.Password)
}

func TestRowParserKeepsMalformedLines(t *testing.T) {
	t.Parallel()

	data := []byte("name,email,role,password,personId\n" +
		"Alice,alice@example.com,member,Secret-pass1,P1\n" +
		"Broken,broken@example.com,member\n" +
		"\n" +
		"Bob,bob@example.com,member,Secret-pass2,P2\n")

	result, err := app.NewRowParser(0).Parse(data)
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	assert.Empty(t, result.Rows[0].Malformed)
	assert.Contains(t, result.Rows[1].Malformed, "Broken")
	assert.Equal(t, 2, result.Rows[1].RowIndex)
	assert.Equal(t, 3, result.Rows[2].RowIndex)
}

func TestRowParserUnterminatedQuoteKeepsLaterLines(t *testing.T) {
	t.Parallel()

	data := []byte("name,email,role,password,personId,department\n" +
		"Alice,alice@example.com,member,Secret-pass1,P1,Ops\n" +
		"\"Bob,bob@example.com,member,Secret-pass2,P2,Ops\n" +
		"Carol,carol@example.com,member,Secret-pass3,P3,Ops\n" +
		"Dan,dan@example.com,member,Secret-pass4,P4,Ops\n")

	result, err := app.NewRowParser(0).Parse(data)
	require.NoError(t, err)
	require.False(t, result.Rejected(), result.ParseErrors)
	require.Len(t, result.Rows, 4)

	for i, row := range result.Rows {
		assert.Equal(t, i+1, row.RowIndex)
	}
	assert.Empty(t, result.Rows[0].Malformed)
	assert.Contains(t, result.Rows[1].Malformed, "Bob")
	assert.Empty(t, result.Rows[2].Malformed)
	assert.Equal(t, "Carol", result.Rows[2].Name)
	assert.Equal(t, "P3", result.Rows[2].PersonID)
	assert.Empty(t, result.Rows[3].Malformed)
	assert.Equal(t, "Dan", result.Rows[3].Name)
}

func TestRowParserKeepsQuotedMultilineField(t *testing.T) {
	t.Parallel()

	data := []byte("name,email,role,password,personId,department\n" +
		"Alice,alice@example.com,member,Secret-pass1,P1,\"Ops\nNight\"\n" +
		"Bob,bob@example.com,member,Secret-pass2,P2,Ops\n")

	result, err := app.NewRowParser(0).Parse(data)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Empty(t, result.Rows[0].Malformed)
	assert.Equal(t, "Ops\nNight", result.Rows[0].Department)
	assert.Equal(t, "Bob", result.Rows[1].Name)
}

func TestRowParserRejectsWholeFile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data string
		max  int
	}{
		{name: "missing required columns", data: "name,email\nAlice,alice@example.com\n"},
		{name: "no login column", data: "name,role,password,personId\nAlice,member,Secret-pass1,P1\n"},
		{name: "no data rows", data: "name,email,role,password,personId\n"},
		{name: "too many rows", data: "name,email,role,password,personId\nA,a@x.io,member,Secret-pass1,P1\nB,b@x.io,member,Secret-pass1,P2\n", max: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := app.NewRowParser(tc.max).Parse([]byte(tc.data))
			require.NoError(t, err)
			assert.True(t, result.Rejected())
			assert.Empty(t, result.Rows)
		})
	}
}

func TestRowParserMissingHeader(t *testing.T) {
	t.Parallel()

	_, err := app.NewRowParser(0).Parse([]byte("  \n"))
	assert.ErrorIs(t, err, app.ErrMissingHeader)

	_, err = app.NewRowParser(0).Parse([]byte("name,email\n\xc3\x28,x\n"))
	assert.ErrorIs(t, err, app.ErrMissingHeader)
}

func TestRowParserDecodesBOMAndUTF16(t *testing.T) {
	t.Parallel()

	text := "name,email,role,password,personId\nZoë,zoe@example.com,member,Secret-pass1,P1\n"

	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(text)...)
	result, err := app.NewRowParser(0).Parse(withBOM)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Zoë", result.Rows[0].Name)

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	result, err = app.NewRowParser(0).Parse(encoded)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "zoe@example.com", result.Rows[0].Email)
}

func TestRowParserReadsSpreadsheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"name", "email", "role", "password", "personId", "userType"},
		{"Alice", "alice@example.com", "member", "Secret-pass1", "P1", "office"},
		{"Op", "op@example.com", "member", "1234", "P2", "operational"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := app.NewRowParser(0).Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, app.FormatXLSX, result.Format)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "operational", result.Rows[1].UserType)
	assert.Equal(t, "1234", result.Rows[1].Password)
}

func TestEstimateRows(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, app.EstimateRows(nil))
	assert.Equal(t, 0, app.EstimateRows([]byte("name,email\n")))
	assert.Equal(t, 2, app.EstimateRows([]byte("h\na\nb\n")))
	assert.Equal(t, 2, app.EstimateRows([]byte("h\na\nb")))
}
