package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook produces xlsx bytes from literal rows, header included.
func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

var defaultHeader = []any{
	"name", "partner_id", "date_order", "invoice_date_import", "journal_code",
	"default_code", "order_line/product_id/name", "order_line/product_uom_qty", "price_unit",
}

func TestReadWorkbookForwardFill(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		defaultHeader,
		{"SO0001", "Distribuidora Sur", "2024-03-01", "2024-03-31", "15.0", "WID-100", "Widget 100", "2", "140"},
		{"SO0001", "", "", "", "", "WID-200", "Widget 200", "1", ""},
		{"SO0002", "Mayorista Centro", "2024-03-02", "", "21", "WID-100", "Widget 100", "5", ""},
	})

	rows, err := ReadWorkbook(data, "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Distribuidora Sur", rows[1].PartnerRef)
	assert.Equal(t, "2024-03-01", rows[1].OrderDate)
	assert.Equal(t, "2024-03-31", rows[1].InvoiceDate)
	assert.Equal(t, "00015", rows[1].JournalCode)

	// A later non-empty cell replaces the carried value.
	assert.Equal(t, "Mayorista Centro", rows[2].PartnerRef)
	assert.Equal(t, "2024-03-02", rows[2].OrderDate)
	assert.Equal(t, "00021", rows[2].JournalCode)
	// The invoice date carries over from the previous group's rows.
	assert.Equal(t, "2024-03-31", rows[2].InvoiceDate)
}

func TestReadWorkbookOrderKeyNotFilled(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		defaultHeader,
		{"SO0001", "Distribuidora Sur", "", "", "", "WID-100", "Widget 100", "1", "10"},
		{"", "", "", "", "", "WID-200", "Widget 200", "1", "10"},
	})

	rows, err := ReadWorkbook(data, "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SO0001", rows[0].OrderKey)
	assert.Empty(t, rows[1].OrderKey)
}

func TestReadWorkbookSkipsBlankRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		defaultHeader,
		{"SO0001", "Distribuidora Sur", "", "", "", "WID-100", "Widget 100", "1", "10"},
		{"", "", "", "", "", "", "", "", ""},
		{"SO0001", "", "", "", "", "WID-200", "Widget 200", "1", "10"},
	})

	rows, err := ReadWorkbook(data, "", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadWorkbookNormalizesIdentifiers(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		defaultHeader,
		{"1024.0", "0012,00", "", "", "", "WID-100.0", "Widget 100", "1", "10"},
	})

	rows, err := ReadWorkbook(data, "", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1024", rows[0].OrderKey)
	assert.Equal(t, "0012", rows[0].PartnerRef)
	// Non-numeric codes keep their decimal suffix.
	assert.Equal(t, "WID-100.0", rows[0].ProductCode)
}

func TestReadWorkbookMissingColumns(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"name", "partner_id", "price_unit"},
		{"SO0001", "Distribuidora Sur", "10"},
	})

	_, err := ReadWorkbook(data, "", nil)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "quantity")
	assert.Contains(t, err.Error(), "description")
}

func TestReadWorkbookUnreadable(t *testing.T) {
	_, err := ReadWorkbook([]byte("not a workbook"), "", nil)
	require.ErrorIs(t, err, ErrUnreadableFile)
}

func TestReadWorkbookUnknownSheet(t *testing.T) {
	data := buildWorkbook(t, [][]any{defaultHeader})
	_, err := ReadWorkbook(data, "NoSuchSheet", nil)
	require.ErrorIs(t, err, ErrUnreadableFile)
}

func TestNormalizeJournalCode(t *testing.T) {
	cases := map[string]string{
		"15":     "00015",
		"15.0":   "00015",
		"15,0":   "00015",
		" 015 ":  "00015",
		"00015":  "00015",
		"123456": "123456",
		"EXP":    "EXP",
		"":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeJournalCode(in), "input %q", in)
	}
	for in := range cases {
		once := NormalizeJournalCode(in)
		assert.Equal(t, once, NormalizeJournalCode(once), "not idempotent for %q", in)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"1024.0":  "1024",
		"0012,00": "0012",
		"1024.5":  "1024.5",
		".5":      ".5",
		"SO0007":  "SO0007",
		" 42 ":    "42",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeIdentifier(in), "input %q", in)
	}
}
