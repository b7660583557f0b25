package importer

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// journalCodeWidth is the zero-padded width journal codes normalize to.
const journalCodeWidth = 5

// ReadWorkbook decodes spreadsheet bytes into an ordered slice of rows.
// Header-only fields are forward-filled from the nearest preceding non-empty
// value, mirroring the spreadsheet convention where only the first row of a
// group repeats the header.
func ReadWorkbook(data []byte, sheet string, cm *ColumnMap) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableFile)
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrUnreadableFile, sheet, err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrUnreadableFile, sheet)
	}

	if cm == nil {
		cm = DefaultColumns()
	}

	// The header is the first row with any content.
	headerAt := -1
	for i, row := range cells {
		if rowHasContent(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrUnreadableFile, sheet)
	}

	idx, missing := cm.resolve(cells[headerAt])
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var rows []Row
	var carry Row // forward-fill state for header-only fields
	for i := headerAt + 1; i < len(cells); i++ {
		if !rowHasContent(cells[i]) {
			continue
		}
		get := func(field string) string {
			pos, ok := idx[field]
			if !ok || pos >= len(cells[i]) {
				return ""
			}
			return strings.TrimSpace(cells[i][pos])
		}

		row := Row{
			Number:      i + 1,
			OrderKey:    normalizeIdentifier(get("order_key")),
			PartnerRef:  normalizeIdentifier(get("partner")),
			CompanyRef:  normalizeIdentifier(get("company")),
			OrderDate:   get("order_date"),
			InvoiceDate: get("invoice_date"),
			JournalCode: NormalizeJournalCode(get("journal_code")),
			ProductCode: normalizeIdentifier(get("product_code")),
			Description: get("description"),
			Quantity:    get("quantity"),
			UnitPrice:   get("unit_price"),
		}

		// The order key itself is not forward-filled: a row without one is
		// a validation error, not an inherited value.
		fill(&row.PartnerRef, &carry.PartnerRef)
		fill(&row.CompanyRef, &carry.CompanyRef)
		fill(&row.OrderDate, &carry.OrderDate)
		fill(&row.InvoiceDate, &carry.InvoiceDate)
		fill(&row.JournalCode, &carry.JournalCode)

		rows = append(rows, row)
	}

	return rows, nil
}

// fill inherits the carried value when the cell is blank, otherwise updates
// the carry. Forward-fill never crosses files because the carry lives for
// one ReadWorkbook call.
func fill(cell, carry *string) {
	if *cell == "" {
		*cell = *carry
		return
	}
	*carry = *cell
}

func rowHasContent(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// normalizeIdentifier strips a spurious decimal-zero suffix that spreadsheet
// tools append to numeric-looking codes, without losing leading zeros.
// "1024.0" and "0012,00" become "1024" and "0012"; anything else is returned
// trimmed.
func normalizeIdentifier(raw string) string {
	s := strings.TrimSpace(raw)
	i := strings.IndexAny(s, ".,")
	if i <= 0 {
		return s
	}
	intPart, frac := s[:i], s[i+1:]
	if frac == "" || !allDigits(intPart) || !allZeros(frac) {
		return s
	}
	return intPart
}

// NormalizeJournalCode brings a journal code to its 5-digit zero-padded
// form. Comma-decimal ("15,0"), float ("15.0") and pure-digit ("15", " 015 ")
// variants all normalize to "00015". Non-numeric codes are returned trimmed.
// The function is idempotent.
func NormalizeJournalCode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	c := strings.ReplaceAll(s, ",", ".")
	if f, err := strconv.ParseFloat(c, 64); err == nil && f >= 0 && f == float64(int64(f)) {
		s = strconv.FormatInt(int64(f), 10)
	}
	if allDigits(s) && len(s) < journalCodeWidth {
		s = strings.Repeat("0", journalCodeWidth-len(s)) + s
	}
	return s
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func allZeros(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '0' {
			return false
		}
	}
	return true
}
