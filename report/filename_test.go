package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
)

func TestSanitizePart(t *testing.T) {
	cases := map[string]string{
		"INV/2024/0031":    "INV-2024-0031",
		"SO 0007":          "SO_0007",
		`a:b*c?d"e<f>g|h`:  "abcdefgh",
		"  spaced   out  ": "spaced_out",
		"_-already-_":      "already",
		"///":              "",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizePart(in), "input %q", in)
	}
}

func TestBaseFilenameDraftWithOrigin(t *testing.T) {
	inv := &ar.Invoice{
		ID:       42,
		MoveType: ar.MoveCustomerInvoice,
		Status:   ar.StatusDraft,
		Origin:   "SO0007",
	}
	assert.Equal(t, "SO0007-DRAFT-42", BaseFilename(inv))
}

func TestBaseFilenamePostedWithoutOrigin(t *testing.T) {
	inv := &ar.Invoice{
		ID:       31,
		MoveType: ar.MoveCustomerInvoice,
		Status:   ar.StatusPosted,
		Number:   "INV/2024/0031",
	}
	assert.Equal(t, "INV-2024-0031", BaseFilename(inv))
}

func TestBaseFilenamePostedWithOrigin(t *testing.T) {
	inv := &ar.Invoice{
		ID:       31,
		MoveType: ar.MoveCustomerRefund,
		Status:   ar.StatusPosted,
		Number:   "RINV/2024/0002",
		Origin:   "SO0007",
	}
	assert.Equal(t, "SO0007-RINV-2024-0002", BaseFilename(inv))
}

func TestBaseFilenameMultipleOrigins(t *testing.T) {
	inv := &ar.Invoice{
		ID:       8,
		MoveType: ar.MoveCustomerInvoice,
		Status:   ar.StatusPosted,
		Number:   "INV/2024/0008",
		Origin:   "SO0001, SO0002 , ",
	}
	assert.Equal(t, "SO0001,SO0002-INV-2024-0008", BaseFilename(inv))
}

func TestBaseFilenamePlaceholderNumberIsDraft(t *testing.T) {
	inv := &ar.Invoice{
		ID:       9,
		MoveType: ar.MoveCustomerInvoice,
		Status:   ar.StatusPosted,
		Number:   "/",
	}
	assert.Equal(t, "DRAFT-9", BaseFilename(inv))
}

func TestBaseFilenameNonCustomerDocumentIgnoresOrigin(t *testing.T) {
	inv := &ar.Invoice{
		ID:       5,
		MoveType: ar.MoveType("VENDOR_BILL"),
		Status:   ar.StatusPosted,
		Number:   "BILL/2024/0005",
		Origin:   "PO0001",
	}
	assert.Equal(t, "BILL-2024-0005", BaseFilename(inv))
}

func TestBaseFilenameTruncates(t *testing.T) {
	inv := &ar.Invoice{
		ID:       3,
		MoveType: ar.MoveCustomerInvoice,
		Status:   ar.StatusPosted,
		Number:   "INV/2024/0003",
		Origin:   strings.Repeat("SO", 200),
	}
	got := BaseFilename(inv)
	assert.Len(t, got, 180)
	assert.True(t, strings.HasPrefix(got, "SOSO"))
}

func TestBaseFilenameAllIllegal(t *testing.T) {
	inv := &ar.Invoice{
		ID:       77,
		MoveType: ar.MoveCustomerInvoice,
		Status:   ar.StatusPosted,
		Number:   `::||`,
	}
	assert.Equal(t, "INV-77", BaseFilename(inv))
}
