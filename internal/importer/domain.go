// Package importer implements the bulk sales-order import pipeline: it reads
// a spreadsheet, groups rows into orders, validates each group against master
// data and submits the validated groups to the sales order service.
package importer

import (
	"errors"
	"time"
)

// Fatal reader errors. Both abort the run before any grouping happens.
var (
	ErrUnreadableFile = errors.New("unreadable file")
	ErrMissingColumns = errors.New("missing required columns")
)

// ErrorKind classifies a per-group import error.
type ErrorKind string

const (
	KindUnresolvedPartner      ErrorKind = "unresolved_partner"
	KindUnresolvedCompany      ErrorKind = "unresolved_company"
	KindUnresolvedProduct      ErrorKind = "unresolved_product"
	KindInvalidQuantity        ErrorKind = "invalid_quantity"
	KindMissingFallbackProduct ErrorKind = "missing_fallback_product"
	KindMissingDescription     ErrorKind = "missing_description"
	KindMissingPrice           ErrorKind = "missing_price"
	KindUnresolvedJournal      ErrorKind = "unresolved_journal"
	KindInvoicePostingFailure  ErrorKind = "invoice_posting_failure"
	KindTrackedLine            ErrorKind = "tracked_line"
	KindSubmissionFailure      ErrorKind = "submission_failure"
	KindEmptyGroup             ErrorKind = "empty_group"
	KindMissingOrderKey        ErrorKind = "missing_order_key"
)

// ImportError records one non-fatal problem attributed to an order group.
// Under the abort-on-any-error policy a single ImportError fails the run.
type ImportError struct {
	OrderKey string    `json:"order_key"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

func (e ImportError) String() string {
	if e.OrderKey == "" {
		return e.Message
	}
	return e.OrderKey + ": " + e.Message
}

// Row is one spreadsheet record after decoding and forward-filling.
// Everything stays a string until grouping resolves it; the reader only
// normalizes identifiers and journal codes.
type Row struct {
	// Number is the 1-based spreadsheet row number, used in messages.
	Number int

	OrderKey    string
	PartnerRef  string
	CompanyRef  string
	OrderDate   string
	InvoiceDate string
	JournalCode string

	ProductCode string
	Description string
	Quantity    string
	UnitPrice   string
}

// Header carries the resolved header of one order group.
type Header struct {
	OrderKey    string
	PartnerID   int64
	CompanyID   int64
	OrderDate   *time.Time
	InvoiceDate *time.Time
	JournalCode string
}

// LineKind distinguishes catalog lines from free-text service lines.
type LineKind string

const (
	LineCatalog LineKind = "catalog"
	LineCustom  LineKind = "custom"
)

// PreparedLine is one validated order line ready for submission.
type PreparedLine struct {
	Kind        LineKind
	ProductID   int64
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxID       int64
	Tracked     bool
}

// OrderGroup is one fully validated order: a resolved header plus at least
// one prepared line. Groups that fail validation never reach this type.
type OrderGroup struct {
	Header Header
	Lines  []PreparedLine
}

// TrackedLinePolicy decides what happens to lot/serial tracked lines during
// forced delivery. Skipped lines are always surfaced as notes in the result,
// never dropped silently.
type TrackedLinePolicy string

const (
	TrackedSkip  TrackedLinePolicy = "skip"
	TrackedError TrackedLinePolicy = "error"
)

// Options configures one import run.
type Options struct {
	// Simulate validates and reports without persisting anything.
	Simulate bool `json:"simulate"`
	// ValidateInvoice posts the generated invoice after creation.
	ValidateInvoice bool `json:"validate_invoice"`
	// BestEffort skips errored groups and commits the rest. The default
	// (false) aborts the whole run on any error.
	BestEffort bool `json:"best_effort"`
	// ServiceProductRef identifies the fallback product carrying free-text
	// lines. Required as soon as one row has an empty product code.
	ServiceProductRef string `json:"service_product_ref"`

	TrackedLines TrackedLinePolicy `json:"tracked_lines" validate:"omitempty,oneof=skip error"`

	// Sheet selects the worksheet; empty means the first sheet.
	Sheet string `json:"sheet"`
	// Columns overrides the built-in column aliases.
	Columns *ColumnMap `json:"columns,omitempty"`
}

// Result is the outcome of one import run. It is built fresh per invocation
// and survives only in the operator response and the result store.
type Result struct {
	RunID          string        `json:"run_id"`
	Simulated      bool          `json:"simulated"`
	Aborted        bool          `json:"aborted"`
	GroupsDetected int           `json:"groups_detected"`
	OrdersCreated  int           `json:"orders_created"`
	Notes          []string      `json:"notes,omitempty"`
	Errors         []ImportError `json:"errors,omitempty"`
	Summary        string        `json:"summary"`
}
