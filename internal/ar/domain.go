// Package ar manages customer invoices generated from imported sales
// orders.
package ar

import "time"

// InvoiceStatus enumerates invoice lifecycle values.
type InvoiceStatus string

const (
	StatusDraft  InvoiceStatus = "DRAFT"
	StatusPosted InvoiceStatus = "POSTED"
)

// MoveType distinguishes customer invoices from refunds. Only customer
// documents get the order-first filename treatment.
type MoveType string

const (
	MoveCustomerInvoice MoveType = "CUSTOMER_INVOICE"
	MoveCustomerRefund  MoveType = "CUSTOMER_REFUND"
)

// IsCustomerDocument reports whether the move faces a customer.
func (m MoveType) IsCustomerDocument() bool {
	return m == MoveCustomerInvoice || m == MoveCustomerRefund
}

// Invoice models one customer invoice. Number stays empty until posting
// assigns it from the journal sequence.
type Invoice struct {
	ID          int64
	Number      string
	MoveType    MoveType
	Status      InvoiceStatus
	PartnerID   int64
	CompanyID   int64
	SalesOrder  int64
	Origin      string
	InvoiceDate *time.Time
	JournalID   *int64
	Total       float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []InvoiceLine
}

// InvoiceLine is one billed line.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	ProductID   int64
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxID       *int64
	LineTotal   float64
}
