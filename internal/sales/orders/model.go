// Package orders creates sales orders from import submissions and drives
// the post-creation automation: confirm, force deliveries, draft the
// invoice, apply the imported invoice date.
package orders

import "time"

// SalesOrderStatus enumerates order lifecycle values.
type SalesOrderStatus string

const (
	SalesOrderStatusDraft     SalesOrderStatus = "DRAFT"
	SalesOrderStatusConfirmed SalesOrderStatus = "CONFIRMED"
	SalesOrderStatusCompleted SalesOrderStatus = "COMPLETED"
)

// SalesOrder is one order created by the import.
type SalesOrder struct {
	ID        int64
	Name      string
	CompanyID int64
	PartnerID int64
	OrderDate time.Time
	// InvoiceDateImport is the invoice date requested by the spreadsheet;
	// the automation writes it onto the draft invoice.
	InvoiceDateImport *time.Time
	Status            SalesOrderStatus
	Total             float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []SalesOrderLine
}

// SalesOrderLine is one line of a sales order. Service lines ride on the
// fallback service product and never generate deliveries.
type SalesOrderLine struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxID       *int64
	IsService   bool
	Tracked     bool
	LineOrder   int
}
