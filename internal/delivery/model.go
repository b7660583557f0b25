// Package delivery provides outgoing delivery orders and the forced
// completion flow used by the sales import automation.
package delivery

import "time"

// Status represents the lifecycle of a delivery order.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusReserved  Status = "RESERVED"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
)

// IsFinal reports whether the delivery cannot change anymore.
func (s Status) IsFinal() bool {
	return s == StatusDone || s == StatusCancelled
}

// DeliveryOrder represents one outgoing delivery generated by confirming a
// sales order.
type DeliveryOrder struct {
	ID           int64
	SalesOrderID int64
	CompanyID    int64
	PartnerID    int64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []Line
}

// Line is one product movement of a delivery order. Tracked lines carry
// lot/serial requirements and are never force-completed automatically.
type Line struct {
	ID              int64
	DeliveryOrderID int64
	SalesOrderLine  int64
	ProductID       int64
	ProductName     string
	QuantityPlanned float64
	QuantityDone    float64
	Tracked         bool
}

// Remaining is the quantity still undelivered on the line.
func (l Line) Remaining() float64 {
	return l.QuantityPlanned - l.QuantityDone
}
