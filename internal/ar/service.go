package ar

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InvoiceLineInput is one billable line when drafting an invoice.
type InvoiceLineInput struct {
	ProductID   int64
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxID       int64
}

// InvoiceInput drafts an invoice from a sales order's billable lines.
type InvoiceInput struct {
	PartnerID    int64
	CompanyID    int64
	SalesOrderID int64
	// Origin is the sales order name; it leads the invoice PDF filename.
	Origin string
	Lines  []InvoiceLineInput
}

// Service provides invoice operations for the import automation.
type Service struct {
	repo Repository
}

// NewService creates a new service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// WithTx returns a service bound to the transaction.
func (s *Service) WithTx(tx pgx.Tx) *Service {
	return &Service{repo: s.repo.WithTx(tx)}
}

// CreateDraft creates a draft customer invoice from the order lines.
func (s *Service) CreateDraft(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("ar: no billable lines for order %s", in.Origin)
	}

	var total float64
	for _, l := range in.Lines {
		total += l.Quantity * l.UnitPrice
	}

	id, err := s.repo.Create(ctx, Invoice{
		MoveType:   MoveCustomerInvoice,
		Status:     StatusDraft,
		PartnerID:  in.PartnerID,
		CompanyID:  in.CompanyID,
		SalesOrder: in.SalesOrderID,
		Origin:     in.Origin,
		Total:      total,
	})
	if err != nil {
		return nil, err
	}

	for _, l := range in.Lines {
		line := InvoiceLine{
			InvoiceID:   id,
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.Quantity * l.UnitPrice,
		}
		if l.TaxID != 0 {
			taxID := l.TaxID
			line.TaxID = &taxID
		}
		if _, err := s.repo.InsertLine(ctx, line); err != nil {
			return nil, err
		}
	}

	return s.repo.Get(ctx, id)
}

// Get loads one invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// SetInvoiceDate overrides the draft invoice date with the imported one.
func (s *Service) SetInvoiceDate(ctx context.Context, id int64, date time.Time) error {
	return s.repo.SetInvoiceDate(ctx, id, date)
}

// SetJournal reassigns the invoice to the journal resolved by code.
func (s *Service) SetJournal(ctx context.Context, id, journalID int64) error {
	return s.repo.SetJournal(ctx, id, journalID)
}

// Post validates the draft, assigns its number from the company's yearly
// sequence and marks it posted.
func (s *Service) Post(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, fmt.Errorf("ar: invoice %d already posted as %s", id, inv.Number)
	}
	if inv.Total < 0 {
		return nil, fmt.Errorf("ar: invoice %d has a negative total", id)
	}

	year := time.Now().Year()
	if inv.InvoiceDate != nil {
		year = inv.InvoiceDate.Year()
	}
	seq, err := s.repo.NextSequence(ctx, inv.CompanyID, year)
	if err != nil {
		return nil, err
	}
	number := fmt.Sprintf("INV/%d/%04d", year, seq)
	if err := s.repo.Post(ctx, id, number); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}
