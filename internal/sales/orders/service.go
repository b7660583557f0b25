package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/delivery"
	"github.com/Matias-Artesi/odoo-attain/internal/importer"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/db"
)

// Service implements the order-submission collaborator of the import
// pipeline. Each Submit call is transactional on its own; Atomic binds the
// whole run to one transaction for the abort-on-any-error policy.
type Service struct {
	logger     *slog.Logger
	pool       *pgxpool.Pool
	repo       Repository
	deliveries *delivery.Service
	invoices   *ar.Service

	// tx is set on copies produced by Atomic; nil means pool mode.
	tx pgx.Tx
}

// NewService constructs the submission service.
func NewService(logger *slog.Logger, pool *pgxpool.Pool, repo Repository, deliveries *delivery.Service, invoices *ar.Service) *Service {
	return &Service{
		logger:     logger,
		pool:       pool,
		repo:       repo,
		deliveries: deliveries,
		invoices:   invoices,
	}
}

func (s *Service) withTx(tx pgx.Tx) *Service {
	return &Service{
		logger:     s.logger,
		pool:       s.pool,
		repo:       s.repo.WithTx(tx),
		deliveries: s.deliveries.WithTx(tx),
		invoices:   s.invoices.WithTx(tx),
		tx:         tx,
	}
}

// Atomic runs fn inside one database transaction. An error from fn rolls
// back every order, delivery and invoice created through the passed Creator.
func (s *Service) Atomic(ctx context.Context, fn func(ctx context.Context, c importer.Creator) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, s.withTx(tx))
	})
}

// Submit creates one sales order and, because import submissions always set
// AutoProcess, runs the post-creation automation synchronously inside the
// same transaction.
func (s *Service) Submit(ctx context.Context, sub importer.Submission) (*importer.Created, error) {
	if s.tx != nil {
		return s.submit(ctx, sub)
	}
	var created *importer.Created
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		created, err = s.withTx(tx).submit(ctx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) submit(ctx context.Context, sub importer.Submission) (*importer.Created, error) {
	orderDate := time.Now()
	if sub.OrderDate != nil {
		orderDate = *sub.OrderDate
	}

	var total float64
	for _, l := range sub.Lines {
		total += l.Quantity * l.UnitPrice
	}

	order := SalesOrder{
		Name:              sub.OrderKey,
		CompanyID:         sub.CompanyID,
		PartnerID:         sub.PartnerID,
		OrderDate:         orderDate,
		InvoiceDateImport: sub.InvoiceDate,
		Status:            SalesOrderStatusDraft,
		Total:             total,
	}

	id, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	for i, l := range sub.Lines {
		line := SalesOrderLine{
			OrderID:     id,
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			IsService:   l.Kind == importer.LineCustom,
			Tracked:     l.Tracked,
			LineOrder:   i + 1,
		}
		if l.TaxID != 0 {
			taxID := l.TaxID
			line.TaxID = &taxID
		}
		if _, err := s.repo.InsertLine(ctx, line); err != nil {
			return nil, err
		}
	}

	created := &importer.Created{OrderID: id, OrderName: sub.OrderKey}
	if !sub.AutoProcess {
		return created, nil
	}

	full, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	invoiceID, notes, err := s.autoProcess(ctx, full, sub.TrackedLines)
	if err != nil {
		return nil, err
	}
	created.InvoiceID = invoiceID
	created.Notes = notes
	return created, nil
}

// SetInvoiceJournal reassigns the generated invoice's journal.
func (s *Service) SetInvoiceJournal(ctx context.Context, invoiceID, journalID int64) error {
	return s.invoices.SetJournal(ctx, invoiceID, journalID)
}

// PostInvoice posts the generated invoice.
func (s *Service) PostInvoice(ctx context.Context, invoiceID int64) error {
	if _, err := s.invoices.Post(ctx, invoiceID); err != nil {
		return fmt.Errorf("sales/orders: post invoice %d: %w", invoiceID, err)
	}
	return nil
}
