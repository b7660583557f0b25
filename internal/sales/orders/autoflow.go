package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/delivery"
	"github.com/Matias-Artesi/odoo-attain/internal/importer"
)

// autoProcess drives the fixed post-creation sequence: confirm the order,
// force its outgoing deliveries to completion, draft the invoice, apply the
// imported invoice date. Reservation failures are swallowed; everything else
// propagates to the import policy.
func (s *Service) autoProcess(ctx context.Context, order *SalesOrder, policy importer.TrackedLinePolicy) (int64, []string, error) {
	if err := s.confirm(ctx, order); err != nil {
		return 0, nil, err
	}

	notes, err := s.forceDeliver(ctx, order, policy)
	if err != nil {
		return 0, nil, err
	}

	invoice, err := s.createInvoice(ctx, order)
	if err != nil {
		return 0, nil, err
	}

	if order.InvoiceDateImport != nil {
		if err := s.invoices.SetInvoiceDate(ctx, invoice.ID, *order.InvoiceDateImport); err != nil {
			return 0, nil, fmt.Errorf("apply imported invoice date: %w", err)
		}
	}

	return invoice.ID, notes, nil
}

// confirm transitions the order to confirmed and generates the outgoing
// delivery for its stockable lines.
func (s *Service) confirm(ctx context.Context, order *SalesOrder) error {
	if order.Status != SalesOrderStatusDraft {
		return fmt.Errorf("sales/orders: can only confirm draft orders, %s is %s", order.Name, order.Status)
	}
	if err := s.repo.UpdateStatus(ctx, order.ID, SalesOrderStatusConfirmed); err != nil {
		return err
	}
	order.Status = SalesOrderStatusConfirmed

	var moves []delivery.LineInput
	for _, line := range order.Lines {
		if line.IsService {
			continue
		}
		moves = append(moves, delivery.LineInput{
			SalesOrderLine: line.ID,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			Tracked:        line.Tracked,
		})
	}
	if _, err := s.deliveries.CreateForOrder(ctx, order.ID, order.CompanyID, order.PartnerID, moves); err != nil {
		return fmt.Errorf("generate delivery: %w", err)
	}
	return nil
}

// forceDeliver completes every non-final outgoing delivery of the order.
func (s *Service) forceDeliver(ctx context.Context, order *SalesOrder, policy importer.TrackedLinePolicy) ([]string, error) {
	open, err := s.deliveries.ListOpenBySalesOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	var notes []string
	for i := range open {
		do := &open[i]

		if err := s.deliveries.Reserve(ctx, do); err != nil {
			// Best-effort: a failed reservation never blocks the import.
			s.logger.Warn("stock reservation failed",
				slog.String("order", order.Name),
				slog.Int64("delivery_id", do.ID),
				slog.Any("error", err))
		}

		skipped, err := s.deliveries.ForceQuantities(ctx, do)
		if err != nil {
			return nil, err
		}
		if len(skipped) > 0 && policy == importer.TrackedError {
			return nil, fmt.Errorf("delivery %d has %d lot/serial tracked lines that cannot be auto-completed", do.ID, len(skipped))
		}
		for _, line := range skipped {
			notes = append(notes, fmt.Sprintf("tracked line %q left undelivered on delivery %d", line.ProductName, do.ID))
		}

		outcome, err := s.deliveries.Validate(ctx, do)
		if err != nil {
			return nil, err
		}
		if outcome.Kind == delivery.OutcomeNeedsBackorderDecision {
			// Default resolution: complete now, no backorder.
			if err := s.deliveries.ResolveBackorder(ctx, do, delivery.DecisionCompleteNow); err != nil {
				return nil, err
			}
		}
	}
	return notes, nil
}

// createInvoice drafts the customer invoice from the order's billable
// lines.
func (s *Service) createInvoice(ctx context.Context, order *SalesOrder) (*ar.Invoice, error) {
	in := ar.InvoiceInput{
		PartnerID:    order.PartnerID,
		CompanyID:    order.CompanyID,
		SalesOrderID: order.ID,
		Origin:       order.Name,
	}
	for _, line := range order.Lines {
		l := ar.InvoiceLineInput{
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		}
		if line.TaxID != nil {
			l.TaxID = *line.TaxID
		}
		in.Lines = append(in.Lines, l)
	}
	inv, err := s.invoices.CreateDraft(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create draft invoice: %w", err)
	}
	return inv, nil
}
