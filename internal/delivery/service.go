package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// LineInput describes one movement when creating a delivery from a sales
// order. Service lines never reach this type; only stockable products move.
type LineInput struct {
	SalesOrderLine int64
	ProductID      int64
	Quantity       float64
	Tracked        bool
}

// Service provides the delivery workflow used by the sales automation.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// WithTx returns a service bound to the transaction.
func (s *Service) WithTx(tx pgx.Tx) *Service {
	return &Service{repo: s.repo.WithTx(tx), logger: s.logger}
}

// CreateForOrder generates the outgoing delivery for a confirmed sales
// order.
func (s *Service) CreateForOrder(ctx context.Context, salesOrderID, companyID, partnerID int64, lines []LineInput) (*DeliveryOrder, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	id, err := s.repo.Create(ctx, DeliveryOrder{
		SalesOrderID: salesOrderID,
		CompanyID:    companyID,
		PartnerID:    partnerID,
		Status:       StatusDraft,
	})
	if err != nil {
		return nil, err
	}
	for _, in := range lines {
		if _, err := s.repo.InsertLine(ctx, Line{
			DeliveryOrderID: id,
			SalesOrderLine:  in.SalesOrderLine,
			ProductID:       in.ProductID,
			QuantityPlanned: in.Quantity,
			Tracked:         in.Tracked,
		}); err != nil {
			return nil, err
		}
	}
	return s.repo.Get(ctx, id)
}

// ListOpenBySalesOrder returns the non-final deliveries of a sales order.
func (s *Service) ListOpenBySalesOrder(ctx context.Context, salesOrderID int64) ([]DeliveryOrder, error) {
	return s.repo.ListOpenBySalesOrder(ctx, salesOrderID)
}

// Reserve attempts a stock reservation for every line. It fails on the
// first product without sufficient available stock; callers in the import
// automation treat that failure as best-effort and move on.
func (s *Service) Reserve(ctx context.Context, do *DeliveryOrder) error {
	if do.Status.IsFinal() {
		return fmt.Errorf("delivery: cannot reserve %s order %d", do.Status, do.ID)
	}
	for _, line := range do.Lines {
		available, err := s.repo.AvailableStock(ctx, do.CompanyID, line.ProductID)
		if err != nil {
			return err
		}
		if available < line.QuantityPlanned {
			return fmt.Errorf("delivery: insufficient stock for %s: need %g, available %g",
				line.ProductName, line.QuantityPlanned, available)
		}
	}
	for _, line := range do.Lines {
		if err := s.repo.AdjustReserved(ctx, do.CompanyID, line.ProductID, line.QuantityPlanned); err != nil {
			return err
		}
	}
	if err := s.repo.SetStatus(ctx, do.ID, StatusReserved); err != nil {
		return err
	}
	do.Status = StatusReserved
	return nil
}

// ForceQuantities sets the delivered quantity of every line to the planned
// quantity, except lot/serial tracked lines, which are returned so the
// caller can apply its tracked-line policy. Fabricating traceability data is
// never an option here.
func (s *Service) ForceQuantities(ctx context.Context, do *DeliveryOrder) ([]Line, error) {
	var skipped []Line
	for i := range do.Lines {
		line := &do.Lines[i]
		if line.Tracked {
			skipped = append(skipped, *line)
			continue
		}
		if line.QuantityDone >= line.QuantityPlanned {
			continue
		}
		if err := s.repo.SetLineDone(ctx, line.ID, line.QuantityPlanned); err != nil {
			return nil, err
		}
		line.QuantityDone = line.QuantityPlanned
	}
	return skipped, nil
}

// Validate closes the delivery when every line is complete; otherwise it
// reports the short lines as a backorder decision for the caller.
func (s *Service) Validate(ctx context.Context, do *DeliveryOrder) (Outcome, error) {
	if do.Status.IsFinal() {
		return Outcome{}, fmt.Errorf("delivery: cannot validate %s order %d", do.Status, do.ID)
	}
	var remaining []Line
	for _, line := range do.Lines {
		if line.Remaining() > 0 {
			remaining = append(remaining, line)
		}
	}
	if len(remaining) > 0 {
		return Outcome{Kind: OutcomeNeedsBackorderDecision, Remaining: remaining}, nil
	}
	if err := s.finalize(ctx, do); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeDone}, nil
}

// ResolveBackorder applies the decision to a short delivery. CompleteNow
// closes it at the delivered quantities; Backorder additionally opens a new
// delivery for the remainder.
func (s *Service) ResolveBackorder(ctx context.Context, do *DeliveryOrder, decision BackorderDecision) error {
	if do.Status.IsFinal() {
		return fmt.Errorf("delivery: cannot resolve %s order %d", do.Status, do.ID)
	}
	if decision == DecisionBackorder {
		var rest []LineInput
		for _, line := range do.Lines {
			if line.Remaining() > 0 {
				rest = append(rest, LineInput{
					SalesOrderLine: line.SalesOrderLine,
					ProductID:      line.ProductID,
					Quantity:       line.Remaining(),
					Tracked:        line.Tracked,
				})
			}
		}
		if _, err := s.CreateForOrder(ctx, do.SalesOrderID, do.CompanyID, do.PartnerID, rest); err != nil {
			return fmt.Errorf("delivery: create backorder: %w", err)
		}
	}
	return s.finalize(ctx, do)
}

// finalize consumes stock for delivered quantities, releases reservations
// and marks the delivery done.
func (s *Service) finalize(ctx context.Context, do *DeliveryOrder) error {
	for _, line := range do.Lines {
		reserved := 0.0
		if do.Status == StatusReserved {
			reserved = line.QuantityPlanned
		}
		if line.QuantityDone == 0 && reserved == 0 {
			continue
		}
		if err := s.repo.ConsumeStock(ctx, do.CompanyID, line.ProductID, line.QuantityDone, reserved); err != nil {
			return err
		}
	}
	if err := s.repo.SetStatus(ctx, do.ID, StatusDone); err != nil {
		return err
	}
	do.Status = StatusDone
	return nil
}
