package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested invoice was not found.
var ErrNotFound = errors.New("invoice not found")

// Repository persists customer invoices.
type Repository interface {
	WithTx(tx pgx.Tx) Repository
	Create(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	SetInvoiceDate(ctx context.Context, id int64, date time.Time) error
	SetJournal(ctx context.Context, id, journalID int64) error
	// Post assigns the number and flips the status in one statement.
	Post(ctx context.Context, id int64, number string) error
	// NextSequence returns the next posting sequence for the company and
	// year.
	NextSequence(ctx context.Context, companyID int64, year int) (int64, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithTx(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	const query = `
		INSERT INTO invoices (move_type, status, partner_id, company_id, sales_order_id, origin,
		                      invoice_date, journal_id, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		inv.MoveType, inv.Status, inv.PartnerID, inv.CompanyID, inv.SalesOrder, inv.Origin,
		inv.InvoiceDate, inv.JournalID, inv.Total, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ar: create invoice: %w", err)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	const query = `
		INSERT INTO invoice_lines (invoice_id, product_id, description, quantity, unit_price, tax_id, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		line.InvoiceID, line.ProductID, line.Description, line.Quantity,
		line.UnitPrice, line.TaxID, line.LineTotal).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ar: insert line: %w", err)
	}
	return id, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	const query = `
		SELECT id, COALESCE(number, ''), move_type, status, partner_id, company_id,
		       sales_order_id, COALESCE(origin, ''), invoice_date, journal_id, total,
		       created_at, updated_at
		FROM invoices
		WHERE id = $1`
	var inv Invoice
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Number, &inv.MoveType, &inv.Status, &inv.PartnerID, &inv.CompanyID,
		&inv.SalesOrder, &inv.Origin, &inv.InvoiceDate, &inv.JournalID, &inv.Total,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ar: get invoice: %w", err)
	}

	const lineQuery = `
		SELECT id, invoice_id, product_id, description, quantity, unit_price, tax_id, line_total
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY id`
	rows, err := r.db.Query(ctx, lineQuery, id)
	if err != nil {
		return nil, fmt.Errorf("ar: invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.TaxID, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("ar: scan line: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) SetInvoiceDate(ctx context.Context, id int64, date time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE invoices SET invoice_date = $2, updated_at = $3 WHERE id = $1`, id, date, time.Now())
	if err != nil {
		return fmt.Errorf("ar: set invoice date: %w", err)
	}
	return nil
}

func (r *repository) SetJournal(ctx context.Context, id, journalID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE invoices SET journal_id = $2, updated_at = $3 WHERE id = $1`, id, journalID, time.Now())
	if err != nil {
		return fmt.Errorf("ar: set journal: %w", err)
	}
	return nil
}

func (r *repository) Post(ctx context.Context, id int64, number string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = 'POSTED', number = $2, updated_at = $3 WHERE id = $1 AND status = 'DRAFT'`,
		id, number, time.Now())
	if err != nil {
		return fmt.Errorf("ar: post invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ar: invoice %d is not a draft", id)
	}
	return nil
}

func (r *repository) NextSequence(ctx context.Context, companyID int64, year int) (int64, error) {
	const query = `
		SELECT COUNT(*) + 1
		FROM invoices
		WHERE company_id = $1 AND status = 'POSTED' AND EXTRACT(YEAR FROM updated_at)::int = $2`
	var seq int64
	if err := r.db.QueryRow(ctx, query, companyID, year).Scan(&seq); err != nil {
		return 0, fmt.Errorf("ar: next sequence: %w", err)
	}
	return seq, nil
}
