package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested sales order was not found.
var ErrNotFound = errors.New("sales order not found")

// Repository persists sales orders.
type Repository interface {
	WithTx(tx pgx.Tx) Repository
	Create(ctx context.Context, order SalesOrder) (int64, error)
	InsertLine(ctx context.Context, line SalesOrderLine) (int64, error)
	Get(ctx context.Context, id int64) (*SalesOrder, error)
	UpdateStatus(ctx context.Context, id int64, status SalesOrderStatus) error
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

func (r *repository) Create(ctx context.Context, order SalesOrder) (int64, error) {
	const query = `
		INSERT INTO sales_orders (name, company_id, partner_id, order_date, invoice_date_import,
		                          status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		order.Name, order.CompanyID, order.PartnerID, order.OrderDate, order.InvoiceDateImport,
		order.Status, order.Total, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales/orders: create: %w", err)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line SalesOrderLine) (int64, error) {
	const query = `
		INSERT INTO sales_order_lines (sales_order_id, product_id, description, quantity,
		                               unit_price, tax_id, is_service, tracked, line_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		line.OrderID, line.ProductID, line.Description, line.Quantity,
		line.UnitPrice, line.TaxID, line.IsService, line.Tracked, line.LineOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales/orders: insert line: %w", err)
	}
	return id, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	const query = `
		SELECT id, name, company_id, partner_id, order_date, invoice_date_import,
		       status, total, created_at, updated_at
		FROM sales_orders
		WHERE id = $1`
	var o SalesOrder
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.CompanyID, &o.PartnerID, &o.OrderDate, &o.InvoiceDateImport,
		&o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sales/orders: get: %w", err)
	}

	const lineQuery = `
		SELECT id, sales_order_id, product_id, description, quantity, unit_price,
		       tax_id, is_service, tracked, line_order
		FROM sales_order_lines
		WHERE sales_order_id = $1
		ORDER BY line_order, id`
	rows, err := r.db.Query(ctx, lineQuery, id)
	if err != nil {
		return nil, fmt.Errorf("sales/orders: lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l SalesOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.TaxID, &l.IsService, &l.Tracked, &l.LineOrder); err != nil {
			return nil, fmt.Errorf("sales/orders: scan line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status SalesOrderStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sales_orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("sales/orders: update status: %w", err)
	}
	return nil
}
