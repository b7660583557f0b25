package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested delivery order was not found.
var ErrNotFound = errors.New("delivery order not found")

// Repository persists delivery orders.
type Repository interface {
	WithTx(tx pgx.Tx) Repository
	Create(ctx context.Context, do DeliveryOrder) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	Get(ctx context.Context, id int64) (*DeliveryOrder, error)
	ListOpenBySalesOrder(ctx context.Context, salesOrderID int64) ([]DeliveryOrder, error)
	SetLineDone(ctx context.Context, lineID int64, qty float64) error
	SetStatus(ctx context.Context, id int64, status Status) error
	// AvailableStock returns on-hand minus reserved for the product in the
	// company.
	AvailableStock(ctx context.Context, companyID, productID int64) (float64, error)
	AdjustReserved(ctx context.Context, companyID, productID int64, delta float64) error
	ConsumeStock(ctx context.Context, companyID, productID int64, qty, reserved float64) error
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

// WithTx returns a repository bound to the transaction.
func (r *repository) WithTx(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, do DeliveryOrder) (int64, error) {
	const query = `
		INSERT INTO delivery_orders (sales_order_id, company_id, partner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query, do.SalesOrderID, do.CompanyID, do.PartnerID, do.Status, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("delivery: create: %w", err)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line Line) (int64, error) {
	const query = `
		INSERT INTO delivery_order_lines (delivery_order_id, sales_order_line_id, product_id, quantity_planned, quantity_done, tracked)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		line.DeliveryOrderID, line.SalesOrderLine, line.ProductID,
		line.QuantityPlanned, line.QuantityDone, line.Tracked).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("delivery: insert line: %w", err)
	}
	return id, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*DeliveryOrder, error) {
	const query = `
		SELECT id, sales_order_id, company_id, partner_id, status, created_at, updated_at
		FROM delivery_orders
		WHERE id = $1`
	var do DeliveryOrder
	err := r.db.QueryRow(ctx, query, id).Scan(
		&do.ID, &do.SalesOrderID, &do.CompanyID, &do.PartnerID, &do.Status, &do.CreatedAt, &do.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delivery: get: %w", err)
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	do.Lines = lines
	return &do, nil
}

func (r *repository) lines(ctx context.Context, deliveryOrderID int64) ([]Line, error) {
	const query = `
		SELECT l.id, l.delivery_order_id, l.sales_order_line_id, l.product_id, p.name,
		       l.quantity_planned, l.quantity_done, l.tracked
		FROM delivery_order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.delivery_order_id = $1
		ORDER BY l.id`
	rows, err := r.db.Query(ctx, query, deliveryOrderID)
	if err != nil {
		return nil, fmt.Errorf("delivery: lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DeliveryOrderID, &l.SalesOrderLine, &l.ProductID, &l.ProductName,
			&l.QuantityPlanned, &l.QuantityDone, &l.Tracked); err != nil {
			return nil, fmt.Errorf("delivery: scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) ListOpenBySalesOrder(ctx context.Context, salesOrderID int64) ([]DeliveryOrder, error) {
	const query = `
		SELECT id
		FROM delivery_orders
		WHERE sales_order_id = $1 AND status NOT IN ('DONE', 'CANCELLED')
		ORDER BY id`
	rows, err := r.db.Query(ctx, query, salesOrderID)
	if err != nil {
		return nil, fmt.Errorf("delivery: list open: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("delivery: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var dos []DeliveryOrder
	for _, id := range ids {
		do, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		dos = append(dos, *do)
	}
	return dos, nil
}

func (r *repository) SetLineDone(ctx context.Context, lineID int64, qty float64) error {
	_, err := r.db.Exec(ctx, `UPDATE delivery_order_lines SET quantity_done = $2 WHERE id = $1`, lineID, qty)
	if err != nil {
		return fmt.Errorf("delivery: set line done: %w", err)
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.db.Exec(ctx, `UPDATE delivery_orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("delivery: set status: %w", err)
	}
	return nil
}

func (r *repository) AvailableStock(ctx context.Context, companyID, productID int64) (float64, error) {
	const query = `
		SELECT on_hand - reserved
		FROM stock_levels
		WHERE company_id = $1 AND product_id = $2`
	var available float64
	err := r.db.QueryRow(ctx, query, companyID, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("delivery: available stock: %w", err)
	}
	return available, nil
}

func (r *repository) AdjustReserved(ctx context.Context, companyID, productID int64, delta float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE stock_levels SET reserved = reserved + $3 WHERE company_id = $1 AND product_id = $2`,
		companyID, productID, delta)
	if err != nil {
		return fmt.Errorf("delivery: adjust reserved: %w", err)
	}
	return nil
}

func (r *repository) ConsumeStock(ctx context.Context, companyID, productID int64, qty, reserved float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE stock_levels SET on_hand = on_hand - $3, reserved = reserved - $4 WHERE company_id = $1 AND product_id = $2`,
		companyID, productID, qty, reserved)
	if err != nil {
		return fmt.Errorf("delivery: consume stock: %w", err)
	}
	return nil
}
