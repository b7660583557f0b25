package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/delivery"
	"github.com/Matias-Artesi/odoo-attain/internal/importer"
)

type fakeOrderRepo struct {
	nextID int64
	orders map[int64]*SalesOrder
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*SalesOrder)}
}

func (r *fakeOrderRepo) WithTx(pgx.Tx) Repository { return r }

func (r *fakeOrderRepo) Create(_ context.Context, order SalesOrder) (int64, error) {
	r.nextID++
	order.ID = r.nextID
	r.orders[order.ID] = &order
	return order.ID, nil
}

func (r *fakeOrderRepo) InsertLine(_ context.Context, line SalesOrderLine) (int64, error) {
	r.nextID++
	line.ID = r.nextID
	o := r.orders[line.OrderID]
	o.Lines = append(o.Lines, line)
	return line.ID, nil
}

func (r *fakeOrderRepo) Get(_ context.Context, id int64) (*SalesOrder, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Lines = append([]SalesOrderLine(nil), o.Lines...)
	return &cp, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, status SalesOrderStatus) error {
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

type fakeDeliveryRepo struct {
	nextID   int64
	orders   map[int64]*delivery.DeliveryOrder
	onHand   map[int64]float64
	reserved map[int64]float64
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{
		orders:   make(map[int64]*delivery.DeliveryOrder),
		onHand:   make(map[int64]float64),
		reserved: make(map[int64]float64),
	}
}

func (r *fakeDeliveryRepo) WithTx(pgx.Tx) delivery.Repository { return r }

func (r *fakeDeliveryRepo) Create(_ context.Context, do delivery.DeliveryOrder) (int64, error) {
	r.nextID++
	do.ID = r.nextID
	r.orders[do.ID] = &do
	return do.ID, nil
}

func (r *fakeDeliveryRepo) InsertLine(_ context.Context, line delivery.Line) (int64, error) {
	r.nextID++
	line.ID = r.nextID
	do := r.orders[line.DeliveryOrderID]
	do.Lines = append(do.Lines, line)
	return line.ID, nil
}

func (r *fakeDeliveryRepo) Get(_ context.Context, id int64) (*delivery.DeliveryOrder, error) {
	do, ok := r.orders[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	cp := *do
	cp.Lines = append([]delivery.Line(nil), do.Lines...)
	return &cp, nil
}

func (r *fakeDeliveryRepo) ListOpenBySalesOrder(_ context.Context, salesOrderID int64) ([]delivery.DeliveryOrder, error) {
	var out []delivery.DeliveryOrder
	for _, do := range r.orders {
		if do.SalesOrderID == salesOrderID && !do.Status.IsFinal() {
			cp := *do
			cp.Lines = append([]delivery.Line(nil), do.Lines...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) SetLineDone(_ context.Context, lineID int64, qty float64) error {
	for _, do := range r.orders {
		for i := range do.Lines {
			if do.Lines[i].ID == lineID {
				do.Lines[i].QuantityDone = qty
				return nil
			}
		}
	}
	return delivery.ErrNotFound
}

func (r *fakeDeliveryRepo) SetStatus(_ context.Context, id int64, status delivery.Status) error {
	do, ok := r.orders[id]
	if !ok {
		return delivery.ErrNotFound
	}
	do.Status = status
	return nil
}

func (r *fakeDeliveryRepo) AvailableStock(_ context.Context, _, productID int64) (float64, error) {
	return r.onHand[productID] - r.reserved[productID], nil
}

func (r *fakeDeliveryRepo) AdjustReserved(_ context.Context, _, productID int64, delta float64) error {
	r.reserved[productID] += delta
	return nil
}

func (r *fakeDeliveryRepo) ConsumeStock(_ context.Context, _, productID int64, qty, reserved float64) error {
	r.onHand[productID] -= qty
	r.reserved[productID] -= reserved
	return nil
}

type fakeInvoiceRepo struct {
	nextID   int64
	invoices map[int64]*ar.Invoice
	posted   int64
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[int64]*ar.Invoice)}
}

func (r *fakeInvoiceRepo) WithTx(pgx.Tx) ar.Repository { return r }

func (r *fakeInvoiceRepo) Create(_ context.Context, inv ar.Invoice) (int64, error) {
	r.nextID++
	inv.ID = r.nextID
	r.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (r *fakeInvoiceRepo) InsertLine(_ context.Context, line ar.InvoiceLine) (int64, error) {
	r.nextID++
	line.ID = r.nextID
	inv := r.invoices[line.InvoiceID]
	inv.Lines = append(inv.Lines, line)
	return line.ID, nil
}

func (r *fakeInvoiceRepo) Get(_ context.Context, id int64) (*ar.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ar.ErrNotFound
	}
	cp := *inv
	cp.Lines = append([]ar.InvoiceLine(nil), inv.Lines...)
	return &cp, nil
}

func (r *fakeInvoiceRepo) SetInvoiceDate(_ context.Context, id int64, date time.Time) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ar.ErrNotFound
	}
	d := date
	inv.InvoiceDate = &d
	return nil
}

func (r *fakeInvoiceRepo) SetJournal(_ context.Context, id, journalID int64) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ar.ErrNotFound
	}
	j := journalID
	inv.JournalID = &j
	return nil
}

func (r *fakeInvoiceRepo) Post(_ context.Context, id int64, number string) error {
	inv, ok := r.invoices[id]
	if !ok {
		return ar.ErrNotFound
	}
	if inv.Status != ar.StatusDraft {
		return ar.ErrNotFound
	}
	inv.Number = number
	inv.Status = ar.StatusPosted
	return nil
}

func (r *fakeInvoiceRepo) NextSequence(context.Context, int64, int) (int64, error) {
	r.posted++
	return r.posted, nil
}

type testEnv struct {
	svc        *Service
	orders     *fakeOrderRepo
	deliveries *fakeDeliveryRepo
	invoices   *fakeInvoiceRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orderRepo := newFakeOrderRepo()
	deliveryRepo := newFakeDeliveryRepo()
	invoiceRepo := newFakeInvoiceRepo()
	svc := NewService(logger, nil, orderRepo, delivery.NewService(deliveryRepo, logger), ar.NewService(invoiceRepo))
	return &testEnv{svc: svc, orders: orderRepo, deliveries: deliveryRepo, invoices: invoiceRepo}
}

func submission() importer.Submission {
	invDate := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	return importer.Submission{
		OrderKey:    "SO0001",
		PartnerID:   1,
		CompanyID:   1,
		InvoiceDate: &invDate,
		Lines: []importer.PreparedLine{
			{Kind: importer.LineCatalog, ProductID: 10, Description: "Widget 100", Quantity: 2, UnitPrice: 140},
			{Kind: importer.LineCustom, ProductID: 99, Description: "Installation visit", Quantity: 1, UnitPrice: 80, TaxID: 7},
		},
		TrackedLines: importer.TrackedSkip,
		AutoProcess:  true,
	}
}

func TestSubmitRunsFullAutomation(t *testing.T) {
	env := newTestEnv(t)
	env.deliveries.onHand[10] = 100
	ctx := context.Background()

	created, err := env.svc.submit(ctx, submission())
	require.NoError(t, err)
	require.NotZero(t, created.OrderID)
	require.NotZero(t, created.InvoiceID)

	order, err := env.orders.Get(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, SalesOrderStatusConfirmed, order.Status)
	assert.Equal(t, 2*140.0+80.0, order.Total)
	require.Len(t, order.Lines, 2)
	assert.False(t, order.Lines[0].IsService)
	assert.True(t, order.Lines[1].IsService)

	// Only the stockable line moves; the delivery is forced to done.
	open, err := env.deliveries.ListOpenBySalesOrder(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Empty(t, open)
	do, err := env.deliveries.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDone, do.Status)
	require.Len(t, do.Lines, 1)
	assert.Equal(t, 2.0, do.Lines[0].QuantityDone)
	// Consumption hits stock.
	assert.Equal(t, 98.0, env.deliveries.onHand[10])

	// The invoice is drafted from every order line and carries the imported
	// invoice date.
	inv, err := env.invoices.Get(ctx, created.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, ar.StatusDraft, inv.Status)
	assert.Equal(t, "SO0001", inv.Origin)
	require.Len(t, inv.Lines, 2)
	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, 2024, inv.InvoiceDate.Year())
	require.NotNil(t, inv.Lines[1].TaxID)
	assert.Equal(t, int64(7), *inv.Lines[1].TaxID)
}

func TestSubmitWithoutAutoProcess(t *testing.T) {
	env := newTestEnv(t)
	sub := submission()
	sub.AutoProcess = false

	created, err := env.svc.submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Zero(t, created.InvoiceID)
	assert.Empty(t, env.deliveries.orders)
	assert.Empty(t, env.invoices.invoices)
}

func TestSubmitTrackedLineSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.deliveries.onHand[11] = 100
	sub := submission()
	sub.Lines = []importer.PreparedLine{
		{Kind: importer.LineCatalog, ProductID: 10, Description: "Widget 100", Quantity: 2, UnitPrice: 140},
		{Kind: importer.LineCatalog, ProductID: 11, Description: "Widget 200", Quantity: 1, UnitPrice: 320, Tracked: true},
	}

	created, err := env.svc.submit(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, created.Notes, 1)
	assert.Contains(t, created.Notes[0], "left undelivered")

	// The short delivery closes without a backorder.
	open, err := env.deliveries.ListOpenBySalesOrder(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Empty(t, open)
	// The tracked line is still billed.
	inv, err := env.invoices.Get(context.Background(), created.InvoiceID)
	require.NoError(t, err)
	assert.Len(t, inv.Lines, 2)
}

func TestSubmitTrackedLineErrorPolicy(t *testing.T) {
	env := newTestEnv(t)
	sub := submission()
	sub.TrackedLines = importer.TrackedError
	sub.Lines = []importer.PreparedLine{
		{Kind: importer.LineCatalog, ProductID: 11, Description: "Widget 200", Quantity: 1, UnitPrice: 320, Tracked: true},
	}

	_, err := env.svc.submit(context.Background(), sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracked")
}

func TestSubmitReservationFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	// No stock at all: reservation fails, forced completion still delivers.
	sub := submission()

	created, err := env.svc.submit(context.Background(), sub)
	require.NoError(t, err)
	require.NotZero(t, created.InvoiceID)

	open, err := env.deliveries.ListOpenBySalesOrder(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Empty(t, open)
	// Stock goes negative rather than blocking the import.
	assert.Equal(t, -2.0, env.deliveries.onHand[10])
}

func TestSubmitServiceOnlyOrderHasNoDelivery(t *testing.T) {
	env := newTestEnv(t)
	sub := submission()
	sub.Lines = sub.Lines[1:]

	created, err := env.svc.submit(context.Background(), sub)
	require.NoError(t, err)
	require.NotZero(t, created.InvoiceID)
	assert.Empty(t, env.deliveries.orders)
}

func TestPostInvoiceAssignsSequentialNumber(t *testing.T) {
	env := newTestEnv(t)
	env.deliveries.onHand[10] = 100
	ctx := context.Background()

	created, err := env.svc.submit(ctx, submission())
	require.NoError(t, err)

	require.NoError(t, env.svc.PostInvoice(ctx, created.InvoiceID))

	inv, err := env.invoices.Get(ctx, created.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, ar.StatusPosted, inv.Status)
	assert.Equal(t, "INV/2024/0001", inv.Number)

	// Posting twice fails.
	assert.Error(t, env.svc.PostInvoice(ctx, created.InvoiceID))
}

func TestConfirmRejectsNonDraftOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.orders.Create(ctx, SalesOrder{Name: "SO0009", Status: SalesOrderStatusConfirmed})
	require.NoError(t, err)
	order, err := env.orders.Get(ctx, id)
	require.NoError(t, err)

	err = env.svc.confirm(ctx, order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft")
}

func TestSetInvoiceJournal(t *testing.T) {
	env := newTestEnv(t)
	env.deliveries.onHand[10] = 100
	ctx := context.Background()

	created, err := env.svc.submit(ctx, submission())
	require.NoError(t, err)

	require.NoError(t, env.svc.SetInvoiceJournal(ctx, created.InvoiceID, 5))
	inv, err := env.invoices.Get(ctx, created.InvoiceID)
	require.NoError(t, err)
	require.NotNil(t, inv.JournalID)
	assert.Equal(t, int64(5), *inv.JournalID)
}
