package delivery

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository. Stock is keyed by product id; company
// scoping is irrelevant for these tests.
type fakeRepo struct {
	nextID   int64
	orders   map[int64]*DeliveryOrder
	onHand   map[int64]float64
	reserved map[int64]float64
	consumed map[int64]float64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:   make(map[int64]*DeliveryOrder),
		onHand:   make(map[int64]float64),
		reserved: make(map[int64]float64),
		consumed: make(map[int64]float64),
	}
}

func (r *fakeRepo) WithTx(pgx.Tx) Repository { return r }

func (r *fakeRepo) Create(_ context.Context, do DeliveryOrder) (int64, error) {
	r.nextID++
	do.ID = r.nextID
	r.orders[do.ID] = &do
	return do.ID, nil
}

func (r *fakeRepo) InsertLine(_ context.Context, line Line) (int64, error) {
	r.nextID++
	line.ID = r.nextID
	do := r.orders[line.DeliveryOrderID]
	do.Lines = append(do.Lines, line)
	return line.ID, nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (*DeliveryOrder, error) {
	do, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *do
	cp.Lines = append([]Line(nil), do.Lines...)
	return &cp, nil
}

func (r *fakeRepo) ListOpenBySalesOrder(_ context.Context, salesOrderID int64) ([]DeliveryOrder, error) {
	var out []DeliveryOrder
	for _, do := range r.orders {
		if do.SalesOrderID == salesOrderID && !do.Status.IsFinal() {
			out = append(out, *do)
		}
	}
	return out, nil
}

func (r *fakeRepo) SetLineDone(_ context.Context, lineID int64, qty float64) error {
	for _, do := range r.orders {
		for i := range do.Lines {
			if do.Lines[i].ID == lineID {
				do.Lines[i].QuantityDone = qty
				return nil
			}
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) SetStatus(_ context.Context, id int64, status Status) error {
	do, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	do.Status = status
	return nil
}

func (r *fakeRepo) AvailableStock(_ context.Context, _, productID int64) (float64, error) {
	return r.onHand[productID] - r.reserved[productID], nil
}

func (r *fakeRepo) AdjustReserved(_ context.Context, _, productID int64, delta float64) error {
	r.reserved[productID] += delta
	return nil
}

func (r *fakeRepo) ConsumeStock(_ context.Context, _, productID int64, qty, reserved float64) error {
	r.onHand[productID] -= qty
	r.reserved[productID] -= reserved
	r.consumed[productID] += qty
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestCreateForOrderSkipsEmptyInput(t *testing.T) {
	svc, _ := newTestService(t)
	do, err := svc.CreateForOrder(context.Background(), 1, 1, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, do)
}

func TestReserveChecksAvailabilityFirst(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.onHand[10] = 5
	repo.onHand[11] = 0

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{
		{ProductID: 10, Quantity: 2},
		{ProductID: 11, Quantity: 1},
	})
	require.NoError(t, err)

	err = svc.Reserve(ctx, do)
	require.Error(t, err)
	// No partial reservation: the first line must not hold stock either.
	assert.Zero(t, repo.reserved[10])
	assert.Equal(t, StatusDraft, do.Status)
}

func TestReserveHoldsStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.onHand[10] = 5

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{{ProductID: 10, Quantity: 2}})
	require.NoError(t, err)
	require.NoError(t, svc.Reserve(ctx, do))

	assert.Equal(t, 2.0, repo.reserved[10])
	assert.Equal(t, StatusReserved, do.Status)
}

func TestForceQuantitiesSkipsTrackedLines(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{
		{ProductID: 10, Quantity: 2},
		{ProductID: 11, Quantity: 1, Tracked: true},
	})
	require.NoError(t, err)

	skipped, err := svc.ForceQuantities(ctx, do)
	require.NoError(t, err)

	require.Len(t, skipped, 1)
	assert.Equal(t, int64(11), skipped[0].ProductID)
	assert.Equal(t, 2.0, do.Lines[0].QuantityDone)
	assert.Zero(t, do.Lines[1].QuantityDone)
}

func TestValidateCompleteDeliveryConsumesStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.onHand[10] = 5

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{{ProductID: 10, Quantity: 2}})
	require.NoError(t, err)
	require.NoError(t, svc.Reserve(ctx, do))
	_, err = svc.ForceQuantities(ctx, do)
	require.NoError(t, err)

	outcome, err := svc.Validate(ctx, do)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDone, outcome.Kind)
	assert.Equal(t, StatusDone, do.Status)
	assert.Equal(t, 3.0, repo.onHand[10])
	// The reservation is released on consumption.
	assert.Zero(t, repo.reserved[10])
}

func TestValidateShortDeliveryNeedsDecision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{
		{ProductID: 10, Quantity: 2},
		{ProductID: 11, Quantity: 1, Tracked: true},
	})
	require.NoError(t, err)
	_, err = svc.ForceQuantities(ctx, do)
	require.NoError(t, err)

	outcome, err := svc.Validate(ctx, do)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNeedsBackorderDecision, outcome.Kind)
	require.Len(t, outcome.Remaining, 1)
	assert.Equal(t, int64(11), outcome.Remaining[0].ProductID)
	assert.Equal(t, StatusDraft, do.Status)
}

func TestResolveBackorderCompleteNow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.onHand[10] = 5

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{
		{ProductID: 10, Quantity: 2},
		{ProductID: 11, Quantity: 1, Tracked: true},
	})
	require.NoError(t, err)
	_, err = svc.ForceQuantities(ctx, do)
	require.NoError(t, err)

	require.NoError(t, svc.ResolveBackorder(ctx, do, DecisionCompleteNow))

	assert.Equal(t, StatusDone, do.Status)
	assert.Equal(t, 2.0, repo.consumed[10])
	// Complete-now closes short: no second delivery appears.
	open, err := svc.ListOpenBySalesOrder(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestResolveBackorderOpensRemainderDelivery(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.onHand[10] = 5

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{
		{ProductID: 10, Quantity: 2},
		{ProductID: 11, Quantity: 3, Tracked: true},
	})
	require.NoError(t, err)
	_, err = svc.ForceQuantities(ctx, do)
	require.NoError(t, err)

	require.NoError(t, svc.ResolveBackorder(ctx, do, DecisionBackorder))

	open, err := svc.ListOpenBySalesOrder(ctx, 1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Len(t, open[0].Lines, 1)
	assert.Equal(t, int64(11), open[0].Lines[0].ProductID)
	assert.Equal(t, 3.0, open[0].Lines[0].QuantityPlanned)
}

func TestValidateFinalDeliveryFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	do, err := svc.CreateForOrder(ctx, 1, 1, 1, []LineInput{{ProductID: 10, Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.ForceQuantities(ctx, do)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, do)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, do)
	assert.Error(t, err)
}
