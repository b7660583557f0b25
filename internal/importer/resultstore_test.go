package importer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matias-Artesi/odoo-attain/internal/shared"
)

func newResultStore(t *testing.T) (*ResultStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewResultStore(client, time.Hour), mr
}

func TestResultStoreRoundTrip(t *testing.T) {
	store, _ := newResultStore(t)
	ctx := context.Background()

	saved := &Result{
		RunID:          "run-1",
		GroupsDetected: 3,
		OrdersCreated:  2,
		Notes:          []string{"SO0001: tracked line skipped"},
		Errors:         []ImportError{{OrderKey: "SO0003", Kind: KindUnresolvedPartner, Message: "partner not found"}},
		Summary:        "Orders created: 2",
	}
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestResultStoreUnknownRun(t *testing.T) {
	store, _ := newResultStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResultStoreExpiry(t *testing.T) {
	store, mr := newResultStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Result{RunID: "run-2"}))
	mr.FastForward(2 * time.Hour)

	_, err := store.Get(ctx, "run-2")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResultStoreRejectsMissingRunID(t *testing.T) {
	store, _ := newResultStore(t)
	assert.Error(t, store.Save(context.Background(), &Result{}))
}
