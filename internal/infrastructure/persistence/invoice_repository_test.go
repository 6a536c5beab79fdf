package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(t *testing.T, number int64) *ledger.Invoice {
	t.Helper()

	inv, err := ledger.NewInvoice(number, "FV", uuid.New(), "Magazin Central SRL", uuid.New(), "")
	require.NoError(t, err)

	item, err := ledger.NewInvoiceItem(inv.ID, uuid.New(), "Apa minerala 2L", "buc",
		decimal.NewFromInt(10), decimal.NewFromFloat(4.50), decimal.NewFromInt(19))
	require.NoError(t, err)
	require.NoError(t, inv.AddItem(*item))

	return inv
}

func TestGormInvoiceRepository_SaveAndFind(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, 1001)
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("by ID with items", func(t *testing.T) {
		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), found.Number)
		assert.Equal(t, ledger.InvoiceStatusPending, found.Status)
		require.Len(t, found.Items, 1)
		assert.Equal(t, "Apa minerala 2L", found.Items[0].ProductName)
		assert.True(t, found.Items[0].LineTotal.Equal(decimal.NewFromInt(45)))
	})

	t.Run("by number", func(t *testing.T) {
		found, err := repo.FindByNumber(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, found.ID)
	})

	t.Run("unknown ID", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormInvoiceRepository_FindAll(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	first := newTestInvoice(t, 2001)
	second := newTestInvoice(t, 2002)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	t.Run("no filter", func(t *testing.T) {
		all, err := repo.FindAll(ctx, ledger.InvoiceFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("by partner", func(t *testing.T) {
		invoices, err := repo.FindAll(ctx, ledger.InvoiceFilter{PartnerID: &first.PartnerID})
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, first.ID, invoices[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		status := ledger.InvoiceStatusSent
		invoices, err := repo.FindAll(ctx, ledger.InvoiceFilter{Status: &status})
		require.NoError(t, err)
		assert.Empty(t, invoices)
	})
}

func TestGormInvoiceRepository_UpdateStatus(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, 3001)
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("pending to sending", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, inv.ID, ledger.InvoiceStatusPending, ledger.InvoiceStatusSending, "")
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceStatusSending, found.Status)
	})

	t.Run("second sender loses the race", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, inv.ID, ledger.InvoiceStatusPending, ledger.InvoiceStatusSending, "")
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("sending back to pending records the error", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, inv.ID, ledger.InvoiceStatusSending, ledger.InvoiceStatusPending, "connection refused")
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceStatusPending, found.Status)
		assert.Equal(t, "connection refused", found.LastError)
	})
}

func TestGormInvoiceRepository_CompleteSend(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	inv := newTestInvoice(t, 4001)
	require.NoError(t, repo.Save(ctx, inv))

	t.Run("refused while pending", func(t *testing.T) {
		err := repo.CompleteSend(ctx, inv.ID, "WME-555", time.Now())
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("completes from sending", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, inv.ID, ledger.InvoiceStatusPending, ledger.InvoiceStatusSending, ""))

		sentAt := time.Now()
		require.NoError(t, repo.CompleteSend(ctx, inv.ID, "WME-555", sentAt))

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceStatusSent, found.Status)
		assert.Equal(t, "WME-555", found.RemoteDocID)
		require.NotNil(t, found.SentAt)
		assert.WithinDuration(t, sentAt, *found.SentAt, time.Second)
	})
}

func TestGormInvoiceRepository_PendingAndUnsent(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	pending := newTestInvoice(t, 5001)
	sent := newTestInvoice(t, 5002)
	require.NoError(t, repo.Save(ctx, pending))
	require.NoError(t, repo.Save(ctx, sent))

	require.NoError(t, repo.UpdateStatus(ctx, sent.ID, ledger.InvoiceStatusPending, ledger.InvoiceStatusSending, ""))
	require.NoError(t, repo.CompleteSend(ctx, sent.ID, "WME-1", time.Now()))

	pendingList, err := repo.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, pendingList, 1)
	assert.Equal(t, pending.ID, pendingList[0].ID)

	unsent, err := repo.FindUnsent(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, pending.ID, unsent[0].ID)
}

func TestGormInvoiceRepository_Delete(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormInvoiceRepository(db.DB)
	ctx := context.Background()

	t.Run("pending invoice is removed with its items", func(t *testing.T) {
		inv := newTestInvoice(t, 6001)
		require.NoError(t, repo.Save(ctx, inv))

		require.NoError(t, repo.Delete(ctx, inv.ID))

		_, err := repo.FindByID(ctx, inv.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("sent invoice is refused", func(t *testing.T) {
		inv := newTestInvoice(t, 6002)
		require.NoError(t, repo.Save(ctx, inv))
		require.NoError(t, repo.UpdateStatus(ctx, inv.ID, ledger.InvoiceStatusPending, ledger.InvoiceStatusSending, ""))
		require.NoError(t, repo.CompleteSend(ctx, inv.ID, "WME-2", time.Now()))

		err := repo.Delete(ctx, inv.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = repo.FindByID(ctx, inv.ID)
		assert.NoError(t, err)
	})

	t.Run("missing invoice", func(t *testing.T) {
		err := repo.Delete(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
