package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/fraud"
)

var baseTime = time.Date(2025, 4, 14, 9, 0, 0, 0, time.UTC)

func sampleRecord(ticketID string, offset time.Duration, status fraud.Status) Record {
	return Record{
		TicketID:   ticketID,
		Timestamp:  baseTime.Add(offset),
		Station:    "Central Station",
		Amount:     decimal.RequireFromString("5.50"),
		FraudScore: 0.42,
		Status:     status,
		CreatedAt:  baseTime.Add(offset),
	}
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("insert then list recent returns it first", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertTransaction(ctx, sampleRecord("T-4587", 0, fraud.StatusPending))
		require.NoError(t, err)

		inserted, err := store.InsertTransaction(ctx, sampleRecord("T-4588", time.Minute, fraud.StatusFlagged))
		require.NoError(t, err)
		assert.NotEqual(t, [16]byte{}, [16]byte(inserted.ID))

		recent, err := store.ListRecentTransactions(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "T-4588", recent[0].TicketID)
		assert.Equal(t, fraud.StatusFlagged, recent[0].Status)
		assert.True(t, recent[0].Amount.Equal(decimal.RequireFromString("5.5")))
		assert.Equal(t, 0.42, recent[0].FraudScore)
	})

	t.Run("list recent orders by timestamp descending and honours limit", func(t *testing.T) {
		store := newStore(t)
		for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
			_, err := store.InsertTransaction(ctx, sampleRecord(fmt.Sprintf("T-%d", 1000+i), offset, fraud.StatusPending))
			require.NoError(t, err)
		}

		recent, err := store.ListRecentTransactions(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, []string{"T-1000", "T-1002", "T-1001"}, ticketIDs(recent))

		limited, err := store.ListRecentTransactions(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		none, err := store.ListRecentTransactions(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("list recent resolves sub-millisecond ordering", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertTransaction(ctx, sampleRecord("T-B", 100*time.Microsecond, fraud.StatusPending))
		require.NoError(t, err)
		_, err = store.InsertTransaction(ctx, sampleRecord("T-A", 900*time.Microsecond, fraud.StatusPending))
		require.NoError(t, err)

		recent, err := store.ListRecentTransactions(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"T-A"}, ticketIDs(recent))

		between, err := store.ListTransactionsBetween(ctx, baseTime.Add(200*time.Microsecond), baseTime.Add(time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, []string{"T-A"}, ticketIDs(between))
	})

	t.Run("equal timestamps fall back to creation time", func(t *testing.T) {
		store := newStore(t)
		older := sampleRecord("T-OLD", 0, fraud.StatusPending)
		newer := sampleRecord("T-NEW", 0, fraud.StatusPending)
		newer.CreatedAt = baseTime.Add(time.Second)
		earlier := sampleRecord("T-EARLIER", -time.Minute, fraud.StatusPending)

		for _, rec := range []Record{older, newer, earlier} {
			_, err := store.InsertTransaction(ctx, rec)
			require.NoError(t, err)
		}

		recent, err := store.ListRecentTransactions(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"T-NEW"}, ticketIDs(recent))

		recent, err = store.ListRecentTransactions(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"T-NEW", "T-OLD"}, ticketIDs(recent))

		between, err := store.ListTransactionsBetween(ctx, baseTime.Add(-time.Hour), baseTime)
		require.NoError(t, err)
		assert.Equal(t, []string{"T-EARLIER", "T-OLD", "T-NEW"}, ticketIDs(between))
	})

	t.Run("ticket ids are opaque to the key layout", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetTransaction(ctx, "index")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.UpdateTransactionStatus(ctx, "index", fraud.StatusCleared), ErrNotFound)

		_, err = store.InsertTransaction(ctx, sampleRecord("T-4587", 0, fraud.StatusPending))
		require.NoError(t, err)
		_, err = store.InsertTransaction(ctx, sampleRecord("index", time.Minute, fraud.StatusFlagged))
		require.NoError(t, err)
		_, err = store.InsertTransaction(ctx, sampleRecord("doc:index", 2*time.Minute, fraud.StatusPending))
		require.NoError(t, err)

		got, err := store.GetTransaction(ctx, "index")
		require.NoError(t, err)
		assert.Equal(t, fraud.StatusFlagged, got.Status)

		require.NoError(t, store.UpdateTransactionStatus(ctx, "index", fraud.StatusCleared))

		recent, err := store.ListRecentTransactions(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc:index", "index", "T-4587"}, ticketIDs(recent))
		assert.Equal(t, fraud.StatusCleared, recent[1].Status)

		counts, err := store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts.Total())
		assert.Equal(t, int64(1), counts[fraud.StatusCleared])
	})

	t.Run("amounts keep full precision", func(t *testing.T) {
		store := newStore(t)
		rec := sampleRecord("T-5001", 0, fraud.StatusPending)
		rec.Amount = decimal.RequireFromString("12345678901.125")
		_, err := store.InsertTransaction(ctx, rec)
		require.NoError(t, err)

		got, err := store.GetTransaction(ctx, "T-5001")
		require.NoError(t, err)
		assert.True(t, got.Amount.Equal(rec.Amount), "got %s", got.Amount)
	})

	t.Run("duplicate ticket ids are rejected", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertTransaction(ctx, sampleRecord("T-4587", 0, fraud.StatusPending))
		require.NoError(t, err)

		_, err = store.InsertTransaction(ctx, sampleRecord("T-4587", time.Minute, fraud.StatusFlagged))
		assert.ErrorIs(t, err, ErrDuplicateKey)

		got, err := store.GetTransaction(ctx, "T-4587")
		require.NoError(t, err)
		assert.Equal(t, fraud.StatusPending, got.Status)
	})

	t.Run("update status on unknown ticket leaves others untouched", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertTransaction(ctx, sampleRecord("T-4587", 0, fraud.StatusFlagged))
		require.NoError(t, err)

		err = store.UpdateTransactionStatus(ctx, "T-9999", fraud.StatusCleared)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := store.GetTransaction(ctx, "T-4587")
		require.NoError(t, err)
		assert.Equal(t, fraud.StatusFlagged, got.Status)
	})

	t.Run("update status overwrites status only", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertTransaction(ctx, sampleRecord("T-4587", 0, fraud.StatusFlagged))
		require.NoError(t, err)

		require.NoError(t, store.UpdateTransactionStatus(ctx, "T-4587", fraud.StatusCleared))

		got, err := store.GetTransaction(ctx, "T-4587")
		require.NoError(t, err)
		assert.Equal(t, fraud.StatusCleared, got.Status)
		assert.Equal(t, 0.42, got.FraudScore)

		assert.ErrorIs(t, store.UpdateTransactionStatus(ctx, "T-4587", fraud.Status("archived")), ErrInvalidStatus)
	})

	t.Run("get unknown ticket", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetTransaction(ctx, "T-0000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list between is inclusive and ascending", func(t *testing.T) {
		store := newStore(t)
		for i, offset := range []time.Duration{0, time.Hour, 2 * time.Hour, 3 * time.Hour} {
			_, err := store.InsertTransaction(ctx, sampleRecord(fmt.Sprintf("T-%d", 2000+i), offset, fraud.StatusPending))
			require.NoError(t, err)
		}

		got, err := store.ListTransactionsBetween(ctx, baseTime.Add(time.Hour), baseTime.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{"T-2001", "T-2002"}, ticketIDs(got))
	})

	t.Run("count by status", func(t *testing.T) {
		store := newStore(t)
		statuses := []fraud.Status{fraud.StatusFlagged, fraud.StatusFlagged, fraud.StatusCleared, fraud.StatusPending}
		for i, st := range statuses {
			_, err := store.InsertTransaction(ctx, sampleRecord(fmt.Sprintf("T-%d", 3000+i), time.Duration(i)*time.Minute, st))
			require.NoError(t, err)
		}

		counts, err := store.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[fraud.StatusFlagged])
		assert.Equal(t, int64(1), counts[fraud.StatusCleared])
		assert.Equal(t, int64(4), counts.Total())
	})

	t.Run("concurrent duplicate inserts have one winner", func(t *testing.T) {
		store := newStore(t)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
			dupes   int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.InsertTransaction(ctx, sampleRecord("T-7777", 0, fraud.StatusPending))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, ErrDuplicateKey):
					dupes++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		assert.Equal(t, 7, dupes)
	})
}

func ticketIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.TicketID
	}
	return ids
}
