package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) model.Instrument {
	t.Helper()
	i := model.Instrument{ID: "i-1", Symbol: "AAPL", Market: model.MarketUS, Name: "AAPL", Currency: "USD"}
	require.NoError(t, s.CreateInstrument(context.Background(), i))
	return i
}

func TestWithinInstrumentDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	i := seed(t, s)

	boom := errors.New("boom")
	err := s.WithinInstrument(ctx, i.ID, func(tx storage.LedgerTx) error {
		require.NoError(t, tx.AppendTransaction(ctx, model.Transaction{ID: "t1", InstrumentID: i.ID}))
		require.NoError(t, tx.SaveHolding(ctx, model.Holding{InstrumentID: i.ID, Quantity: decimal.NewFromInt(1)}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := s.Holding(ctx, i.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := s.TransactionCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithinInstrumentSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	i := seed(t, s)

	err := s.WithinInstrument(ctx, i.ID, func(tx storage.LedgerTx) error {
		require.NoError(t, tx.AppendTransaction(ctx, model.Transaction{ID: "t1", InstrumentID: i.ID, ExecutedAt: day}))
		last, ok, err := tx.LastExecutedAt(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, day, last)

		txs, err := tx.Transactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
		return nil
	})
	require.NoError(t, err)

	holdings, err := s.Holdings(ctx)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestWithinInstrumentUnknown(t *testing.T) {
	err := NewStore().WithinInstrument(context.Background(), "x", func(storage.LedgerTx) error { return nil })
	assert.ErrorIs(t, err, model.InstrumentNotFoundError)
}

func TestAppendRejectsForeignInstrument(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	i := seed(t, s)

	err := s.WithinInstrument(ctx, i.ID, func(tx storage.LedgerTx) error {
		return tx.AppendTransaction(ctx, model.Transaction{ID: "t1", InstrumentID: "other"})
	})
	assert.ErrorIs(t, err, model.ValidationError)
}

func TestInsertSnapshotDetectThenFail(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first := model.DailySnapshot{Date: day.Add(15 * time.Hour), Aggregate: model.Aggregate{TotalNetWorth: decimal.NewFromInt(100)}}
	require.NoError(t, s.InsertSnapshot(ctx, first))

	second := model.DailySnapshot{Date: day, Aggregate: model.Aggregate{TotalNetWorth: decimal.NewFromInt(999)}}
	assert.ErrorIs(t, s.InsertSnapshot(ctx, second), model.SnapshotAlreadyExistsError)

	got, err := s.Snapshots(ctx, model.DateRange{From: day, To: day})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].TotalNetWorth.Equal(decimal.NewFromInt(100)))
}

func TestSnapshotsOpenRange(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, d := range []int{3, 1, 2} {
		snap := model.DailySnapshot{Date: day.AddDate(0, 0, d)}
		require.NoError(t, s.InsertSnapshot(ctx, snap))
	}

	got, err := s.Snapshots(ctx, model.DateRange{From: day.AddDate(0, 0, 2)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, day.AddDate(0, 0, 2), got[0].Date)
	assert.Equal(t, day.AddDate(0, 0, 3), got[1].Date)

	got, err = s.Snapshots(ctx, model.DateRange{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestBalances(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.SetBalance(ctx, model.Balance{Currency: "USD", Value: decimal.NewFromInt(10)}))
	require.NoError(t, s.SetBalance(ctx, model.Balance{Currency: "TWD", Value: decimal.NewFromInt(5)}))
	require.NoError(t, s.SetBalance(ctx, model.Balance{Currency: "USD", Value: decimal.NewFromInt(20)}))

	got, err := s.Balances(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TWD", got[0].Currency)
	assert.True(t, got[1].Value.Equal(decimal.NewFromInt(20)))
}
