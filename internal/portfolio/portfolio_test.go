package portfolio

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/config"
	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/registry"
	"github.com/STTM-NSU/portfolio-tracker/internal/snapshot"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store     *memory.Store
	ledger    *ledger.Service
	snapshots *snapshot.Service
	portfolio *Portfolio
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logger.NewNopLogger()
	store := memory.NewStore()
	l := ledger.NewService(store, registry.NewService(store, log), log)
	snaps := snapshot.NewService(store, log)
	cfg := config.ValuationConfig{
		BaseCurrency: "TWD",
		FXRates:      map[string]decimal.Decimal{"USD": d("32.5")},
	}
	return fixture{
		store:     store,
		ledger:    l,
		snapshots: snaps,
		portfolio: NewPortfolio(l, snaps, store, cfg, log),
	}
}

func (f fixture) trade(t *testing.T, symbol string, market model.Market, side model.Side, qty, price string) {
	t.Helper()
	_, err := f.ledger.Trade(context.Background(), ledger.TradeRequest{
		Symbol: symbol, Market: market, Side: side, Quantity: d(qty), Price: d(price),
	})
	require.NoError(t, err)
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.trade(t, "AAPL", model.MarketUS, model.Buy, "10", "100")
	f.trade(t, "2330", model.MarketTW, model.Buy, "1000", "600")
	f.trade(t, "TXF", model.MarketFutures, model.Buy, "2", "50")

	_, err := f.portfolio.SetBalance(ctx, "usd", d("1000"))
	require.NoError(t, err)
	_, err = f.portfolio.SetBalance(ctx, "TWD", d("5000"))
	require.NoError(t, err)

	o, err := f.portfolio.Overview(ctx)
	require.NoError(t, err)

	assert.Equal(t, "TWD", o.BaseCurrency)
	require.Len(t, o.Positions, 3)
	assert.True(t, o.EquityUS.Equal(d("32500")), o.EquityUS.String())
	assert.True(t, o.EquityTW.Equal(d("600000")), o.EquityTW.String())
	assert.True(t, o.EquityFutures.Equal(d("100")), o.EquityFutures.String())
	assert.True(t, o.CashBalance.Equal(d("37500")), o.CashBalance.String())
	assert.True(t, o.TotalNetWorth.Equal(d("670100")), o.TotalNetWorth.String())
	assert.True(t, o.UnrealizedPL.IsZero())

	require.Len(t, o.Cash, 2)
	assert.Equal(t, "TWD", o.Cash[0].Currency)
	assert.Equal(t, "USD", o.Cash[1].Currency)

	for _, p := range o.Positions {
		if p.Symbol == "AAPL" {
			assert.True(t, p.MarketValue.Equal(d("1000")))
			assert.True(t, p.BaseValue.Equal(d("32500")))
		}
	}
}

func TestSetBalanceValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.portfolio.SetBalance(ctx, " ", d("1"))
	assert.ErrorIs(t, err, model.ValidationError)

	_, err = f.portfolio.SetBalance(ctx, "EUR", d("1"))
	assert.ErrorIs(t, err, model.ValidationError)

	stored, err := f.store.Balances(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoadFromDB(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.SetBalance(ctx, model.Balance{Currency: "USD", Value: d("12"), UpdatedAt: time.Now()}))
	require.NoError(t, f.portfolio.Init(ctx))

	balances := f.portfolio.GetBalances()
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Value.Equal(d("12")))
}

func TestOverviewMissingRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg := registry.NewService(f.store, logger.NewNopLogger())
	_, err := reg.Create(ctx, "ASML", model.MarketUS, "ASML", "EUR")
	require.NoError(t, err)
	f.trade(t, "ASML", model.MarketUS, model.Buy, "1", "700")

	_, err = f.portfolio.Overview(ctx)
	assert.ErrorIs(t, err, model.DataUnavailableError)
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.trade(t, "AAPL", model.MarketUS, model.Buy, "10", "100")
	_, err := f.portfolio.SetBalance(ctx, "TWD", d("500"))
	require.NoError(t, err)

	day := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	snap, err := f.portfolio.Capture(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, model.Day(day), snap.Date)
	assert.True(t, snap.TotalNetWorth.Equal(d("33000")))
	assert.True(t, snap.EquityUS.Equal(d("32500")))
	require.True(t, snap.USDFXRate.Valid)
	assert.True(t, snap.USDFXRate.Decimal.Equal(d("32.5")))

	var positions []model.Position
	require.NoError(t, json.Unmarshal(snap.Holdings, &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)

	_, err = f.portfolio.Capture(ctx, day)
	assert.ErrorIs(t, err, model.SnapshotAlreadyExistsError)

	history, err := f.snapshots.History(ctx, model.DateRange{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunWithoutSchedule(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, f.portfolio.Run(ctx, config.SnapshotsConfig{}))
}

func TestRunBadSchedule(t *testing.T) {
	f := newFixture(t)
	err := f.portfolio.Run(context.Background(), config.SnapshotsConfig{Schedule: "not a schedule"})
	assert.Error(t, err)
}
