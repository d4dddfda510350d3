package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/registry"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce      sync.Once
	pgContainer testcontainers.Container
	pgConfig    *Config
	pgError     error
)

// startPostgres runs one postgres container per test binary. Docker-backed tests only run with
// PORTFOLIO_TEST_DOCKER=1.
func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("PORTFOLIO_TEST_DOCKER") != "1" {
		t.Skip("set PORTFOLIO_TEST_DOCKER=1 to run postgres tests")
	}

	pgOnce.Do(func() {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "portfolio",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(60 * time.Second),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			pgError = fmt.Errorf("%w: can't start postgres container", err)
			return
		}
		pgContainer = container

		host, err := container.Host(ctx)
		if err != nil {
			pgError = fmt.Errorf("%w: can't get postgres host", err)
			return
		}
		port, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			pgError = fmt.Errorf("%w: can't get postgres port", err)
			return
		}

		pgConfig = (&Config{
			Host:     host,
			Port:     port.Port(),
			Username: "postgres",
			Password: "postgres",
			DBName:   "portfolio",
		}).Setup()
	})
	if pgError != nil {
		t.Fatalf("postgres container failed: %v", pgError)
	}

	db, err := NewDB(pgConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, "TRUNCATE transactions, holdings, instruments, daily_snapshots, balances")
	require.NoError(t, err)
	return db
}

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func TestConfigSetup(t *testing.T) {
	cfg := (&Config{Port: "not-a-port"}).Setup()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "host=localhost port=5432 user=postgres dbname=postgres password=postgres sslmode=disable", cfg.String())

	assert.False(t, (&Config{}).Configured())
}

func TestInstruments(t *testing.T) {
	ctx := context.Background()
	s := NewStore(startPostgres(t))

	i := model.Instrument{ID: "i-1", Symbol: "AAPL", Market: model.MarketUS, Name: "AAPL", Currency: "USD",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	require.NoError(t, s.CreateInstrument(ctx, i))

	dup := i
	dup.ID = "i-2"
	assert.ErrorIs(t, s.CreateInstrument(ctx, dup), model.DuplicateInstrumentError)

	got, err := s.InstrumentBySymbol(ctx, "AAPL", model.MarketUS)
	require.NoError(t, err)
	assert.Equal(t, i.ID, got.ID)

	_, err = s.InstrumentByID(ctx, "missing")
	assert.ErrorIs(t, err, model.InstrumentNotFoundError)

	require.NoError(t, s.UpdateInstrument(ctx, i.ID, "Apple", "USD"))
	got, err = s.InstrumentByID(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple", got.Name)
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(startPostgres(t))
	log := logger.NewNopLogger()
	svc := ledger.NewService(s, registry.NewService(s, log), log)

	t0 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	res, err := svc.Trade(ctx, ledger.TradeRequest{Symbol: "AAPL", Market: model.MarketUS, Side: model.Buy,
		Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100), ExecutedAt: t0, Tags: []string{"swing"}})
	require.NoError(t, err)
	_, err = svc.Trade(ctx, ledger.TradeRequest{Symbol: "AAPL", Market: model.MarketUS, Side: model.Buy,
		Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(120), ExecutedAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	h, err := svc.Holding(ctx, res.Instrument.ID)
	require.NoError(t, err)
	assert.True(t, h.Quantity.Equal(decimal.NewFromInt(20)))
	assert.True(t, h.AverageCost.Equal(decimal.NewFromInt(110)))

	_, err = svc.Trade(ctx, ledger.TradeRequest{Symbol: "AAPL", Market: model.MarketUS, Side: model.Sell,
		Quantity: decimal.NewFromInt(21), Price: decimal.NewFromInt(150), ExecutedAt: t0.Add(2 * time.Hour)})
	require.ErrorIs(t, err, model.InsufficientPositionError)

	n, err := s.TransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	txs, err := svc.Transactions(ctx, res.Instrument.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, []string{"swing"}, txs[0].Tags)
	assert.Nil(t, txs[1].Tags)
	assert.Equal(t, t0, txs[0].ExecutedAt)

	divergences, err := svc.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, divergences)

	_, err = svc.Trade(ctx, ledger.TradeRequest{Symbol: "AAPL", Market: model.MarketUS, Side: model.Sell,
		Quantity: decimal.NewFromInt(20), Price: decimal.NewFromInt(150), ExecutedAt: t0.Add(3 * time.Hour)})
	require.NoError(t, err)
	holdings, err := svc.CurrentHoldings(ctx)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestWithinInstrumentRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore(startPostgres(t))
	require.NoError(t, s.CreateInstrument(ctx, model.Instrument{ID: "i-1", Symbol: "X", Market: model.MarketTW,
		Name: "X", Currency: "TWD", CreatedAt: time.Now()}))

	err := s.WithinInstrument(ctx, "i-1", func(tx storage.LedgerTx) error {
		require.NoError(t, tx.SaveHolding(ctx, model.Holding{InstrumentID: "i-1", Quantity: decimal.NewFromInt(1),
			UpdatedAt: time.Now()}))
		return model.ValidationError
	})
	require.ErrorIs(t, err, model.ValidationError)

	_, ok, err := s.Holding(ctx, "i-1")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.WithinInstrument(ctx, "missing", func(storage.LedgerTx) error { return nil })
	assert.ErrorIs(t, err, model.InstrumentNotFoundError)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewStore(startPostgres(t))
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first := model.DailySnapshot{
		Date: day,
		Aggregate: model.Aggregate{
			TotalNetWorth: decimal.NewFromInt(1000),
			USDFXRate:     decimal.NewNullDecimal(decimal.RequireFromString("32.1")),
			Holdings:      []byte(`[{"symbol":"AAPL"}]`),
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.InsertSnapshot(ctx, first))

	second := first
	second.TotalNetWorth = decimal.NewFromInt(2000)
	assert.ErrorIs(t, s.InsertSnapshot(ctx, second), model.SnapshotAlreadyExistsError)

	require.NoError(t, s.InsertSnapshot(ctx, model.DailySnapshot{Date: day.AddDate(0, 0, 1), CreatedAt: time.Now()}))

	got, err := s.Snapshots(ctx, model.DateRange{To: day})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, day, got[0].Date)
	assert.True(t, got[0].TotalNetWorth.Equal(decimal.NewFromInt(1000)))
	assert.JSONEq(t, `[{"symbol":"AAPL"}]`, string(got[0].Holdings))

	all, err := s.Snapshots(ctx, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].USDFXRate.Valid)
}

func TestBalances(t *testing.T) {
	ctx := context.Background()
	s := NewStore(startPostgres(t))

	require.NoError(t, s.SetBalance(ctx, model.Balance{Currency: "USD", Value: decimal.NewFromInt(1), UpdatedAt: time.Now()}))
	require.NoError(t, s.SetBalance(ctx, model.Balance{Currency: "USD", Value: decimal.NewFromInt(7), UpdatedAt: time.Now()}))

	got, err := s.Balances(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Value.Equal(decimal.NewFromInt(7)))
}
