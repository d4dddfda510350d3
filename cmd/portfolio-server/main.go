package main

import (
	"cmp"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/STTM-NSU/portfolio-tracker/internal/config"
	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/portfolio"
	"github.com/STTM-NSU/portfolio-tracker/internal/postgres"
	"github.com/STTM-NSU/portfolio-tracker/internal/registry"
	"github.com/STTM-NSU/portfolio-tracker/internal/server"
	"github.com/STTM-NSU/portfolio-tracker/internal/snapshot"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage/memory"
	"github.com/joho/godotenv"
)

const (
	_serviceCfgFilePath = "./configs/service.yaml"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("can't detect .env file")
	}

	cfgPath := cmp.Or(os.Getenv("PORTFOLIO_CONFIG"), _serviceCfgFilePath)
	cfg, cfgErr := config.LoadServiceConfig(cfgPath)
	if cfgErr != nil {
		cfg = config.DefaultServiceConfig()
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if cfgErr != nil {
		zapLogger.Warnf("%s: can't load %s, using defaults", cfgErr, cfgPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store storage.Store
	pgConfig := postgres.NewConfigFromEnv()
	if pgConfig.Configured() {
		pgConfig.Setup()
		zapLogger.Debugf("trying to connect to db with: %s", pgConfig)
		db, err := postgres.NewDB(pgConfig)
		if err != nil {
			zapLogger.Fatalf("%s: can't connect to db", err)
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			zapLogger.Fatalf("%s: can't migrate db", err)
		}
		store = postgres.NewStore(db)
	} else {
		zapLogger.Warnf("POSTGRES_HOST is not set, keeping the portfolio in memory")
		store = memory.NewStore()
	}

	registryService := registry.NewService(store, zapLogger.With("component", "registry"))
	ledgerService := ledger.NewService(store, registryService, zapLogger.With("component", "ledger"))
	snapshotService := snapshot.NewService(store, zapLogger.With("component", "snapshot"))
	p := portfolio.NewPortfolio(ledgerService, snapshotService, store, cfg.Valuation, zapLogger.With("component", "portfolio"))
	if err := p.Init(ctx); err != nil {
		zapLogger.Fatalf("%s: can't init portfolio", err)
	}

	divergences, err := ledgerService.Verify(ctx)
	if err != nil {
		zapLogger.Errorf("%s: can't verify holdings", err)
	}
	for _, d := range divergences {
		zapLogger.Warnf("holding of %s diverges from its transactions, rebuilding", d.InstrumentID)
		if err := ledgerService.Rebuild(ctx, d.InstrumentID); err != nil {
			zapLogger.Errorf("%s: can't rebuild holding %s", err, d.InstrumentID)
		}
	}

	go func() {
		if err := p.Run(ctx, cfg.Snapshots); err != nil {
			zapLogger.Errorf("%s: snapshot scheduler stopped", err)
		}
	}()

	apiKey := os.Getenv("PORTFOLIO_API_KEY")
	if apiKey == "" {
		zapLogger.Warnf("PORTFOLIO_API_KEY is not set, api is open")
	}

	handler := server.NewHandler(server.Deps{
		Ledger:    ledgerService,
		Registry:  registryService,
		Portfolio: p,
		Snapshots: snapshotService,
	}, cfg, apiKey, zapLogger.With("component", "http"))

	srv := server.NewHTTPServer(ctx, cfg.Server.Port, handler.Router())
	zapLogger.Infof("listening on :%s", cfg.Server.Port)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Errorf("%s: http server failed", err)
	}
	zapLogger.Infof("shutting down")
}
