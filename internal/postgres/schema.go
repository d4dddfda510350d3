package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// _schema is idempotent so Migrate can run on every start.
var _schema = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		id         TEXT PRIMARY KEY,
		symbol     TEXT NOT NULL,
		market     TEXT NOT NULL,
		name       TEXT NOT NULL,
		currency   TEXT NOT NULL,
		type       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT instruments_symbol_market UNIQUE (symbol, market)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq           BIGSERIAL PRIMARY KEY,
		id            TEXT NOT NULL UNIQUE,
		instrument_id TEXT NOT NULL REFERENCES instruments (id),
		side          TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
		quantity      NUMERIC NOT NULL CHECK (quantity > 0),
		price         NUMERIC NOT NULL CHECK (price >= 0),
		executed_at   TIMESTAMPTZ NOT NULL,
		reason        TEXT NOT NULL DEFAULT '',
		tags          TEXT[] NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_instrument_executed
		ON transactions (instrument_id, executed_at, seq)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		instrument_id TEXT PRIMARY KEY REFERENCES instruments (id),
		quantity      NUMERIC NOT NULL CHECK (quantity > 0),
		average_cost  NUMERIC NOT NULL CHECK (average_cost >= 0),
		current_price NUMERIC NOT NULL CHECK (current_price >= 0),
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_snapshots (
		snapshot_date     DATE PRIMARY KEY,
		total_net_worth   NUMERIC NOT NULL,
		equity_us         NUMERIC NOT NULL DEFAULT 0,
		equity_tw         NUMERIC NOT NULL DEFAULT 0,
		equity_futures    NUMERIC NOT NULL DEFAULT 0,
		cash_balance      NUMERIC NOT NULL DEFAULT 0,
		usd_fx_rate       NUMERIC,
		holdings_snapshot JSONB NOT NULL DEFAULT '[]',
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		currency   TEXT PRIMARY KEY,
		value      NUMERIC NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range _schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: can't apply schema", err)
		}
	}
	return nil
}
