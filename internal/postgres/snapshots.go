package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/shopspring/decimal"
)

const (
	_insertSnapshot = `INSERT INTO daily_snapshots (
								snapshot_date,
								total_net_worth,
								equity_us,
								equity_tw,
								equity_futures,
								cash_balance,
								usd_fx_rate,
								holdings_snapshot,
								created_at
							) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9)
							ON CONFLICT (snapshot_date) DO NOTHING`
	_querySnapshots = `SELECT * FROM daily_snapshots
							WHERE ($1::date IS NULL OR snapshot_date >= $1::date)
							  AND ($2::date IS NULL OR snapshot_date <= $2::date)
							ORDER BY snapshot_date`
)

// snapshotRow scans the jsonb column into a plain []byte, which database/sql copies out of the
// driver buffer.
type snapshotRow struct {
	Date          time.Time           `db:"snapshot_date"`
	TotalNetWorth decimal.Decimal     `db:"total_net_worth"`
	EquityUS      decimal.Decimal     `db:"equity_us"`
	EquityTW      decimal.Decimal     `db:"equity_tw"`
	EquityFutures decimal.Decimal     `db:"equity_futures"`
	CashBalance   decimal.Decimal     `db:"cash_balance"`
	USDFXRate     decimal.NullDecimal `db:"usd_fx_rate"`
	Holdings      []byte              `db:"holdings_snapshot"`
	CreatedAt     time.Time           `db:"created_at"`
}

// InsertSnapshot relies on the primary key to make check-and-insert one statement.
func (s *Store) InsertSnapshot(ctx context.Context, snap model.DailySnapshot) error {
	holdings := string(snap.Holdings)
	if holdings == "" {
		holdings = "[]"
	}

	res, err := s.db.ExecContext(ctx, _insertSnapshot,
		model.Day(snap.Date).Format(model.DateLayout),
		snap.TotalNetWorth,
		snap.EquityUS,
		snap.EquityTW,
		snap.EquityFutures,
		snap.CashBalance,
		snap.USDFXRate,
		holdings,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: can't insert snapshot", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: can't insert snapshot", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.SnapshotAlreadyExistsError, snap.Date.Format(model.DateLayout))
	}
	return nil
}

func (s *Store) Snapshots(ctx context.Context, r model.DateRange) ([]model.DailySnapshot, error) {
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, _querySnapshots, nullDate(r.From), nullDate(r.To)); err != nil {
		return nil, fmt.Errorf("%w: can't query snapshots", err)
	}

	snaps := make([]model.DailySnapshot, len(rows))
	for i, row := range rows {
		snaps[i] = model.DailySnapshot{
			Date: model.Day(row.Date),
			Aggregate: model.Aggregate{
				TotalNetWorth: row.TotalNetWorth,
				EquityUS:      row.EquityUS,
				EquityTW:      row.EquityTW,
				EquityFutures: row.EquityFutures,
				CashBalance:   row.CashBalance,
				USDFXRate:     row.USDFXRate,
				Holdings:      row.Holdings,
			},
			CreatedAt: row.CreatedAt.UTC(),
		}
	}
	return snaps, nil
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: model.Day(t).Format(model.DateLayout), Valid: true}
}
