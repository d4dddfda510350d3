package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/jmoiron/sqlx"
)

var (
	_ storage.InstrumentRepository = (*Store)(nil)
	_ storage.LedgerRepository     = (*Store)(nil)
	_ storage.SnapshotRepository   = (*Store)(nil)
	_ storage.BalanceRepository    = (*Store)(nil)
	_ storage.Store                = (*Store)(nil)
)

// Store implements every storage repository on one postgres database.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const (
	_insertInstrument = `INSERT INTO instruments (id, symbol, market, name, currency, type, created_at)
							VALUES (:id, :symbol, :market, :name, :currency, :type, :created_at)`
	_queryInstrumentBySymbol = "SELECT * FROM instruments WHERE symbol = $1 AND market = $2"
	_queryInstrumentByID     = "SELECT * FROM instruments WHERE id = $1"
	_queryInstruments        = "SELECT * FROM instruments ORDER BY market, symbol"
	_updateInstrument        = "UPDATE instruments SET name = $1, currency = $2 WHERE id = $3"
)

func (s *Store) CreateInstrument(ctx context.Context, i model.Instrument) error {
	if _, err := s.db.NamedExecContext(ctx, _insertInstrument, i); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", model.DuplicateInstrumentError, i.Market, i.Symbol)
		}
		return fmt.Errorf("%w: can't insert instrument", err)
	}
	return nil
}

func (s *Store) InstrumentBySymbol(ctx context.Context, symbol string, market model.Market) (model.Instrument, error) {
	var i model.Instrument
	if err := s.db.GetContext(ctx, &i, _queryInstrumentBySymbol, symbol, market); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return i, fmt.Errorf("%w: %s/%s", model.InstrumentNotFoundError, market, symbol)
		}
		return i, fmt.Errorf("%w: can't query instrument", err)
	}
	return i, nil
}

func (s *Store) InstrumentByID(ctx context.Context, id string) (model.Instrument, error) {
	var i model.Instrument
	if err := s.db.GetContext(ctx, &i, _queryInstrumentByID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return i, fmt.Errorf("%w: %s", model.InstrumentNotFoundError, id)
		}
		return i, fmt.Errorf("%w: can't query instrument", err)
	}
	return i, nil
}

func (s *Store) Instruments(ctx context.Context) ([]model.Instrument, error) {
	instruments := make([]model.Instrument, 0)
	if err := s.db.SelectContext(ctx, &instruments, _queryInstruments); err != nil {
		return nil, fmt.Errorf("%w: can't query instruments", err)
	}
	return instruments, nil
}

func (s *Store) UpdateInstrument(ctx context.Context, id, name, currency string) error {
	res, err := s.db.ExecContext(ctx, _updateInstrument, name, currency, id)
	if err != nil {
		return fmt.Errorf("%w: can't update instrument", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", model.InstrumentNotFoundError, id)
	}
	return nil
}
