package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type transactionRow struct {
	ID           string          `db:"id"`
	InstrumentID string          `db:"instrument_id"`
	Side         string          `db:"side"`
	Quantity     decimal.Decimal `db:"quantity"`
	Price        decimal.Decimal `db:"price"`
	ExecutedAt   time.Time       `db:"executed_at"`
	Reason       string          `db:"reason"`
	Tags         pq.StringArray  `db:"tags"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r transactionRow) toModel() model.Transaction {
	t := model.Transaction{
		ID:           r.ID,
		InstrumentID: r.InstrumentID,
		Side:         model.Side(r.Side),
		Quantity:     r.Quantity,
		Price:        r.Price,
		ExecutedAt:   r.ExecutedAt.UTC(),
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if len(r.Tags) > 0 {
		t.Tags = []string(r.Tags)
	}
	return t
}

func toModels(rows []transactionRow) []model.Transaction {
	out := make([]model.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out
}

const (
	_lockInstrument = "SELECT id FROM instruments WHERE id = $1 FOR UPDATE"

	_queryHolding  = "SELECT * FROM holdings WHERE instrument_id = $1"
	_queryHoldings = `SELECT h.instrument_id, h.quantity, h.average_cost, h.current_price, h.updated_at,
							 i.symbol, i.market, i.name, i.currency
						FROM holdings h JOIN instruments i ON i.id = h.instrument_id
						ORDER BY i.market, i.symbol`
	_upsertHolding = `INSERT INTO holdings (instrument_id, quantity, average_cost, current_price, updated_at)
							VALUES ($1, $2, $3, $4, $5)
							ON CONFLICT (instrument_id)
							DO UPDATE SET
								quantity = EXCLUDED.quantity,
								average_cost = EXCLUDED.average_cost,
								current_price = EXCLUDED.current_price,
								updated_at = EXCLUDED.updated_at`
	_deleteHolding = "DELETE FROM holdings WHERE instrument_id = $1"

	_transactionColumns = "id, instrument_id, side, quantity, price, executed_at, reason, tags, created_at"
	_queryTransactions  = "SELECT " + _transactionColumns + " FROM transactions WHERE instrument_id = $1 ORDER BY executed_at, seq"
	_queryLastExecuted  = "SELECT max(executed_at) FROM transactions WHERE instrument_id = $1"
	_countTransactions  = "SELECT count(*) FROM transactions"
	_insertTransaction  = "INSERT INTO transactions (" + _transactionColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"
)

// WithinInstrument locks the instrument row for the lifetime of the transaction, which serializes
// concurrent units on the same instrument while others proceed.
func (s *Store) WithinInstrument(ctx context.Context, instrumentID string, fn func(tx storage.LedgerTx) error) error {
	return inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var id string
		if err := tx.GetContext(ctx, &id, _lockInstrument, instrumentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", model.InstrumentNotFoundError, instrumentID)
			}
			return fmt.Errorf("%w: can't lock instrument", err)
		}
		return fn(&ledgerTx{tx: tx, id: instrumentID})
	})
}

func (s *Store) Holdings(ctx context.Context) ([]model.HoldingView, error) {
	holdings := make([]model.HoldingView, 0)
	if err := s.db.SelectContext(ctx, &holdings, _queryHoldings); err != nil {
		return nil, fmt.Errorf("%w: can't query holdings", err)
	}
	for i := range holdings {
		holdings[i].UpdatedAt = holdings[i].UpdatedAt.UTC()
	}
	return holdings, nil
}

func (s *Store) Holding(ctx context.Context, instrumentID string) (model.Holding, bool, error) {
	return getHolding(ctx, s.db, instrumentID)
}

func (s *Store) Transactions(ctx context.Context, instrumentID string) ([]model.Transaction, error) {
	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, _queryTransactions, instrumentID); err != nil {
		return nil, fmt.Errorf("%w: can't query transactions", err)
	}
	return toModels(rows), nil
}

func (s *Store) TransactionCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, _countTransactions); err != nil {
		return 0, fmt.Errorf("%w: can't count transactions", err)
	}
	return n, nil
}

func getHolding(ctx context.Context, q sqlx.QueryerContext, instrumentID string) (model.Holding, bool, error) {
	var h model.Holding
	if err := sqlx.GetContext(ctx, q, &h, _queryHolding, instrumentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, false, nil
		}
		return h, false, fmt.Errorf("%w: can't query holding", err)
	}
	h.UpdatedAt = h.UpdatedAt.UTC()
	return h, true, nil
}

type ledgerTx struct {
	tx *sqlx.Tx
	id string
}

func (t *ledgerTx) Holding(ctx context.Context) (model.Holding, bool, error) {
	return getHolding(ctx, t.tx, t.id)
}

func (t *ledgerTx) LastExecutedAt(ctx context.Context) (time.Time, bool, error) {
	var last sql.NullTime
	if err := t.tx.GetContext(ctx, &last, _queryLastExecuted, t.id); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: can't query last execution time", err)
	}
	return last.Time.UTC(), last.Valid, nil
}

func (t *ledgerTx) Transactions(ctx context.Context) ([]model.Transaction, error) {
	var rows []transactionRow
	if err := t.tx.SelectContext(ctx, &rows, _queryTransactions, t.id); err != nil {
		return nil, fmt.Errorf("%w: can't query transactions", err)
	}
	return toModels(rows), nil
}

func (t *ledgerTx) SaveHolding(ctx context.Context, h model.Holding) error {
	if _, err := t.tx.ExecContext(ctx, _upsertHolding,
		t.id, h.Quantity, h.AverageCost, h.CurrentPrice, h.UpdatedAt,
	); err != nil {
		return fmt.Errorf("%w: can't upsert holding", err)
	}
	return nil
}

func (t *ledgerTx) DeleteHolding(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, _deleteHolding, t.id); err != nil {
		return fmt.Errorf("%w: can't delete holding", err)
	}
	return nil
}

func (t *ledgerTx) AppendTransaction(ctx context.Context, tr model.Transaction) error {
	if tr.InstrumentID != t.id {
		return fmt.Errorf("%w: transaction for %s appended to %s", model.ValidationError, tr.InstrumentID, t.id)
	}
	tags := tr.Tags
	if tags == nil {
		tags = []string{}
	}
	if _, err := t.tx.ExecContext(ctx, _insertTransaction,
		tr.ID, tr.InstrumentID, string(tr.Side), tr.Quantity, tr.Price,
		tr.ExecutedAt, tr.Reason, pq.Array(tags), tr.CreatedAt,
	); err != nil {
		return fmt.Errorf("%w: can't insert transaction", err)
	}
	return nil
}
