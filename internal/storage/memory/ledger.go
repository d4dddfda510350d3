package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
)

func (s *Store) instrumentLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// WithinInstrument serializes units per instrument and publishes staged writes only when fn succeeds.
func (s *Store) WithinInstrument(ctx context.Context, instrumentID string, fn func(tx storage.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	_, known := s.instruments[instrumentID]
	s.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", model.InstrumentNotFoundError, instrumentID)
	}

	l := s.instrumentLock(instrumentID)
	l.Lock()
	defer l.Unlock()

	tx := &ledgerTx{store: s, id: instrumentID}
	s.mu.RLock()
	tx.holding, tx.hasHolding = s.holdings[instrumentID]
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.hasHolding {
		s.holdings[instrumentID] = tx.holding
	} else {
		delete(s.holdings, instrumentID)
	}
	s.txs[instrumentID] = append(s.txs[instrumentID], tx.appended...)
	s.txCount += len(tx.appended)
	return nil
}

func (s *Store) Holdings(_ context.Context) ([]model.HoldingView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.HoldingView, 0, len(s.holdings))
	for id, h := range s.holdings {
		i := s.instruments[id]
		out = append(out, model.HoldingView{
			Holding:  h,
			Symbol:   i.Symbol,
			Market:   i.Market,
			Name:     i.Name,
			Currency: i.Currency,
		})
	}
	slices.SortFunc(out, func(a, b model.HoldingView) int {
		return cmp.Or(cmp.Compare(a.Market, b.Market), cmp.Compare(a.Symbol, b.Symbol))
	})
	return out, nil
}

func (s *Store) Holding(_ context.Context, instrumentID string) (model.Holding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[instrumentID]
	return h, ok, nil
}

func (s *Store) Transactions(_ context.Context, instrumentID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedCopy(s.txs[instrumentID]), nil
}

func (s *Store) TransactionCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.txCount, nil
}

func sortedCopy(txs []model.Transaction) []model.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b model.Transaction) int { return a.ExecutedAt.Compare(b.ExecutedAt) })
	return out
}

type ledgerTx struct {
	store *Store
	id    string

	holding    model.Holding
	hasHolding bool
	appended   []model.Transaction
}

func (t *ledgerTx) Holding(context.Context) (model.Holding, bool, error) {
	return t.holding, t.hasHolding, nil
}

func (t *ledgerTx) LastExecutedAt(ctx context.Context) (time.Time, bool, error) {
	txs, err := t.Transactions(ctx)
	if err != nil || len(txs) == 0 {
		return time.Time{}, false, err
	}
	return txs[len(txs)-1].ExecutedAt, true, nil
}

func (t *ledgerTx) Transactions(context.Context) ([]model.Transaction, error) {
	t.store.mu.RLock()
	committed := t.store.txs[t.id]
	all := make([]model.Transaction, 0, len(committed)+len(t.appended))
	all = append(all, committed...)
	t.store.mu.RUnlock()

	return sortedCopy(append(all, t.appended...)), nil
}

func (t *ledgerTx) SaveHolding(_ context.Context, h model.Holding) error {
	t.holding, t.hasHolding = h, true
	return nil
}

func (t *ledgerTx) DeleteHolding(context.Context) error {
	t.holding, t.hasHolding = model.Holding{}, false
	return nil
}

func (t *ledgerTx) AppendTransaction(_ context.Context, tx model.Transaction) error {
	if tx.InstrumentID != t.id {
		return fmt.Errorf("%w: transaction for %s appended to %s", model.ValidationError, tx.InstrumentID, t.id)
	}
	tx.Tags = slices.Clone(tx.Tags)
	t.appended = append(t.appended, tx)
	return nil
}
