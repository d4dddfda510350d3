// Package memory keeps the whole portfolio in process memory. It backs tests, the performance
// report CLI and the server when no database is configured.
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

var (
	_ storage.InstrumentRepository = (*Store)(nil)
	_ storage.LedgerRepository     = (*Store)(nil)
	_ storage.SnapshotRepository   = (*Store)(nil)
	_ storage.BalanceRepository    = (*Store)(nil)
	_ storage.Store                = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	instruments map[string]model.Instrument
	bySymbol    map[string]string
	holdings    map[string]model.Holding
	txs         map[string][]model.Transaction
	txCount     int
	snapshots   map[time.Time]model.DailySnapshot
	balances    map[string]model.Balance

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		instruments: make(map[string]model.Instrument),
		bySymbol:    make(map[string]string),
		holdings:    make(map[string]model.Holding),
		txs:         make(map[string][]model.Transaction),
		snapshots:   make(map[time.Time]model.DailySnapshot),
		balances:    make(map[string]model.Balance),
		locks:       make(map[string]*sync.Mutex),
	}
}

func symbolKey(symbol string, market model.Market) string {
	return string(market) + "/" + symbol
}

func (s *Store) CreateInstrument(_ context.Context, i model.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := symbolKey(i.Symbol, i.Market)
	if _, ok := s.bySymbol[key]; ok {
		return fmt.Errorf("%w: %s", model.DuplicateInstrumentError, key)
	}
	s.instruments[i.ID] = i
	s.bySymbol[key] = i.ID
	return nil
}

func (s *Store) InstrumentBySymbol(_ context.Context, symbol string, market model.Market) (model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySymbol[symbolKey(symbol, market)]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s/%s", model.InstrumentNotFoundError, market, symbol)
	}
	return s.instruments[id], nil
}

func (s *Store) InstrumentByID(_ context.Context, id string) (model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.instruments[id]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s", model.InstrumentNotFoundError, id)
	}
	return i, nil
}

func (s *Store) Instruments(_ context.Context) ([]model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Instrument, 0, len(s.instruments))
	for _, i := range s.instruments {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b model.Instrument) int {
		return cmp.Or(cmp.Compare(a.Market, b.Market), cmp.Compare(a.Symbol, b.Symbol))
	})
	return out, nil
}

func (s *Store) UpdateInstrument(_ context.Context, id, name, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.instruments[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.InstrumentNotFoundError, id)
	}
	i.Name, i.Currency = name, currency
	s.instruments[id] = i
	return nil
}

func (s *Store) Balances(_ context.Context) ([]model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Balance, 0, len(s.balances))
	for _, b := range s.balances {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.Balance) int { return cmp.Compare(a.Currency, b.Currency) })
	return out, nil
}

func (s *Store) SetBalance(_ context.Context, b model.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[b.Currency] = b
	return nil
}

func (s *Store) InsertSnapshot(_ context.Context, snap model.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := model.Day(snap.Date)
	if _, ok := s.snapshots[day]; ok {
		return fmt.Errorf("%w: %s", model.SnapshotAlreadyExistsError, day.Format(model.DateLayout))
	}
	snap.Date = day
	s.snapshots[day] = snap
	return nil
}

func (s *Store) Snapshots(_ context.Context, r model.DateRange) ([]model.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DailySnapshot, 0)
	for day, snap := range s.snapshots {
		if r.Contains(day) {
			out = append(out, snap)
		}
	}
	slices.SortFunc(out, func(a, b model.DailySnapshot) int { return a.Date.Compare(b.Date) })
	return out, nil
}
