package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/registry"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RebaselineTag marks the synthetic adjustment transactions appended by Rebaseline.
const RebaselineTag = "rebaseline"

type RecordRequest struct {
	InstrumentID string
	Side         model.Side
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	ExecutedAt   time.Time // zero means now
	Reason       string
	Tags         []string
}

type TradeRequest struct {
	Symbol     string
	Market     model.Market
	Side       model.Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	ExecutedAt time.Time
	Reason     string
	Tags       []string
}

type TradeResult struct {
	Instrument  model.Instrument
	Transaction model.Transaction
	Holding     *model.Holding // nil when the trade closed the position
}

type RebaselineTarget struct {
	Symbol   string
	Market   model.Market
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Divergence is a stored holding that differs from the replay of its transactions.
type Divergence struct {
	InstrumentID string         `json:"instrument_id"`
	Stored       *model.Holding `json:"stored"`
	Replayed     *model.Holding `json:"replayed"`
}

type Service struct {
	repo     storage.LedgerRepository
	registry *registry.Service
	logger   logger.Logger
	now      func() time.Time
}

func NewService(repo storage.LedgerRepository, registry *registry.Service, logger logger.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Record appends one transaction and updates the instrument's holding as a single atomic unit.
func (s *Service) Record(ctx context.Context, req RecordRequest) (model.Transaction, error) {
	t, _, err := s.record(ctx, req)
	return t, err
}

// Trade records a transaction addressed by symbol. A BUY of an unknown symbol registers the
// instrument; a SELL never does.
func (s *Service) Trade(ctx context.Context, req TradeRequest) (TradeResult, error) {
	side, err := validate(req.Side, req.Quantity, req.Price)
	if err != nil {
		return TradeResult{}, err
	}

	var instr model.Instrument
	if side == model.Buy {
		instr, err = s.registry.ResolveOrCreate(ctx, req.Symbol, req.Market)
	} else {
		instr, err = s.registry.Resolve(ctx, req.Symbol, req.Market)
		if errors.Is(err, model.InstrumentNotFoundError) {
			return TradeResult{}, fmt.Errorf("%w: can't sell %s/%s you don't own", model.PositionNotFoundError, req.Market, req.Symbol)
		}
	}
	if err != nil {
		return TradeResult{}, err
	}

	t, h, err := s.record(ctx, RecordRequest{
		InstrumentID: instr.ID,
		Side:         side,
		Quantity:     req.Quantity,
		Price:        req.Price,
		ExecutedAt:   req.ExecutedAt,
		Reason:       req.Reason,
		Tags:         req.Tags,
	})
	if err != nil {
		return TradeResult{}, err
	}

	return TradeResult{Instrument: instr, Transaction: t, Holding: h}, nil
}

func (s *Service) record(ctx context.Context, req RecordRequest) (model.Transaction, *model.Holding, error) {
	side, err := validate(req.Side, req.Quantity, req.Price)
	if err != nil {
		return model.Transaction{}, nil, err
	}
	if _, err := s.registry.Get(ctx, req.InstrumentID); err != nil {
		return model.Transaction{}, nil, err
	}

	t := s.newTransaction(req.InstrumentID, side, req.Quantity, req.Price, req.ExecutedAt, req.Reason, req.Tags)

	var next *model.Holding
	err = s.repo.WithinInstrument(ctx, req.InstrumentID, func(tx storage.LedgerTx) error {
		var err error
		next, err = s.apply(ctx, tx, &t)
		return err
	})
	if err != nil {
		return model.Transaction{}, nil, err
	}

	s.logger.Infof("recorded %s %s x %s @ %s on %s", t.ID, t.Side, t.Quantity, t.Price, t.InstrumentID)
	return t, next, nil
}

// apply validates t against the locked state and writes the transaction and the new holding.
// A zero ExecutedAt is stamped here, under the instrument lock, so that it never precedes the last write.
func (s *Service) apply(ctx context.Context, tx storage.LedgerTx, t *model.Transaction) (*model.Holding, error) {
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = s.now().UTC().Truncate(time.Microsecond)
	}

	last, ok, err := tx.LastExecutedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't read last transaction time", err)
	}
	if ok && t.ExecutedAt.Before(last) {
		return nil, fmt.Errorf("%w: executed_at %s is before the last recorded transaction %s",
			model.ValidationError, t.ExecutedAt.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	}

	current, ok, err := tx.Holding(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't read holding", err)
	}
	var cur *model.Holding
	if ok {
		cur = &current
	}

	next, err := Apply(cur, *t)
	if err != nil {
		return nil, err
	}

	if err := tx.AppendTransaction(ctx, *t); err != nil {
		return nil, fmt.Errorf("%w: can't append transaction", err)
	}
	if next == nil {
		if err := tx.DeleteHolding(ctx); err != nil {
			return nil, fmt.Errorf("%w: can't delete holding", err)
		}
		return nil, nil
	}
	if err := tx.SaveHolding(ctx, *next); err != nil {
		return nil, fmt.Errorf("%w: can't save holding", err)
	}
	return next, nil
}

func (s *Service) newTransaction(instrumentID string, side model.Side, qty, price decimal.Decimal,
	at time.Time, reason string, tags []string) model.Transaction {
	if !at.IsZero() {
		at = at.UTC().Truncate(time.Microsecond)
	}
	return model.Transaction{
		ID:           uuid.NewString(),
		InstrumentID: instrumentID,
		Side:         side,
		Quantity:     qty,
		Price:        price,
		ExecutedAt:   at,
		Reason:       reason,
		Tags:         normalizeTags(tags),
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
}

func (s *Service) CurrentHoldings(ctx context.Context) ([]model.HoldingView, error) {
	holdings, err := s.repo.Holdings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't load holdings", err)
	}
	return holdings, nil
}

// Holding returns the instrument's current position or model.PositionNotFoundError.
func (s *Service) Holding(ctx context.Context, instrumentID string) (model.Holding, error) {
	h, ok, err := s.repo.Holding(ctx, instrumentID)
	if err != nil {
		return model.Holding{}, fmt.Errorf("%w: can't load holding", err)
	}
	if !ok {
		return model.Holding{}, fmt.Errorf("%w: instrument %s", model.PositionNotFoundError, instrumentID)
	}
	return h, nil
}

func (s *Service) Transactions(ctx context.Context, instrumentID string) ([]model.Transaction, error) {
	return s.repo.Transactions(ctx, instrumentID)
}

// Rebaseline moves the held set to targets by appending synthetic BUY/SELL adjustments.
// Holdings absent from targets are closed at their current price. Each instrument is adjusted
// in its own atomic unit.
func (s *Service) Rebaseline(ctx context.Context, targets []RebaselineTarget, reason string) ([]model.Transaction, error) {
	type resolved struct {
		target RebaselineTarget
		id     string
	}

	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t.Quantity.IsNegative() || t.Price.IsNegative() {
			return nil, fmt.Errorf("%w: negative rebaseline target for %s", model.ValidationError, t.Symbol)
		}
		symbol, err := model.NormalizeSymbol(t.Symbol)
		if err != nil {
			return nil, err
		}
		key := string(t.Market) + "/" + symbol
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: duplicate rebaseline target %s", model.ValidationError, key)
		}
		seen[key] = struct{}{}
	}

	plan := make([]resolved, 0, len(targets))
	listed := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		var (
			instr model.Instrument
			err   error
		)
		if t.Quantity.IsPositive() {
			instr, err = s.registry.ResolveOrCreate(ctx, t.Symbol, t.Market)
		} else {
			instr, err = s.registry.Resolve(ctx, t.Symbol, t.Market)
			if errors.Is(err, model.InstrumentNotFoundError) {
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		listed[instr.ID] = struct{}{}
		plan = append(plan, resolved{target: t, id: instr.ID})
	}

	holdings, err := s.repo.Holdings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't load holdings", err)
	}
	for _, h := range holdings {
		if _, ok := listed[h.InstrumentID]; ok {
			continue
		}
		plan = append(plan, resolved{
			target: RebaselineTarget{Symbol: h.Symbol, Market: h.Market, Quantity: decimal.Zero, Price: h.CurrentPrice},
			id:     h.InstrumentID,
		})
	}

	at := s.now().UTC().Truncate(time.Microsecond)
	out := make([]model.Transaction, 0, len(plan))
	for _, p := range plan {
		t, err := s.adjustTo(ctx, p.id, p.target.Quantity, p.target.Price, at, reason)
		if err != nil {
			return out, fmt.Errorf("%w: can't rebaseline %s/%s", err, p.target.Market, p.target.Symbol)
		}
		if t != nil {
			out = append(out, *t)
		}
	}

	s.logger.Infof("rebaseline appended %d adjustment transactions", len(out))
	return out, nil
}

func (s *Service) adjustTo(ctx context.Context, instrumentID string, target, price decimal.Decimal,
	at time.Time, reason string) (*model.Transaction, error) {
	var out *model.Transaction
	err := s.repo.WithinInstrument(ctx, instrumentID, func(tx storage.LedgerTx) error {
		current, ok, err := tx.Holding(ctx)
		if err != nil {
			return fmt.Errorf("%w: can't read holding", err)
		}
		held := decimal.Zero
		if ok {
			held = current.Quantity
		}

		diff := target.Sub(held)
		if diff.IsZero() {
			return nil
		}
		side := model.Buy
		if diff.IsNegative() {
			side = model.Sell
		}

		t := s.newTransaction(instrumentID, side, diff.Abs(), price, at, reason, []string{RebaselineTag})
		if _, err := s.apply(ctx, tx, &t); err != nil {
			return err
		}
		out = &t
		return nil
	})
	return out, err
}

// Verify replays every instrument's history and reports holdings that disagree with the read model.
func (s *Service) Verify(ctx context.Context) ([]Divergence, error) {
	instruments, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't list instruments", err)
	}

	var out []Divergence
	for _, i := range instruments {
		txs, err := s.repo.Transactions(ctx, i.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: can't load transactions of %s", err, i.ID)
		}
		replayed, err := Replay(txs)
		if err != nil {
			return nil, err
		}
		stored, ok, err := s.repo.Holding(ctx, i.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: can't load holding of %s", err, i.ID)
		}

		r, rok := replayed[i.ID]
		switch {
		case !ok && !rok:
			continue
		case ok && rok && stored.Equal(r):
			continue
		}

		d := Divergence{InstrumentID: i.ID}
		if ok {
			d.Stored = &stored
		}
		if rok {
			d.Replayed = &r
		}
		s.logger.Warnf("holding of %s diverges from its transaction history", i.ID)
		out = append(out, d)
	}
	return out, nil
}

// Rebuild overwrites the instrument's holding with the replay of its transactions.
func (s *Service) Rebuild(ctx context.Context, instrumentID string) error {
	return s.repo.WithinInstrument(ctx, instrumentID, func(tx storage.LedgerTx) error {
		txs, err := tx.Transactions(ctx)
		if err != nil {
			return fmt.Errorf("%w: can't load transactions", err)
		}
		replayed, err := Replay(txs)
		if err != nil {
			return err
		}
		if h, ok := replayed[instrumentID]; ok {
			return tx.SaveHolding(ctx, h)
		}
		return tx.DeleteHolding(ctx)
	})
}

// validate checks a trade's fields and returns its side in canonical form.
func validate(side model.Side, qty, price decimal.Decimal) (model.Side, error) {
	side, err := model.ParseSide(string(side))
	if err != nil {
		return "", err
	}
	if !qty.IsPositive() {
		return "", fmt.Errorf("%w: quantity must be positive, got %s", model.ValidationError, qty)
	}
	if price.IsNegative() {
		return "", fmt.Errorf("%w: price must not be negative, got %s", model.ValidationError, price)
	}
	return side, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
