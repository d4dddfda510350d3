package ledger

import (
	"fmt"
	"sort"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/shopspring/decimal"
)

// Apply folds one transaction into the current holding using weighted-average cost.
// A nil current holding means no position. The result is nil when the position is closed.
func Apply(current *model.Holding, t model.Transaction) (*model.Holding, error) {
	if !t.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", model.ValidationError, t.Quantity)
	}
	if t.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative, got %s", model.ValidationError, t.Price)
	}

	switch t.Side {
	case model.Buy:
		qty, avg := decimal.Zero, decimal.Zero
		if current != nil {
			qty, avg = current.Quantity, current.AverageCost
		}
		newQty := qty.Add(t.Quantity)
		newAvg := qty.Mul(avg).Add(t.Quantity.Mul(t.Price)).Div(newQty)
		return &model.Holding{
			InstrumentID: t.InstrumentID,
			Quantity:     newQty,
			AverageCost:  newAvg,
			CurrentPrice: t.Price,
			UpdatedAt:    t.ExecutedAt,
		}, nil

	case model.Sell:
		if current == nil {
			return nil, fmt.Errorf("%w: instrument %s", model.PositionNotFoundError, t.InstrumentID)
		}
		if t.Quantity.GreaterThan(current.Quantity) {
			return nil, fmt.Errorf("%w: sell %s, held %s", model.InsufficientPositionError, t.Quantity, current.Quantity)
		}
		newQty := current.Quantity.Sub(t.Quantity)
		if newQty.IsZero() {
			return nil, nil
		}
		return &model.Holding{
			InstrumentID: current.InstrumentID,
			Quantity:     newQty,
			AverageCost:  current.AverageCost,
			CurrentPrice: t.Price,
			UpdatedAt:    t.ExecutedAt,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown side %q", model.ValidationError, t.Side)
	}
}

// Replay rebuilds holdings from empty state, applying txs in execution-time order.
// Transactions with equal timestamps keep their relative order.
func Replay(txs []model.Transaction) (map[string]model.Holding, error) {
	ordered := make([]model.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
	})

	holdings := make(map[string]*model.Holding)
	for _, t := range ordered {
		next, err := Apply(holdings[t.InstrumentID], t)
		if err != nil {
			return nil, fmt.Errorf("%w: can't replay transaction %s", err, t.ID)
		}
		if next == nil {
			delete(holdings, t.InstrumentID)
			continue
		}
		holdings[t.InstrumentID] = next
	}

	out := make(map[string]model.Holding, len(holdings))
	for id, h := range holdings {
		out[id] = *h
	}
	return out, nil
}
