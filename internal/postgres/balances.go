package postgres

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

const (
	_queryBalances = "SELECT currency, value, updated_at FROM balances ORDER BY currency"
	_updateBalance = `INSERT INTO balances (
								currency, value, updated_at
							) VALUES ($1,$2,$3)
							ON CONFLICT (currency)
							DO UPDATE SET
								value = EXCLUDED.value,
								updated_at = EXCLUDED.updated_at`
)

func (s *Store) Balances(ctx context.Context) ([]model.Balance, error) {
	balances := make([]model.Balance, 0)
	if err := s.db.SelectContext(ctx, &balances, _queryBalances); err != nil {
		return nil, fmt.Errorf("%w: can't query balances", err)
	}
	return balances, nil
}

func (s *Store) SetBalance(ctx context.Context, b model.Balance) error {
	if _, err := s.db.ExecContext(ctx, _updateBalance, b.Currency, b.Value, b.UpdatedAt); err != nil {
		return fmt.Errorf("%w: can't update balance", err)
	}
	return nil
}
