package portfolio

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

// LoadFromDB replaces the in-memory balances with the stored ones and returns how many there are.
func (p *Portfolio) LoadFromDB(ctx context.Context) (int, error) {
	balances, err := p.repo.Balances(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: can't query portfolio balances", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance = make(map[string]model.Balance, len(balances))
	for _, b := range balances {
		p.balance[b.Currency] = b
	}
	return len(balances), nil
}

func (p *Portfolio) FlushBalance(ctx context.Context, b model.Balance) error {
	if err := p.repo.SetBalance(ctx, b); err != nil {
		return fmt.Errorf("%w: can't update portfolio balance", err)
	}
	return nil
}
