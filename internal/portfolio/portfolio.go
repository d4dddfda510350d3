package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/config"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/STTM-NSU/portfolio-tracker/internal/tools"
	"github.com/bytedance/sonic"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

type HoldingsSource interface {
	CurrentHoldings(ctx context.Context) ([]model.HoldingView, error)
}

type SnapshotWriter interface {
	Create(ctx context.Context, date time.Time, agg model.Aggregate) (model.DailySnapshot, error)
}

// Overview is the whole portfolio valued in the base currency.
type Overview struct {
	BaseCurrency  string                     `json:"base_currency"`
	TotalNetWorth decimal.Decimal            `json:"total_net_worth"`
	EquityUS      decimal.Decimal            `json:"equity_us"`
	EquityTW      decimal.Decimal            `json:"equity_tw"`
	EquityFutures decimal.Decimal            `json:"equity_futures"`
	CashBalance   decimal.Decimal            `json:"cash_balance"`
	UnrealizedPL  decimal.Decimal            `json:"unrealized_pl"`
	Positions     []model.Position           `json:"positions"`
	Cash          []model.Balance            `json:"cash"`
	FXRates       map[string]decimal.Decimal `json:"fx_rates"`
	AsOf          time.Time                  `json:"as_of"`
}

type Portfolio struct {
	holdings  HoldingsSource
	snapshots SnapshotWriter
	repo      storage.BalanceRepository
	cfg       config.ValuationConfig
	logger    logger.Logger
	now       func() time.Time

	mu      sync.RWMutex
	balance map[string]model.Balance
}

func NewPortfolio(
	holdings HoldingsSource,
	snapshots SnapshotWriter,
	repo storage.BalanceRepository,
	cfg config.ValuationConfig,
	logger logger.Logger) *Portfolio {
	return &Portfolio{
		holdings:  holdings,
		snapshots: snapshots,
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		balance:   make(map[string]model.Balance),
	}
}

func (p *Portfolio) Init(ctx context.Context) error {
	n, err := p.LoadFromDB(ctx)
	if err != nil {
		return err
	}
	p.logger.Infof("loaded %d cash balances", n)
	return nil
}

func (p *Portfolio) GetBalances() []model.Balance {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.Balance, 0, len(p.balance))
	for _, b := range p.balance {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// SetBalance replaces the cash held in one currency.
func (p *Portfolio) SetBalance(ctx context.Context, currency string, value decimal.Decimal) (model.Balance, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return model.Balance{}, fmt.Errorf("%w: empty currency", model.ValidationError)
	}
	if currency != p.cfg.BaseCurrency {
		if _, ok := p.cfg.FXRates[currency]; !ok {
			return model.Balance{}, fmt.Errorf("%w: no fx rate configured for %s", model.ValidationError, currency)
		}
	}

	b := model.Balance{Currency: currency, Value: value, UpdatedAt: p.now().UTC().Truncate(time.Microsecond)}
	if err := p.FlushBalance(ctx, b); err != nil {
		return model.Balance{}, err
	}

	p.mu.Lock()
	p.balance[currency] = b
	p.mu.Unlock()
	return b, nil
}

// Overview values every holding and cash balance in the base currency.
func (p *Portfolio) Overview(ctx context.Context) (Overview, error) {
	holdings, err := p.holdings.CurrentHoldings(ctx)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{
		BaseCurrency: p.cfg.BaseCurrency,
		Positions:    make([]model.Position, 0, len(holdings)),
		Cash:         p.GetBalances(),
		FXRates:      p.cfg.FXRates,
		AsOf:         p.now().UTC(),
	}

	for _, h := range holdings {
		value := h.MarketValue()
		base, ok := tools.ConvertToBase(value, h.Currency, p.cfg.BaseCurrency, p.cfg.FXRates)
		if !ok {
			return Overview{}, fmt.Errorf("%w: no fx rate for %s held in %s/%s",
				model.DataUnavailableError, h.Currency, h.Market, h.Symbol)
		}

		o.Positions = append(o.Positions, model.Position{
			Symbol:       h.Symbol,
			Market:       h.Market,
			Currency:     h.Currency,
			Quantity:     h.Quantity,
			AverageCost:  h.AverageCost,
			CurrentPrice: h.CurrentPrice,
			MarketValue:  value,
			BaseValue:    base,
			UnrealizedPL: value.Sub(h.CostBasis()),
		})

		switch h.Market {
		case model.MarketUS:
			o.EquityUS = o.EquityUS.Add(base)
		case model.MarketTW:
			o.EquityTW = o.EquityTW.Add(base)
		case model.MarketFutures:
			o.EquityFutures = o.EquityFutures.Add(base)
		}

		pl, _ := tools.ConvertToBase(value.Sub(h.CostBasis()), h.Currency, p.cfg.BaseCurrency, p.cfg.FXRates)
		o.UnrealizedPL = o.UnrealizedPL.Add(pl)
	}

	for _, b := range o.Cash {
		base, ok := tools.ConvertToBase(b.Value, b.Currency, p.cfg.BaseCurrency, p.cfg.FXRates)
		if !ok {
			return Overview{}, fmt.Errorf("%w: no fx rate for cash in %s", model.DataUnavailableError, b.Currency)
		}
		o.CashBalance = o.CashBalance.Add(base)
	}

	o.TotalNetWorth = tools.SumDecimals(o.EquityUS, o.EquityTW, o.EquityFutures, o.CashBalance)
	return o, nil
}

// Capture stores today's overview as the daily snapshot of date.
func (p *Portfolio) Capture(ctx context.Context, date time.Time) (model.DailySnapshot, error) {
	o, err := p.Overview(ctx)
	if err != nil {
		return model.DailySnapshot{}, fmt.Errorf("%w: can't value portfolio", err)
	}

	positions, err := sonic.Marshal(o.Positions)
	if err != nil {
		return model.DailySnapshot{}, fmt.Errorf("%w: can't encode holdings", err)
	}

	agg := model.Aggregate{
		TotalNetWorth: o.TotalNetWorth,
		EquityUS:      o.EquityUS,
		EquityTW:      o.EquityTW,
		EquityFutures: o.EquityFutures,
		CashBalance:   o.CashBalance,
		Holdings:      positions,
	}
	if rate, ok := p.cfg.FXRates["USD"]; ok && p.cfg.BaseCurrency != "USD" {
		agg.USDFXRate = decimal.NewNullDecimal(rate)
	}

	return p.snapshots.Create(ctx, date, agg)
}

// Run captures a snapshot on every tick of the cron schedule until ctx is done.
func (p *Portfolio) Run(ctx context.Context, cfg config.SnapshotsConfig) error {
	if cfg.Schedule == "" {
		p.logger.Infof("snapshot schedule is empty, daily capture disabled")
		return nil
	}

	loc := cfg.Location()
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.Schedule, func() {
		date := p.now().In(loc)
		snap, err := p.Capture(ctx, date)
		if err != nil {
			p.logger.Errorf("%s: can't capture daily snapshot", err)
			return
		}
		p.logger.Infof("captured snapshot %s, net worth %s", snap.Date.Format(model.DateLayout), snap.TotalNetWorth)
	}); err != nil {
		return fmt.Errorf("%w: can't schedule snapshot capture", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
