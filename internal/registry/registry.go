package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
	"github.com/google/uuid"
)

type Service struct {
	repo   storage.InstrumentRepository
	logger logger.Logger
	now    func() time.Time
}

func NewService(repo storage.InstrumentRepository, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveOrCreate returns the identity of (symbol, market), creating it with name = symbol when unknown.
func (s *Service) ResolveOrCreate(ctx context.Context, symbol string, market model.Market) (model.Instrument, error) {
	i, err := s.Resolve(ctx, symbol, market)
	if err == nil {
		return i, nil
	}
	if !errors.Is(err, model.InstrumentNotFoundError) {
		return model.Instrument{}, err
	}

	i, err = s.Create(ctx, symbol, market, "", "")
	if errors.Is(err, model.DuplicateInstrumentError) {
		// lost a concurrent create for the same pair
		return s.Resolve(ctx, symbol, market)
	}
	return i, err
}

// Create registers a new instrument. Empty name defaults to the symbol, empty currency to the market's.
func (s *Service) Create(ctx context.Context, symbol string, market model.Market, name, currency string) (model.Instrument, error) {
	symbol, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return model.Instrument{}, err
	}
	if market, err = model.ParseMarket(string(market)); err != nil {
		return model.Instrument{}, err
	}

	i := model.Instrument{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Market:    market,
		Name:      cmp.Or(strings.TrimSpace(name), symbol),
		Currency:  strings.ToUpper(cmp.Or(strings.TrimSpace(currency), market.DefaultCurrency())),
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.CreateInstrument(ctx, i); err != nil {
		return model.Instrument{}, fmt.Errorf("%w: can't create instrument %s/%s", err, market, symbol)
	}

	s.logger.Infof("created instrument %s %s/%s", i.ID, i.Market, i.Symbol)
	return i, nil
}

func (s *Service) Resolve(ctx context.Context, symbol string, market model.Market) (model.Instrument, error) {
	symbol, err := model.NormalizeSymbol(symbol)
	if err != nil {
		return model.Instrument{}, err
	}
	if market, err = model.ParseMarket(string(market)); err != nil {
		return model.Instrument{}, err
	}
	return s.repo.InstrumentBySymbol(ctx, symbol, market)
}

func (s *Service) Get(ctx context.Context, id string) (model.Instrument, error) {
	return s.repo.InstrumentByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]model.Instrument, error) {
	return s.repo.Instruments(ctx)
}

// Rename changes the display name and currency, the only mutable instrument fields.
func (s *Service) Rename(ctx context.Context, id, name, currency string) error {
	i, err := s.repo.InstrumentByID(ctx, id)
	if err != nil {
		return err
	}
	name = cmp.Or(strings.TrimSpace(name), i.Name)
	currency = strings.ToUpper(cmp.Or(strings.TrimSpace(currency), i.Currency))
	if err := s.repo.UpdateInstrument(ctx, id, name, currency); err != nil {
		return fmt.Errorf("%w: can't update instrument %s", err, id)
	}
	return nil
}
