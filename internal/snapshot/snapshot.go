package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage"
)

// Service stores one immutable aggregate per calendar date.
type Service struct {
	repo   storage.SnapshotRepository
	logger logger.Logger
	now    func() time.Time
}

func NewService(repo storage.SnapshotRepository, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Create stores the aggregate under date. It never overwrites: a second call for the same date
// fails with model.SnapshotAlreadyExistsError and leaves the first snapshot as it was.
func (s *Service) Create(ctx context.Context, date time.Time, agg model.Aggregate) (model.DailySnapshot, error) {
	if date.IsZero() {
		return model.DailySnapshot{}, fmt.Errorf("%w: snapshot date is required", model.ValidationError)
	}
	if agg.TotalNetWorth.IsNegative() {
		return model.DailySnapshot{}, fmt.Errorf("%w: negative total net worth %s", model.ValidationError, agg.TotalNetWorth)
	}
	if agg.USDFXRate.Valid && !agg.USDFXRate.Decimal.IsPositive() {
		return model.DailySnapshot{}, fmt.Errorf("%w: fx rate must be positive", model.ValidationError)
	}
	if len(agg.Holdings) == 0 {
		agg.Holdings = []byte("[]")
	}

	snap := model.DailySnapshot{
		Date:      model.Day(date),
		Aggregate: agg,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.InsertSnapshot(ctx, snap); err != nil {
		return model.DailySnapshot{}, err
	}

	s.logger.Infof("stored snapshot for %s, net worth %s", snap.Date.Format(model.DateLayout), agg.TotalNetWorth)
	return snap, nil
}

// History returns snapshots inside r in ascending date order.
func (s *Service) History(ctx context.Context, r model.DateRange) ([]model.DailySnapshot, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	snaps, err := s.repo.Snapshots(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: can't query snapshots", err)
	}
	return snaps, nil
}

// Get returns the snapshot of date, or false when there is none.
func (s *Service) Get(ctx context.Context, date time.Time) (model.DailySnapshot, bool, error) {
	d := model.Day(date)
	snaps, err := s.History(ctx, model.DateRange{From: d, To: d})
	if err != nil || len(snaps) == 0 {
		return model.DailySnapshot{}, false, err
	}
	return snaps[0], true, nil
}

func (s *Service) Latest(ctx context.Context) (model.DailySnapshot, bool, error) {
	snaps, err := s.History(ctx, model.DateRange{})
	if err != nil || len(snaps) == 0 {
		return model.DailySnapshot{}, false, err
	}
	return snaps[len(snaps)-1], true, nil
}
