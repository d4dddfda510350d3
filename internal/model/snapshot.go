package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Aggregate is the caller-computed body of a daily snapshot.
type Aggregate struct {
	TotalNetWorth decimal.Decimal     `json:"total_net_worth" db:"total_net_worth"`
	EquityUS      decimal.Decimal     `json:"equity_us" db:"equity_us"`
	EquityTW      decimal.Decimal     `json:"equity_tw" db:"equity_tw"`
	EquityFutures decimal.Decimal     `json:"equity_futures" db:"equity_futures"`
	CashBalance   decimal.Decimal     `json:"cash_balance" db:"cash_balance"`
	USDFXRate     decimal.NullDecimal `json:"usd_fx_rate" db:"usd_fx_rate"`
	Holdings      json.RawMessage     `json:"holdings,omitempty" db:"holdings_snapshot"`
}

type DailySnapshot struct {
	Date time.Time `json:"snapshot_date" db:"snapshot_date"`
	Aggregate
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DateRange is inclusive on both ends. A zero From or To leaves that side open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && Day(r.From).After(Day(r.To)) {
		return fmt.Errorf("%w: range start %s after end %s", ValidationError,
			r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return nil
}

func (r DateRange) Contains(d time.Time) bool {
	d = Day(d)
	if !r.From.IsZero() && d.Before(Day(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(Day(r.To)) {
		return false
	}
	return true
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ValidationError, s)
	}
	return t, nil
}
