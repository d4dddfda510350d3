package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	for _, k := range kinds {
		wrapped := fmt.Errorf("%w: context", k.err)
		assert.Equal(t, k.kind, KindOf(wrapped))
		assert.Same(t, k.err, ErrorOfKind(k.kind))
	}

	assert.Equal(t, "internal", KindOf(errors.New("boom")))
	assert.Nil(t, ErrorOfKind("internal"))
	assert.Nil(t, ErrorOfKind("unauthorized"))
}

func TestParseMarket(t *testing.T) {
	m, err := ParseMarket(" tw ")
	require.NoError(t, err)
	assert.Equal(t, MarketTW, m)
	assert.Equal(t, "TWD", m.DefaultCurrency())

	m, err = ParseMarket("futures")
	require.NoError(t, err)
	assert.Equal(t, MarketFutures, m)

	assert.Equal(t, "USD", MarketUS.DefaultCurrency())

	_, err = ParseMarket("HK")
	assert.ErrorIs(t, err, ValidationError)
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("sell")
	require.NoError(t, err)
	assert.Equal(t, Sell, s)

	_, err = ParseSide("SHORT")
	assert.ErrorIs(t, err, ValidationError)

	tx := Transaction{Side: Sell, Quantity: decimal.NewFromInt(3)}
	assert.True(t, tx.SignedQuantity().Equal(decimal.NewFromInt(-3)))
	tx.Side = Buy
	assert.True(t, tx.SignedQuantity().Equal(decimal.NewFromInt(3)))
}

func TestNormalizeSymbol(t *testing.T) {
	s, err := NormalizeSymbol("  aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s)

	_, err = NormalizeSymbol("   ")
	assert.ErrorIs(t, err, ValidationError)
}

func TestDateRange(t *testing.T) {
	jan := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	r := DateRange{From: jan(2), To: jan(5)}
	require.NoError(t, r.Validate())
	assert.True(t, r.Contains(jan(2)))
	assert.True(t, r.Contains(jan(5).Add(23*time.Hour)))
	assert.False(t, r.Contains(jan(1)))
	assert.False(t, r.Contains(jan(6)))

	open := DateRange{To: jan(3)}
	require.NoError(t, open.Validate())
	assert.True(t, open.Contains(jan(1).AddDate(-10, 0, 0)))
	assert.False(t, open.Contains(jan(4)))

	assert.True(t, DateRange{}.Contains(jan(20)))

	err := DateRange{From: jan(5), To: jan(2)}.Validate()
	assert.ErrorIs(t, err, ValidationError)
}

func TestDay(t *testing.T) {
	taipei := time.FixedZone("CST", 8*60*60)
	got := Day(time.Date(2024, 3, 9, 23, 30, 0, 0, taipei))
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)

	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("2024-13-01")
	assert.ErrorIs(t, err, ValidationError)
	_, err = ParseDate("")
	assert.ErrorIs(t, err, ValidationError)
}

func TestHoldingValues(t *testing.T) {
	h := Holding{
		Quantity:     decimal.NewFromInt(10),
		AverageCost:  decimal.RequireFromString("100.5"),
		CurrentPrice: decimal.NewFromInt(120),
	}
	assert.True(t, h.MarketValue().Equal(decimal.NewFromInt(1200)))
	assert.True(t, h.CostBasis().Equal(decimal.NewFromInt(1005)))

	o := h
	o.UpdatedAt = time.Now()
	assert.True(t, h.Equal(o))
	o.Quantity = decimal.NewFromInt(11)
	assert.False(t, h.Equal(o))
}
