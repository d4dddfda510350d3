package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/config"
	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/portfolio"
	"github.com/STTM-NSU/portfolio-tracker/internal/registry"
	"github.com/STTM-NSU/portfolio-tracker/internal/snapshot"
	"github.com/STTM-NSU/portfolio-tracker/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewNopLogger()
	store := memory.NewStore()

	cfg := config.ServiceConfig{
		Valuation: config.ValuationConfig{FXRates: map[string]decimal.Decimal{"USD": decimal.RequireFromString("32.5")}},
	}
	require.NoError(t, cfg.ValidateAndSetup())

	reg := registry.NewService(store, log)
	l := ledger.NewService(store, reg, log)
	snaps := snapshot.NewService(store, log)
	p := portfolio.NewPortfolio(l, snaps, store, cfg.Valuation, log)

	h := NewHandler(Deps{Ledger: l, Registry: reg, Portfolio: p, Snapshots: snaps}, cfg, testAPIKey, log)
	return h.Router()
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(APIKeyHeader, testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthNeedsNoKey(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/holdings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio/holdings", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTradeFlow(t *testing.T) {
	router := newTestRouter(t)

	rec, body := do(t, router, http.MethodPost, "/api/portfolio/trade",
		`{"symbol":"aapl","market":"US","action":"BUY","quantity":10,"price":"100","tags":["swing"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "AAPL", body["instrument"].(map[string]any)["symbol"])
	assert.NotNil(t, body["holding"])

	rec, _ = do(t, router, http.MethodPost, "/api/portfolio/trade",
		`{"symbol":"AAPL","market":"US","action":"BUY","quantity":10,"price":120}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = do(t, router, http.MethodGet, "/api/portfolio/holdings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, "20", holdings[0]["quantity"])
	assert.Equal(t, "110", holdings[0]["average_cost"])

	rec, body = do(t, router, http.MethodGet, "/api/portfolio/transactions?symbol=AAPL&market=US", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["transactions"], 2)

	rec, body = do(t, router, http.MethodGet, "/api/portfolio/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["consistent"])
}

func TestTradeErrors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed", `{"symbol":`, http.StatusBadRequest, "validation"},
		{"bad market", `{"symbol":"X","market":"EU","action":"BUY","quantity":1,"price":1}`, http.StatusBadRequest, "validation"},
		{"bad action", `{"symbol":"X","market":"US","action":"HOLD","quantity":1,"price":1}`, http.StatusBadRequest, "validation"},
		{"zero quantity", `{"symbol":"X","market":"US","action":"BUY","quantity":0,"price":1}`, http.StatusBadRequest, "validation"},
		{"sell unknown", `{"symbol":"X","market":"US","action":"SELL","quantity":1,"price":1}`, http.StatusNotFound, "position_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, router, http.MethodPost, "/api/portfolio/trade", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, body["kind"])
		})
	}

	rec, _ := do(t, router, http.MethodPost, "/api/portfolio/trade",
		`{"symbol":"TSLA","market":"US","action":"BUY","quantity":1,"price":200}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, body := do(t, router, http.MethodPost, "/api/portfolio/trade",
		`{"symbol":"TSLA","market":"US","action":"SELL","quantity":2,"price":200}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_position", body["kind"])

	rec, body = do(t, router, http.MethodGet, "/api/portfolio/transactions?symbol=NOPE&market=US", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "instrument_not_found", body["kind"])
}

func TestRebaseline(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := do(t, router, http.MethodPost, "/api/portfolio/trade",
		`{"symbol":"NVDA","market":"US","action":"BUY","quantity":5,"price":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := do(t, router, http.MethodPost, "/api/portfolio/rebaseline",
		`{"reason":"broker statement","targets":[{"symbol":"2330","market":"TW","quantity":1000,"price":600}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["adjustments"], 2)

	rec, _ = do(t, router, http.MethodGet, "/api/portfolio/holdings", "")
	var holdings []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, "2330", holdings[0]["symbol"])

	rec, _ = do(t, router, http.MethodPost, "/api/portfolio/rebaseline",
		`{"targets":[{"symbol":"X","market":"MARS","quantity":1,"price":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssets(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := do(t, router, http.MethodPost, "/api/portfolio/trade",
		`{"symbol":"AAPL","market":"US","action":"BUY","quantity":10,"price":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, router, http.MethodPut, "/api/assets/cash", `{"currency":"TWD","value":"500"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := do(t, router, http.MethodPut, "/api/assets/cash", `{"currency":"JPY","value":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", body["kind"])

	rec, body = do(t, router, http.MethodGet, "/api/assets/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "33000", body["total_net_worth"])
	assert.Equal(t, "32500", body["equity_us"])

	rec, body = do(t, router, http.MethodPost, "/api/assets/snapshots/capture", `{"snapshot_date":"2024-05-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "33000", body["total_net_worth"])

	rec, body = do(t, router, http.MethodPost, "/api/assets/snapshots/capture", `{"snapshot_date":"2024-05-02"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "snapshot_already_exists", body["kind"])

	rec, _ = do(t, router, http.MethodPost, "/api/assets/snapshots",
		`{"snapshot_date":"2024-05-01","total_net_worth":"1000","cash_balance":"1000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = do(t, router, http.MethodPost, "/api/assets/snapshots", `{"snapshot_date":"May 1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/assets/history?start_date=2024-05-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)

	rec, _ = do(t, router, http.MethodGet, "/api/assets/history", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	rec, _ = do(t, router, http.MethodGet, "/api/assets/history?start_date=2024-06-01&end_date=2024-05-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPerformanceReport(t *testing.T) {
	router := newTestRouter(t)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	in := map[string]any{
		"equity_curve": []map[string]any{
			{"ts": t0, "value": 100},
			{"ts": t0.AddDate(0, 0, 1), "value": 120},
			{"ts": t0.AddDate(0, 0, 2), "value": 90},
			{"ts": t0.AddDate(0, 0, 3), "value": 130},
		},
		"trades": []map[string]any{
			{"ref": 1, "entry_time": t0, "exit_time": t0.AddDate(0, 0, 1), "size": 1, "pnl": 250, "pnlcomm": 200, "is_closed": true},
			{"ref": 2, "entry_time": t0.AddDate(0, 0, 1), "exit_time": t0.AddDate(0, 0, 2), "size": 1, "pnl": -50, "pnlcomm": -100, "is_closed": true},
		},
		"params": map[string]any{"initial_cash": 100},
	}
	payload, err := json.Marshal(in)
	require.NoError(t, err)

	rec, body := do(t, router, http.MethodPost, "/api/performance/report", string(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dd := body["risk_drawdown"].(map[string]any)
	assert.Equal(t, 25.0, dd["mdd_pct"])
	assert.Equal(t, 30.0, dd["mdd_money"])

	overview := body["overview"].(map[string]any)
	assert.Equal(t, 30.0, overview["net_profit"])
	assert.Equal(t, 4.0, overview["total_net_points"])

	stats := body["trade_statistics"].(map[string]any)
	assert.Equal(t, 50.0, stats["win_rate_pct"])
	assert.Equal(t, 2.0, stats["profit_factor"])
	assert.Nil(t, body["warning"])

	rec, body = do(t, router, http.MethodPost, "/api/performance/report", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["warning"], "data unavailable")

	rec, _ = do(t, router, http.MethodPost, "/api/performance/report", `{"params":{"initial_cash":-1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPerformanceReportUnboundedGrowth(t *testing.T) {
	router := newTestRouter(t)

	body := `{"equity_curve":[{"ts":"2024-01-01T00:00:00Z","value":100000},{"ts":"2024-01-02T00:00:00Z","value":1000000}],` +
		`"params":{"initial_cash":100000}}`
	rec, out := do(t, router, http.MethodPost, "/api/performance/report", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	overview := out["overview"].(map[string]any)
	assert.Equal(t, "Infinity", overview["cagr_pct"])
	assert.Equal(t, 900.0, overview["total_return_pct"])
	ratios := out["risk_adjusted_returns"].(map[string]any)
	assert.Equal(t, "Infinity", ratios["calmar_ratio"])
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	h := NewHandler(Deps{}, config.ServiceConfig{}, "", logger.NewNopLogger())
	rec := httptest.NewRecorder()

	h.writeJSON(rec, http.StatusOK, struct {
		V float64 `json:"v"`
	}{V: math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var out api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "internal error", out.Error)
	assert.Equal(t, "internal", out.Kind)
}
