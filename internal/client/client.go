// Package client talks to the portfolio HTTP API.
package client

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/portfolio"
	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	_tradeURL        = "/api/portfolio/trade"
	_holdingsURL     = "/api/portfolio/holdings"
	_transactionsURL = "/api/portfolio/transactions"
	_rebaselineURL   = "/api/portfolio/rebaseline"
	_verifyURL       = "/api/portfolio/verify"
	_overviewURL     = "/api/assets/overview"
	_cashURL         = "/api/assets/cash"
	_historyURL      = "/api/assets/history"
	_snapshotsURL    = "/api/assets/snapshots"
	_captureURL      = "/api/assets/snapshots/capture"
	_reportURL       = "/api/performance/report"
)

type Config struct {
	Address string
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond caps the request rate; zero means 10.
	RequestsPerSecond int
}

type Client struct {
	c           *resty.Client
	rateLimiter ratelimit.Limiter

	logger logger.Logger
}

func New(cfg Config, logger logger.Logger) *Client {
	c := resty.New().
		SetLogger(logger).
		SetBaseURL(cmp.Or(cfg.Address, "http://localhost:8080")).
		SetTimeout(cmp.Or(cfg.Timeout, 30*time.Second)).
		SetHeader("Accept", "application/json").
		AddContentTypeEncoder("json", func(w io.Writer, v any) error {
			return sonic.ConfigDefault.NewEncoder(w).Encode(v)
		}).
		AddContentTypeDecoder("json", func(r io.Reader, v any) error {
			return sonic.ConfigDefault.NewDecoder(r).Decode(v)
		})
	if cfg.APIKey != "" {
		c.SetHeader("X-API-KEY", cfg.APIKey)
	}

	return &Client{
		c:           c,
		rateLimiter: ratelimit.New(cmp.Or(cfg.RequestsPerSecond, 10)),
		logger:      logger,
	}
}

func (c *Client) Close() error {
	return c.c.Close()
}

// do sends the request and decodes a successful body into result. API errors come back wrapping
// the model sentinel named by their kind.
func (c *Client) do(ctx context.Context, method, url string, body, result any, query map[string]string) error {
	c.rateLimiter.Take()

	req := c.c.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetError(&api.ErrorResponse{})
	if result != nil {
		req.SetResult(result)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("%w: can't send %s %s", err, method, url)
	}
	defer resp.Body.Close()

	c.logger.Debugf("got response %s status: %s, %s", resp.Request.URL, resp.Status(), resp.Duration())

	if resp.IsError() {
		apiErr, ok := resp.Error().(*api.ErrorResponse)
		if !ok || apiErr.Kind == "" {
			return fmt.Errorf("portfolio api %s %s failed: %s", method, url, resp.Status())
		}
		if sentinel := model.ErrorOfKind(apiErr.Kind); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, apiErr.Error)
		}
		return fmt.Errorf("%s: portfolio api error (%s)", apiErr.Error, apiErr.Kind)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("portfolio api unexpected response: %s", resp.Status())
	}
	return nil
}

func (c *Client) Trade(ctx context.Context, req api.TradeRequest) (api.TradeResponse, error) {
	var out api.TradeResponse
	err := c.do(ctx, http.MethodPost, _tradeURL, req, &out, nil)
	return out, err
}

func (c *Client) Holdings(ctx context.Context) ([]model.HoldingView, error) {
	var out []model.HoldingView
	err := c.do(ctx, http.MethodGet, _holdingsURL, nil, &out, nil)
	return out, err
}

func (c *Client) Transactions(ctx context.Context, symbol string, market model.Market) (api.TransactionsResponse, error) {
	var out api.TransactionsResponse
	err := c.do(ctx, http.MethodGet, _transactionsURL, nil, &out, map[string]string{
		"symbol": symbol,
		"market": string(market),
	})
	return out, err
}

func (c *Client) Rebaseline(ctx context.Context, req api.RebaselineRequest) ([]model.Transaction, error) {
	var out api.RebaselineResponse
	err := c.do(ctx, http.MethodPost, _rebaselineURL, req, &out, nil)
	return out.Adjustments, err
}

func (c *Client) Verify(ctx context.Context) (api.VerifyResponse, error) {
	var out api.VerifyResponse
	err := c.do(ctx, http.MethodGet, _verifyURL, nil, &out, nil)
	return out, err
}

func (c *Client) Overview(ctx context.Context) (portfolio.Overview, error) {
	var out portfolio.Overview
	err := c.do(ctx, http.MethodGet, _overviewURL, nil, &out, nil)
	return out, err
}

func (c *Client) SetCash(ctx context.Context, currency string, value decimal.Decimal) (model.Balance, error) {
	var out model.Balance
	err := c.do(ctx, http.MethodPut, _cashURL, api.CashRequest{Currency: currency, Value: value}, &out, nil)
	return out, err
}

// History returns the daily snapshots in r. Open ends of the range are left out of the query.
func (c *Client) History(ctx context.Context, r model.DateRange) ([]model.DailySnapshot, error) {
	query := make(map[string]string, 2)
	if !r.From.IsZero() {
		query["start_date"] = r.From.Format(model.DateLayout)
	}
	if !r.To.IsZero() {
		query["end_date"] = r.To.Format(model.DateLayout)
	}

	var out []model.DailySnapshot
	err := c.do(ctx, http.MethodGet, _historyURL, nil, &out, query)
	return out, err
}

func (c *Client) CreateSnapshot(ctx context.Context, date time.Time, agg model.Aggregate) (model.DailySnapshot, error) {
	var out model.DailySnapshot
	req := api.SnapshotRequest{Date: date.Format(model.DateLayout), Aggregate: agg}
	err := c.do(ctx, http.MethodPost, _snapshotsURL, req, &out, nil)
	return out, err
}

// Capture asks the server to value the portfolio and store it. A zero date means today.
func (c *Client) Capture(ctx context.Context, date time.Time) (model.DailySnapshot, error) {
	var req api.CaptureRequest
	if !date.IsZero() {
		req.Date = date.Format(model.DateLayout)
	}

	var out model.DailySnapshot
	err := c.do(ctx, http.MethodPost, _captureURL, req, &out, nil)
	return out, err
}

func (c *Client) Report(ctx context.Context, in analytics.Input, params *analytics.Params) (api.ReportResponse, error) {
	var out api.ReportResponse
	err := c.do(ctx, http.MethodPost, _reportURL, api.ReportRequest{Input: in, Params: params}, &out, nil)
	return out, err
}
