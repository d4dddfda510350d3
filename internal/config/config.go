package config

import (
	"cmp"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

const (
	_portDefault           = "8080"
	_requestTimeoutDefault = 30 * time.Second
)

func (c *ServerConfig) Setup() {
	c.Port = cmp.Or(strings.TrimPrefix(c.Port, ":"), _portDefault)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = _requestTimeoutDefault
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

type ValuationConfig struct {
	BaseCurrency string `yaml:"base_currency"`
	// FXRates maps a currency to base currency units per one unit of it.
	FXRates map[string]decimal.Decimal `yaml:"fx_rates"`
}

const _baseCurrencyDefault = "TWD"

func (c *ValuationConfig) Setup() error {
	c.BaseCurrency = strings.ToUpper(cmp.Or(strings.TrimSpace(c.BaseCurrency), _baseCurrencyDefault))

	rates := make(map[string]decimal.Decimal, len(c.FXRates))
	for currency, rate := range c.FXRates {
		if !rate.IsPositive() {
			return fmt.Errorf("non-positive fx rate for %s", currency)
		}
		rates[strings.ToUpper(currency)] = rate
	}
	c.FXRates = rates
	return nil
}

type SnapshotsConfig struct {
	// Schedule is a standard five-field cron expression for the daily capture. Empty disables it.
	Schedule string `yaml:"schedule"`
	TimeZone string `yaml:"time_zone"`
}

func (c *SnapshotsConfig) Setup() error {
	c.TimeZone = cmp.Or(c.TimeZone, "UTC")
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("%w: bad time zone", err)
	}
	if c.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: bad snapshot schedule", err)
	}
	return nil
}

func (c SnapshotsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AnalyticsConfig holds the simulation defaults of the performance report. Commission is charged
// per contract and fill when a result carries no commission of its own. Multiplier is the contract
// point value used for trade points.
type AnalyticsConfig struct {
	InitialCash    float64 `yaml:"initial_cash"`
	Commission     float64 `yaml:"commission"`
	Multiplier     float64 `yaml:"multiplier"`
	Slippage       float64 `yaml:"slippage"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	PeriodsPerYear int     `yaml:"periods_per_year"`
}

const (
	_initialCashDefault = 250000.0
	_commissionDefault  = 53.0 // broker fee 18 + futures tax 35
	_multiplierDefault  = 50.0
	_slippageDefault    = 2.0
)

func (c *AnalyticsConfig) Setup() {
	if c.InitialCash <= 0 {
		c.InitialCash = _initialCashDefault
	}
	if c.Commission <= 0 {
		c.Commission = _commissionDefault
	}
	if c.Multiplier <= 0 {
		c.Multiplier = _multiplierDefault
	}
	if c.Slippage <= 0 {
		c.Slippage = _slippageDefault
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = analytics.DefaultPeriodsPerYear
	}
}

func (c AnalyticsConfig) Params() analytics.Params {
	return analytics.Params{
		InitialCash:    c.InitialCash,
		RiskFreeRate:   c.RiskFreeRate,
		PeriodsPerYear: c.PeriodsPerYear,
		Slippage:       c.Slippage,
		Commission:     c.Commission,
	}
}

type ServiceConfig struct {
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Valuation ValuationConfig `yaml:"valuation"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

func (c *ServiceConfig) ValidateAndSetup() error {
	c.LogLevel = cmp.Or(c.LogLevel, "info")
	c.Server.Setup()

	if err := c.Valuation.Setup(); err != nil {
		return fmt.Errorf("%w: can't setup valuation", err)
	}
	if err := c.Snapshots.Setup(); err != nil {
		return fmt.Errorf("%w: can't setup snapshots", err)
	}
	c.Analytics.Setup()

	return nil
}

// DefaultServiceConfig is the configuration used when no file is given.
func DefaultServiceConfig() ServiceConfig {
	var cfg ServiceConfig
	_ = cfg.ValidateAndSetup()
	return cfg
}

func LoadServiceConfig(filename string) (ServiceConfig, error) {
	var cfg ServiceConfig
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	if err := cfg.ValidateAndSetup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}

	return cfg, nil
}
