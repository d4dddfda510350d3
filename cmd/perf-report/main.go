package main

import (
	"cmp"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/STTM-NSU/portfolio-tracker/internal/config"
	"github.com/STTM-NSU/portfolio-tracker/internal/display"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
)

const (
	_serviceCfgFilePath = "./configs/service.yaml"
)

// perf-report reads a simulation result (equity curve, trades, orders) and prints its performance
// report. Flags override the analytics section of the service config.
func main() {
	var (
		cfgPath     = flag.String("config", cmp.Or(os.Getenv("PORTFOLIO_CONFIG"), _serviceCfgFilePath), "service config file")
		currency    = flag.String("currency", "TWD", "currency of the simulated account")
		initialCash = flag.Float64("initial-cash", 0, "starting equity, overrides config")
		riskFree    = flag.Float64("risk-free", -1, "annual risk-free rate, overrides config")
		multiplier  = flag.Float64("multiplier", 0, "contract point value used for trade points, overrides config")
		commission  = flag.Float64("commission", 0, "commission per contract and fill for results without one, overrides config")
		asJSON      = flag.Bool("json", false, "print the report as JSON")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: perf-report [flags] <result.json>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.Warn)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if err := godotenv.Load(); err != nil {
		zapLogger.Debugf("can't detect .env file")
	}

	cfg, err := config.LoadServiceConfig(*cfgPath)
	if err != nil {
		zapLogger.Warnf("%s: can't load %s, using defaults", err, *cfgPath)
		cfg = config.DefaultServiceConfig()
	}

	params := cfg.Analytics.Params()
	if *initialCash > 0 {
		params.InitialCash = *initialCash
	}
	if *riskFree >= 0 {
		params.RiskFreeRate = *riskFree
	}
	if *commission > 0 {
		params.Commission = *commission
	}

	input, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		zapLogger.Fatalf("%s: can't read simulation result", err)
	}
	var in analytics.Input
	if err := sonic.Unmarshal(input, &in); err != nil {
		zapLogger.Fatalf("%s: can't decode simulation result", err)
	}
	in.FillPoints(cmp.Or(*multiplier, cfg.Analytics.Multiplier))

	m, err := analytics.Compute(in, params)
	if err != nil {
		zapLogger.Fatalf("%s: can't compute report", err)
	}
	report := m.Report()
	if err := report.Err(); err != nil {
		zapLogger.Warnf("%s: report is partial", err)
	}

	if *asJSON {
		out, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			zapLogger.Fatalf("%s: can't encode report", err)
		}
		fmt.Println(string(out))
		return
	}

	if err := display.Report(os.Stdout, report, *currency); err != nil {
		zapLogger.Fatalf("%s: can't print report", err)
	}
}
