package main

import (
	"cmp"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/STTM-NSU/portfolio-tracker/internal/client"
	"github.com/STTM-NSU/portfolio-tracker/internal/logger"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.ParseLevel(cmp.Or(os.Getenv("PORTFOLIO_LOG_LEVEL"), "warn")))
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}

	addr := flag.String("addr", os.Getenv("PORTFOLIO_ADDR"), "portfolio server address, http://localhost:8080 by default")
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	// The client is built lazily so that -addr is parsed first.
	var c *client.Client
	api := func() *client.Client {
		if c == nil {
			c = client.New(client.Config{Address: *addr, APIKey: os.Getenv("PORTFOLIO_API_KEY")}, zapLogger)
		}
		return c
	}

	for _, cmd := range []subcommands.Command{
		&tradeCmd{api: api},
		&holdingsCmd{api: api},
		&transactionsCmd{api: api},
		&rebaselineCmd{api: api},
		&verifyCmd{api: api},
	} {
		commander.Register(cmd, "ledger")
	}
	for _, cmd := range []subcommands.Command{
		&overviewCmd{api: api},
		&cashCmd{api: api},
		&historyCmd{api: api},
		&captureCmd{api: api},
	} {
		commander.Register(cmd, "assets")
	}
	commander.Register(&reportCmd{api: api}, "performance")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	cancel()
	if c != nil {
		_ = c.Close()
	}
	loggerSync()
	os.Exit(int(status))
}
