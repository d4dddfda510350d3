package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/STTM-NSU/portfolio-tracker/internal/api"
	"github.com/STTM-NSU/portfolio-tracker/internal/client"
	"github.com/STTM-NSU/portfolio-tracker/internal/display"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/bytedance/sonic"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type apiFunc func() *client.Client

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func readJSON(filename string, v any) error {
	body, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("%w: can't read %s", err, filename)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: can't decode %s", err, filename)
	}
	return nil
}

type tradeCmd struct {
	api apiFunc

	symbol, market, reason, tags string
	quantity, price              string
	at                           string
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "record a BUY or SELL" }
func (*tradeCmd) Usage() string {
	return `trade -symbol <symbol> -market <US|TW|FUTURES> -qty <quantity> -price <price> [-at <RFC3339>] <buy|sell>

  Records one trade. A buy of an unknown symbol registers the instrument.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "ticker symbol (required)")
	f.StringVar(&c.market, "market", "US", "market: US, TW or FUTURES")
	f.StringVar(&c.quantity, "qty", "", "quantity (required)")
	f.StringVar(&c.price, "price", "", "execution price (required)")
	f.StringVar(&c.at, "at", "", "execution time, RFC3339; now by default")
	f.StringVar(&c.reason, "reason", "", "free-form note")
	f.StringVar(&c.tags, "tags", "", "comma separated tags")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.symbol == "" {
		return usageError("a side and -symbol are required")
	}
	qty, err := decimal.NewFromString(c.quantity)
	if err != nil {
		return usageError("bad -qty %q", c.quantity)
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return usageError("bad -price %q", c.price)
	}

	req := api.TradeRequest{
		Symbol:   c.symbol,
		Market:   c.market,
		Action:   f.Arg(0),
		Quantity: qty,
		Price:    price,
		Reason:   c.reason,
		Tags:     splitTags(c.tags),
	}
	if c.at != "" {
		if req.ExecutedAt, err = time.Parse(time.RFC3339, c.at); err != nil {
			return usageError("bad -at %q", c.at)
		}
	}

	res, err := c.api().Trade(ctx, req)
	if err != nil {
		return fail(err)
	}

	t := res.Transaction
	fmt.Printf("%s %s %s/%s @ %s\n", t.Side, t.Quantity, res.Instrument.Market, res.Instrument.Symbol,
		display.MoneyDecimal(t.Price, res.Instrument.Currency))
	if res.Holding == nil {
		fmt.Println("position closed")
	} else {
		fmt.Printf("holding %s at average cost %s\n", res.Holding.Quantity,
			display.MoneyDecimal(res.Holding.AverageCost, res.Instrument.Currency))
	}
	return subcommands.ExitSuccess
}

type holdingsCmd struct {
	api apiFunc
}

func (*holdingsCmd) Name() string             { return "holdings" }
func (*holdingsCmd) Synopsis() string         { return "list current holdings" }
func (*holdingsCmd) Usage() string            { return "holdings\n" }
func (*holdingsCmd) SetFlags(*flag.FlagSet) {}

func (c *holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	holdings, err := c.api().Holdings(ctx)
	if err != nil {
		return fail(err)
	}
	if err := display.Holdings(os.Stdout, holdings); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type transactionsCmd struct {
	api    apiFunc
	market string
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "list the transactions of one instrument" }
func (*transactionsCmd) Usage() string {
	return "transactions [-market <US|TW|FUTURES>] <symbol>\n"
}

func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.market, "market", "US", "market: US, TW or FUTURES")
}

func (c *transactionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("a symbol is required")
	}
	market, err := model.ParseMarket(c.market)
	if err != nil {
		return usageError("%v", err)
	}

	res, err := c.api().Transactions(ctx, f.Arg(0), market)
	if err != nil {
		return fail(err)
	}
	if err := display.Transactions(os.Stdout, res.Instrument.Currency, res.Transactions); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type rebaselineCmd struct {
	api    apiFunc
	reason string
}

func (*rebaselineCmd) Name() string     { return "rebaseline" }
func (*rebaselineCmd) Synopsis() string { return "move holdings to a broker statement" }
func (*rebaselineCmd) Usage() string {
	return `rebaseline [-reason <text>] <targets.json>

  targets.json holds [{"symbol":"AAPL","market":"US","quantity":"10","price":"190"}, ...].
  Every holding not listed is closed at its current price.
`
}

func (c *rebaselineCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.reason, "reason", "rebaseline", "reason recorded on the adjustments")
}

func (c *rebaselineCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("a targets file is required")
	}
	var targets []api.RebaselineTarget
	if err := readJSON(f.Arg(0), &targets); err != nil {
		return fail(err)
	}

	adjustments, err := c.api().Rebaseline(ctx, api.RebaselineRequest{Reason: c.reason, Targets: targets})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%d adjustments appended\n", len(adjustments))
	for _, t := range adjustments {
		fmt.Printf("  %s %s of %s @ %s\n", t.Side, t.Quantity, t.InstrumentID, t.Price)
	}
	return subcommands.ExitSuccess
}

type verifyCmd struct {
	api apiFunc
}

func (*verifyCmd) Name() string             { return "verify" }
func (*verifyCmd) Synopsis() string         { return "check holdings against a replay of the ledger" }
func (*verifyCmd) Usage() string            { return "verify\n" }
func (*verifyCmd) SetFlags(*flag.FlagSet) {}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	res, err := c.api().Verify(ctx)
	if err != nil {
		return fail(err)
	}
	if res.Consistent {
		fmt.Println("holdings match the ledger")
		return subcommands.ExitSuccess
	}
	for _, d := range res.Divergences {
		fmt.Printf("%s: stored %v, replayed %v\n", d.InstrumentID, d.Stored, d.Replayed)
	}
	return subcommands.ExitFailure
}

type overviewCmd struct {
	api    apiFunc
	asJSON bool
}

func (*overviewCmd) Name() string     { return "overview" }
func (*overviewCmd) Synopsis() string { return "value the portfolio in the base currency" }
func (*overviewCmd) Usage() string    { return "overview [-json]\n" }

func (c *overviewCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "print JSON")
}

func (c *overviewCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	o, err := c.api().Overview(ctx)
	if err != nil {
		return fail(err)
	}
	if c.asJSON {
		return printJSON(o)
	}
	if err := display.Overview(os.Stdout, o); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type cashCmd struct {
	api apiFunc
}

func (*cashCmd) Name() string             { return "cash" }
func (*cashCmd) Synopsis() string         { return "set the cash held in one currency" }
func (*cashCmd) Usage() string            { return "cash <currency> <amount>\n" }
func (*cashCmd) SetFlags(*flag.FlagSet) {}

func (c *cashCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usageError("currency and amount are required")
	}
	value, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		return usageError("bad amount %q", f.Arg(1))
	}

	b, err := c.api().SetCash(ctx, f.Arg(0), value)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("%s cash set to %s\n", b.Currency, display.MoneyDecimal(b.Value, b.Currency))
	return subcommands.ExitSuccess
}

type historyCmd struct {
	api      apiFunc
	from, to string
	currency string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list daily snapshots" }
func (*historyCmd) Usage() string {
	return "history [-from YYYY-MM-DD] [-to YYYY-MM-DD]\n"
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "first date, inclusive")
	f.StringVar(&c.to, "to", "", "last date, inclusive")
	f.StringVar(&c.currency, "currency", "TWD", "base currency of the snapshots")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var (
		r   model.DateRange
		err error
	)
	if c.from != "" {
		if r.From, err = model.ParseDate(c.from); err != nil {
			return usageError("%v", err)
		}
	}
	if c.to != "" {
		if r.To, err = model.ParseDate(c.to); err != nil {
			return usageError("%v", err)
		}
	}

	snaps, err := c.api().History(ctx, r)
	if err != nil {
		return fail(err)
	}
	if err := display.History(os.Stdout, c.currency, snaps); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type captureCmd struct {
	api  apiFunc
	date string
}

func (*captureCmd) Name() string     { return "snapshot" }
func (*captureCmd) Synopsis() string { return "capture today's daily snapshot" }
func (*captureCmd) Usage() string    { return "snapshot [-date YYYY-MM-DD]\n" }

func (c *captureCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "snapshot date; today by default")
}

func (c *captureCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var date time.Time
	if c.date != "" {
		var err error
		if date, err = model.ParseDate(c.date); err != nil {
			return usageError("%v", err)
		}
	}

	snap, err := c.api().Capture(ctx, date)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("snapshot %s: net worth %s\n", snap.Date.Format(model.DateLayout), snap.TotalNetWorth)
	return subcommands.ExitSuccess
}

type reportCmd struct {
	api         apiFunc
	initialCash float64
	currency    string
	asJSON      bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "compute a performance report on the server" }
func (*reportCmd) Usage() string {
	return "report [-initial-cash <amount>] [-json] <result.json>\n"
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.initialCash, "initial-cash", 0, "starting equity; server default when 0")
	f.StringVar(&c.currency, "currency", "TWD", "currency of the simulated account")
	f.BoolVar(&c.asJSON, "json", false, "print JSON")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("a simulation result file is required")
	}
	var in analytics.Input
	if err := readJSON(f.Arg(0), &in); err != nil {
		return fail(err)
	}

	var params *analytics.Params
	if c.initialCash > 0 {
		params = &analytics.Params{InitialCash: c.initialCash}
	}

	res, err := c.api().Report(ctx, in, params)
	if err != nil {
		return fail(err)
	}
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", res.Warning)
	}
	if c.asJSON {
		return printJSON(res.Report)
	}
	if err := display.Report(os.Stdout, res.Report, c.currency); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func printJSON(v any) subcommands.ExitStatus {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(err)
	}
	fmt.Println(string(out))
	return subcommands.ExitSuccess
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
