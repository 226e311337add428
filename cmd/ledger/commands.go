package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"alpha_ledger/internal/ledger"
	"alpha_ledger/internal/models"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// runtime is shared by every command: how to build the app and where to write.
type runtime struct {
	open   func(ctx context.Context) (*app, error)
	out    io.Writer
	errOut io.Writer
}

// command adapts a function over the app to subcommands.Command.
type command struct {
	rt       *runtime
	name     string
	synopsis string
	usage    string
	nargs    int // exact positional count; negative means at least -nargs
	flags    func(f *flag.FlagSet)
	run      func(ctx context.Context, a *app, args []string) (interface{}, error)
}

func (c *command) Name() string     { return c.name }
func (c *command) Synopsis() string { return c.synopsis }
func (c *command) Usage() string    { return c.usage }

func (c *command) SetFlags(f *flag.FlagSet) {
	if c.flags != nil {
		c.flags(f)
	}
}

func (c *command) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if (c.nargs >= 0 && len(args) != c.nargs) || (c.nargs < 0 && len(args) < -c.nargs) {
		fmt.Fprintf(c.rt.errOut, "usage: %s", c.usage)
		return subcommands.ExitUsageError
	}

	a, err := c.rt.open(ctx)
	if err != nil {
		fmt.Fprintf(c.rt.errOut, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := c.run(ctx, a, args)
	if err != nil {
		if ledger.IsRetryable(err) {
			fmt.Fprintf(c.rt.errOut, "Error (retryable): %v\n", err)
		} else {
			fmt.Fprintf(c.rt.errOut, "Error: %v\n", err)
		}
		return subcommands.ExitFailure
	}
	if res != nil {
		if err := printJSON(c.rt.out, res); err != nil {
			fmt.Fprintf(c.rt.errOut, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func printJSON(w io.Writer, v interface{}) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func parseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return q, nil
}

type valueResult struct {
	Account string          `json:"account"`
	Value   decimal.Decimal `json:"value"`
}

// accountCommands are the ledger operations, one per subcommand.
func accountCommands(rt *runtime) []*command {
	var (
		buyRationale, sellRationale string
		resetStrategy               string
		txText                      bool
	)
	return []*command{
		{
			rt: rt, name: "balance", nargs: 1,
			synopsis: "show the cash balance",
			usage:    "balance <account>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				b, err := a.ledger.Balance(ctx, args[0])
				return valueResult{Account: args[0], Value: b}, err
			},
		},
		{
			rt: rt, name: "deposit", nargs: 2,
			synopsis: "add cash to an account",
			usage:    "deposit <account> <amount>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				amt, err := parseAmount(args[1])
				if err != nil {
					return nil, err
				}
				return a.ledger.Deposit(ctx, args[0], amt)
			},
		},
		{
			rt: rt, name: "withdraw", nargs: 2,
			synopsis: "take cash out of an account",
			usage:    "withdraw <account> <amount>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				amt, err := parseAmount(args[1])
				if err != nil {
					return nil, err
				}
				return a.ledger.Withdraw(ctx, args[0], amt)
			},
		},
		{
			rt: rt, name: "buy", nargs: 3,
			synopsis: "buy shares at the current price plus spread",
			usage:    "buy [-r rationale] <account> <symbol> <quantity>\n",
			flags: func(f *flag.FlagSet) {
				f.StringVar(&buyRationale, "r", "", "why the trade is made")
			},
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				q, err := parseQuantity(args[2])
				if err != nil {
					return nil, err
				}
				return a.ledger.BuyShares(ctx, args[0], args[1], q, buyRationale)
			},
		},
		{
			rt: rt, name: "sell", nargs: 3,
			synopsis: "sell shares at the current price minus spread",
			usage:    "sell [-r rationale] <account> <symbol> <quantity>\n",
			flags: func(f *flag.FlagSet) {
				f.StringVar(&sellRationale, "r", "", "why the trade is made")
			},
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				q, err := parseQuantity(args[2])
				if err != nil {
					return nil, err
				}
				return a.ledger.SellShares(ctx, args[0], args[1], q, sellRationale)
			},
		},
		{
			rt: rt, name: "holdings", nargs: 1,
			synopsis: "list held shares per symbol",
			usage:    "holdings <account>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				return a.ledger.Holdings(ctx, args[0])
			},
		},
		{
			rt: rt, name: "transactions", nargs: 1,
			synopsis: "list executed trades, oldest first",
			usage:    "transactions [-text] <account>\n",
			flags: func(f *flag.FlagSet) {
				f.BoolVar(&txText, "text", false, "print one sentence per trade instead of JSON")
			},
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				txs, err := a.ledger.Transactions(ctx, args[0])
				if err != nil || !txText {
					return txs, err
				}
				return describe(txs), nil
			},
		},
		{
			rt: rt, name: "value", nargs: 1,
			synopsis: "show cash plus holdings at current prices",
			usage:    "value <account>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				v, err := a.ledger.PortfolioValue(ctx, args[0])
				return valueResult{Account: args[0], Value: v}, err
			},
		},
		{
			rt: rt, name: "pnl", nargs: 1,
			synopsis: "show profit and loss against the starting balance",
			usage:    "pnl <account>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				v, err := a.ledger.ProfitAndLoss(ctx, args[0])
				return valueResult{Account: args[0], Value: v}, err
			},
		},
		{
			rt: rt, name: "report", nargs: 1,
			synopsis: "value the account and record it in the time series",
			usage:    "report <account>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				return a.ledger.Report(ctx, args[0])
			},
		},
		{
			rt: rt, name: "strategy", nargs: 1,
			synopsis: "show the account strategy",
			usage:    "strategy <account>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				return a.ledger.Strategy(ctx, args[0])
			},
		},
		{
			rt: rt, name: "set-strategy", nargs: -2,
			synopsis: "replace the account strategy",
			usage:    "set-strategy <account> <text...>\n",
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				return a.ledger.ChangeStrategy(ctx, args[0], strings.Join(args[1:], " "))
			},
		},
		{
			rt: rt, name: "reset", nargs: 1,
			synopsis: "restore the starting balance and clear history",
			usage:    "reset [-strategy text] <account>\n",
			flags: func(f *flag.FlagSet) {
				f.StringVar(&resetStrategy, "strategy", "", "strategy to start over with")
			},
			run: func(ctx context.Context, a *app, args []string) (interface{}, error) {
				return a.ledger.Reset(ctx, args[0], resetStrategy)
			},
		},
	}
}

func describe(txs []models.Transaction) string {
	var sb strings.Builder
	for _, tx := range txs {
		verb := "Bought"
		if tx.Quantity < 0 {
			verb = "Sold"
		}
		fmt.Fprintf(&sb, "%s %s %s\n", tx.Timestamp, verb, tx.String())
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
