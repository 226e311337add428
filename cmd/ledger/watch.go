package main

import (
	"context"
	"flag"

	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/storage"
	"alpha_ledger/internal/watcher"
)

// watchCommand runs the valuation watcher until interrupted, or once with -once.
func watchCommand(rt *runtime) *command {
	var once bool
	return &command{
		rt: rt, name: "watch", nargs: 0,
		synopsis: "periodically report on accounts to build their value history",
		usage:    "watch [-once]\n",
		flags: func(f *flag.FlagSet) {
			f.BoolVar(&once, "once", false, "poll a single time and print the reports")
		},
		run: func(ctx context.Context, a *app, _ []string) (interface{}, error) {
			opts := []watcher.Option{watcher.WithAccounts(a.cfg.Watcher.Accounts...)}
			if rf, err := logger.OpenRotatingFile(a.summaryPath(), a.cfg.Logging.MaxSizeMB, a.cfg.Logging.MaxBackups); err != nil {
				a.log.Warn().Err(err).Msg("valuation summary unavailable")
			} else {
				a.closers = append(a.closers, rf)
				opts = append(opts, watcher.WithSummary(rf))
			}

			lister, _ := a.store.(storage.Lister)
			w := watcher.New(a.ledger, lister, a.log, opts...)
			if once {
				return w.Poll(ctx)
			}

			a.log.Info().
				Str("version", readVersion()).
				Int("poll_interval_mins", a.cfg.Watcher.PollIntervalMins).
				Strs("accounts", a.cfg.Watcher.Accounts).
				Msg("valuation watcher started")
			return nil, w.Run(ctx, a.cfg.Watcher.Interval())
		},
	}
}

// configCommand prints the effective settings with secrets masked.
func configCommand(rt *runtime) *command {
	return &command{
		rt: rt, name: "config", nargs: 0,
		synopsis: "print the effective configuration",
		usage:    "config\n",
		run: func(_ context.Context, a *app, _ []string) (interface{}, error) {
			return a.cfg.Redacted(), nil
		},
	}
}
