// Command ledger runs trading ledger operations against the configured
// account store and price source.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"alpha_ledger/internal/config"
	"alpha_ledger/internal/logger"

	"github.com/google/subcommands"
)

const VersionFile = "version.latest"

var configFiles = flag.String("config", "ledger.toml", "comma separated TOML config files, later files win")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	rt := &runtime{open: openFromConfig, out: os.Stdout, errOut: os.Stderr}
	register(commander, rt)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}

func register(c *subcommands.Commander, rt *runtime) {
	for _, cmd := range accountCommands(rt) {
		c.Register(cmd, "account")
	}
	c.Register(watchCommand(rt), "service")
	c.Register(configCommand(rt), "service")
}

// openFromConfig loads configuration and builds the logger and app.
func openFromConfig(ctx context.Context) (*app, error) {
	cfg, err := config.Load(strings.Split(*configFiles, ",")...)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	a.closers = append([]io.Closer{log}, a.closers...)
	return a, nil
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
