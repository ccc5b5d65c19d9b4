package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"

	"scadenze/internal/cli"
	"scadenze/internal/log"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range cli.Commands(open) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// open wires the engine from the usual configuration. Logs go to stderr so
// they never mix with command output.
func open(ctx context.Context) (*cli.Env, func(), error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logCfg := log.ConfigFrom(cfg.LogLevel, cfg.LogFormat, log.ComponentCLI)
	logCfg.Output = os.Stderr
	if logCfg.Level < slog.LevelWarn {
		logCfg.Level = slog.LevelWarn
	}
	logger := log.New(logCfg)
	log.SetDefault(logger)

	result, err := cli.CreateBackend(ctx, logger, cfg)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := result.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	}
	return &cli.Env{Engine: result.Engine, Out: os.Stdout}, release, nil
}
