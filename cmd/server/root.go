package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/clubchat-server/internal/config"
	"github.com/vovakirdan/clubchat-server/internal/log"
)

type rootOptions struct {
	configPath string
	overrides  config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "clubchat",
		Short: "Club chat relay server",
		Long: `clubchat relays real-time club chat and private messages between
logged-in players over WebSocket.

Run without a subcommand to start the server.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.overrides.Store.Driver, "store-driver", "", "message store driver (sqlite, postgres)")
	flags.StringVar(&opts.overrides.Store.SQLitePath, "db", "", "sqlite database path")
	flags.StringVar(&opts.overrides.Store.PostgresURL, "postgres-url", "", "postgres connection url")

	serve := newServeCmd(opts)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, newUserCmd(opts), newSessionCmd(opts), newTokenCmd(opts))
	return root
}

// load resolves configuration with flag overrides applied last.
func (o *rootOptions) load() (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info")

	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	cfg.UpdateFrom(o.overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, bootstrap, err
	}

	logger := log.New(cfg.LogLevel)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return cfg, logger, nil
}
