package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/config"
	"github.com/bitfsorg/assetvault/logging"
	"github.com/bitfsorg/assetvault/vault"
)

// app holds state shared by the subcommands after the root pre-run.
type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "assetvault",
		Short: "Encrypted asset storage with token-gated retrieval",
		Long: `assetvault stores uploaded files on local disk or Google Drive,
encrypting secure assets with AES-256-GCM, and serves them back through
short-lived signed download tokens.

Configuration is read from <data-dir>/config and may be overridden with
ASSETVAULT_<KEY> environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default <data-dir>/config)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default ~/.assetvault)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newInitCmd(a),
		newServeCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newTokenCmd(a),
		newCheckCmd(a),
	)
	return root
}

// setup resolves configuration and the logger. A missing config file is
// not an error: defaults and the environment are used instead.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "init" {
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *app) loadConfig() (config.Config, error) {
	path := a.configPath
	if path == "" {
		dir := a.dataDir
		if dir == "" {
			dir = os.Getenv(config.EnvPrefix + "_DATADIR")
		}
		if dir == "" {
			dir = config.DefaultDataDir()
		}
		path = config.ConfigPath(dir)
	}

	cfg, err := config.LoadConfig(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		if a.configPath != "" {
			return config.Config{}, err
		}
		cfg = config.FromEnv()
	case err != nil:
		return config.Config{}, err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	return cfg, nil
}

// openVault opens the vault described by the loaded configuration.
func (a *app) openVault(ctx context.Context, opts vault.OpenOptions) (*vault.Vault, error) {
	v, err := vault.Open(ctx, a.cfg, a.log, opts)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return v, nil
}
