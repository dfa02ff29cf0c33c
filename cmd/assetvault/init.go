package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/assetvault/config"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration with fresh secrets",
		Long: `Create the data directory and write a configuration file holding a
random master key and token signing secret.

Examples:
  assetvault init
  assetvault init --data-dir /var/lib/assetvault`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultConfig()
			if a.dataDir != "" {
				cfg.DataDir = a.dataDir
			}
			path := a.configPath
			if path == "" {
				path = config.ConfigPath(cfg.DataDir)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			var err error
			if cfg.MasterKey, err = randomHex(32); err != nil {
				return err
			}
			if cfg.TokenSecret, err = randomHex(32); err != nil {
				return err
			}
			if err := config.SaveConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
