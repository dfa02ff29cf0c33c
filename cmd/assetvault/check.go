package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/assetvault/vault"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and report vault health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.openVault(cmd.Context(), vault.OpenOptions{})
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Health(cmd.Context()); err != nil {
				return fmt.Errorf("unhealthy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: backend=%s data-dir=%s\n", v.Backend().Kind(), a.cfg.DataDir)
			return nil
		},
	}
}
