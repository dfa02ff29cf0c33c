package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/server"
	"github.com/bitfsorg/assetvault/vault"
)

func newServeCmd(a *app) *cobra.Command {
	var maxUpload int64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			v, err := a.openVault(ctx, vault.OpenOptions{Registerer: reg})
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Health(ctx); err != nil {
				a.log.Warn("starting with incomplete configuration", zap.Error(err))
			}

			srv := server.New(v, server.Options{
				Addr:           a.cfg.ListenAddr,
				MaxUploadBytes: maxUpload,
				Gatherer:       reg,
				Logger:         a.log,
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().Int64Var(&maxUpload, "max-upload", server.DefaultMaxUploadBytes, "largest accepted upload in bytes")
	return cmd
}
