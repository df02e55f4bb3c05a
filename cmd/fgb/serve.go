package main

import (
	"github.com/spf13/cobra"

	"github.com/tingold/fgbstream/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory of containers with range support",
		Long: `Serve exposes every *.fgb file in a directory under /layers/<name>.fgb
with single and multi-range support, lists them at /layers and publishes
Prometheus metrics at /metrics.

Examples:
  fgb serve --dir ./data --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Serve.Addr
			}
			if !cmd.Flags().Changed("dir") {
				dir = a.cfg.Serve.Dir
			}

			srv := server.New(server.Config{
				Dir:         dir,
				CORSOrigins: a.cfg.Serve.CORSOrigins,
				Logger:      a.logger,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&dir, "dir", "", "directory of *.fgb files (default from config, .)")
	return cmd
}
