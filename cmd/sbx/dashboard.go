package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/arlobright/signalbox/internal/dashboard"
	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Run the status dashboard standalone",
		Long:  "Serves the JSON status API without the reconcilers. With the daemon running, prefer enabling the dashboard in config so /api/status reports reconciler state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Dashboard.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gdb,
				Port: port,
				Out:  cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (defaults to config)")
	return cmd
}
