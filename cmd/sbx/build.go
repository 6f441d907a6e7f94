package main

import (
	"fmt"

	"github.com/arlobright/signalbox/internal/reconcile"
	"github.com/spf13/cobra"
)

func newBuildCmd() *cobra.Command {
	var (
		configPath string
		noSignal   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild and publish the configuration document once",
		Long: `Runs a single rebuild cycle: reads agent configs and system
defaults, builds the document, and atomically replaces the published
file if its content changed. Useful for seeding the document before
the daemon runs, or for forcing a publish after manual DB edits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var sig reconcile.Signaler
			if cfg.Publish.PidFile != "" && !noSignal {
				sig = &reconcile.PidfileSignaler{Path: cfg.Publish.PidFile}
			}

			out := cmd.OutOrStdout()
			cycle := reconcile.NewRebuildCycle(gdb, cfg.Publish.TargetPath, sig, out)
			if err := cycle(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Document is current at %s\n", cfg.Publish.TargetPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().BoolVar(&noSignal, "no-signal", false, "skip the consumer reload signal")
	return cmd
}
