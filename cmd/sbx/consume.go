package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/arlobright/signalbox/internal/config"
	"github.com/arlobright/signalbox/internal/consumer"
	"github.com/arlobright/signalbox/internal/snapshot"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newConsumeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Follow the published configuration document",
		Long: `Stands in for the consuming platform process: loads the published
document, writes the pidfile named in publish.pid_file, and reloads on
both file replacement and SIGHUP, printing a summary of each reload.
Useful for verifying the publish/signal path end to end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runConsume(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	return cmd
}

func runConsume(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	if cfg.Publish.PidFile != "" {
		pid := strconv.Itoa(os.Getpid()) + "\n"
		if err := os.WriteFile(cfg.Publish.PidFile, []byte(pid), 0o644); err != nil {
			return fmt.Errorf("write pidfile %s: %w", cfg.Publish.PidFile, err)
		}
		defer os.Remove(cfg.Publish.PidFile)
	}

	w := consumer.NewWatcher(cfg.Publish.TargetPath)
	w.OnReload = func(doc *snapshot.Document) {
		fmt.Fprintf(out, "loaded %s: %d agents, %d models\n",
			cfg.Publish.TargetPath, len(doc.Agents), len(doc.Models))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n", cfg.Publish.TargetPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-hup:
				if err := w.Load(); err != nil {
					fmt.Fprintf(out, "reload on SIGHUP: %v\n", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
