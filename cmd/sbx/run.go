package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arlobright/signalbox/internal/dashboard"
	"github.com/arlobright/signalbox/internal/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		listeners  []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the signalbox daemon",
		Long: `Runs the config-sync reconciler, the optional scheduled rebuild,
the dashboard if enabled, and an inbox listener per --listen agent, all
under one supervisor. The daemon exits when any component fails or on
SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath, listeners)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringSliceVar(&listeners, "listen", nil, "agents to run inbox listeners for (repeatable)")
	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string, listeners []string) error {
	cfg, gdb, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	msgLog := newMessageLog(cfg, gdb)
	wireJobCompletion(gdb, msgLog)

	var sig reconcile.Signaler
	if cfg.Publish.PidFile != "" {
		sig = &reconcile.PidfileSignaler{Path: cfg.Publish.PidFile}
	}
	rebuild := reconcile.NewRebuildCycle(gdb, cfg.Publish.TargetPath, sig, out)

	configSync := &reconcile.Reconciler{
		Name:           "config-sync",
		Stream:         newStream(cfg, gdb),
		Cycle:          rebuild,
		BackoffInitial: cfg.Reconcile.BackoffInitial,
		BackoffMax:     cfg.Reconcile.BackoffMax,
		Keepalive:      cfg.Reconcile.KeepaliveInterval,
		Out:            out,
	}

	reconcilers := []*reconcile.Reconciler{configSync}
	for _, agent := range listeners {
		handler := inboxHandler(cfg, agent)
		reconcilers = append(reconcilers, &reconcile.Reconciler{
			Name:           "inbox-" + agent,
			Stream:         newStream(cfg, gdb),
			Cycle:          reconcile.NewInboxCycle(msgLog, agent, handler, out),
			BackoffInitial: cfg.Reconcile.BackoffInitial,
			BackoffMax:     cfg.Reconcile.BackoffMax,
			Keepalive:      cfg.Reconcile.KeepaliveInterval,
			Out:            out,
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range reconcilers {
		g.Go(func() error { return r.Run(ctx) })
	}
	if cfg.Reconcile.RebuildSchedule != "" {
		g.Go(func() error {
			return reconcile.RunScheduled(ctx, cfg.Reconcile.RebuildSchedule, rebuild)
		})
	}
	if cfg.Dashboard.Enabled {
		g.Go(func() error {
			return dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gdb,
				Port: cfg.Dashboard.Port,
				Out:  out,
				Status: func() []reconcile.Status {
					statuses := make([]reconcile.Status, len(reconcilers))
					for i, r := range reconcilers {
						statuses[i] = r.CurrentStatus()
					}
					return statuses
				},
			})
		})
	}

	fmt.Fprintf(out, "signalbox running (%d reconcilers)... (Ctrl+C to stop)\n", len(reconcilers))

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Fprintln(out, "signalbox stopped")
	return nil
}
