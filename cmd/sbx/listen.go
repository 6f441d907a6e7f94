package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arlobright/signalbox/internal/config"
	"github.com/arlobright/signalbox/internal/identity"
	"github.com/arlobright/signalbox/internal/messaging"
	"github.com/arlobright/signalbox/internal/models"
	"github.com/arlobright/signalbox/internal/reconcile"
	"github.com/spf13/cobra"
)

func newListenCmd() *cobra.Command {
	var (
		configPath string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run an inbox listener for one agent",
		Long: `Drains the agent's inbox past its stored cursor, then follows new
messages as they arrive, marking each received and advancing the
cursor. Messages addressed to "human" also fire the configured desktop
notification command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			name := identity.Canonical(agent)
			msgLog := newMessageLog(cfg, gdb)
			wireJobCompletion(gdb, msgLog)

			out := cmd.OutOrStdout()
			r := &reconcile.Reconciler{
				Name:           "inbox-" + name,
				Stream:         newStream(cfg, gdb),
				Cycle:          reconcile.NewInboxCycle(msgLog, name, inboxHandler(cfg, name), out),
				BackoffInitial: cfg.Reconcile.BackoffInitial,
				BackoffMax:     cfg.Reconcile.BackoffMax,
				Keepalive:      cfg.Reconcile.KeepaliveInterval,
				Out:            out,
			}

			fmt.Fprintf(out, "Listening for messages to %q... (Ctrl+C to stop)\n", name)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "agent ID to listen for (required)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

// inboxHandler fires the desktop notification for human-targeted
// messages. Other recipients just get the delivery line on stdout.
func inboxHandler(cfg *config.Config, agent string) reconcile.MessageHandler {
	return func(msg *models.Message) error {
		if messaging.ShouldNotify(agent) {
			messaging.DesktopNotify(msg, cfg.Notify)
		}
		return nil
	}
}
