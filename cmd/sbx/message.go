package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         []string
		body       string
		parentID   uint
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to one or more agents",
		Long:  "Appends a message to the durable log and notifies listening recipients.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			msgLog := newMessageLog(cfg, gdb)

			var parent *uint
			if cmd.Flags().Changed("parent-id") {
				parent = &parentID
			}

			msg, err := msgLog.Submit(from, body, to, parent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d to %v\n", msg.ID, to)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&from, "from", "", "sender agent ID (required)")
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient agent IDs (required, repeatable)")
	cmd.Flags().StringVar(&body, "body", "", "message body (required)")
	cmd.Flags().UintVar(&parentID, "parent-id", 0, "parent message ID for threading")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("body")
	return cmd
}

func newInboxCmd() *cobra.Command {
	var (
		configPath string
		agent      string
		since      uint
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List an agent's pending messages",
		Long:  "Lists messages addressed to an agent with IDs past the given cursor, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			msgLog := newMessageLog(cfg, gdb)

			sinceID := since
			if !cmd.Flags().Changed("since") {
				sinceID, err = msgLog.Cursor(agent)
				if err != nil {
					return err
				}
			}

			msgs, err := msgLog.ListPending(agent, sinceID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No pending messages for %s\n", agent)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFROM\tBODY\tCREATED")
			for _, m := range msgs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					m.ID, m.FromAgent, truncate(m.Body, 60), formatTime(m.CreatedAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "agent ID to check inbox (required)")
	cmd.Flags().UintVar(&since, "since", 0, "explicit cursor (defaults to the agent's stored cursor)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func newMarkCmd() *cobra.Command {
	var (
		configPath  string
		agent       string
		errorDetail string
	)

	cmd := &cobra.Command{
		Use:   "mark <received|routed|responded|failed> <message-id>",
		Short: "Advance a message's delivery state",
		Long: `Records delivery progress for one recipient of a message.
States advance received → routed → responded; failed is reachable from
received or routed. Marking responded completes the recipient's job
derived from the message, if one exists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1], "message")
			if err != nil {
				return err
			}

			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			msgLog := newMessageLog(cfg, gdb)
			wireJobCompletion(gdb, msgLog)

			switch args[0] {
			case "received":
				err = msgLog.MarkReceived(id, agent)
			case "routed":
				err = msgLog.MarkRouted(id, agent)
			case "responded":
				err = msgLog.MarkResponded(id, agent)
			case "failed":
				err = msgLog.MarkFailed(id, agent, errorDetail)
			default:
				return fmt.Errorf("unknown delivery state %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked message %d %s for %s\n", id, args[0], agent)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "recipient agent ID (required)")
	cmd.Flags().StringVar(&errorDetail, "error", "", "failure detail (with failed)")
	cmd.MarkFlagRequired("agent")
	return cmd
}
