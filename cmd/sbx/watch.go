package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/arlobright/signalbox/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		agent      string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream messages in real-time",
		Long:  "Polls the message log and prints new messages as they arrive. Defaults to watching messages addressed to \"human\". Use --all to watch everything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath, agent, all)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "human", "recipient to watch")
	cmd.Flags().BoolVar(&all, "all", false, "watch all messages regardless of recipient")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath, agent string, all bool) error {
	_, gdb, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if all {
		fmt.Fprintln(out, "Watching all messages... (Ctrl+C to stop)")
	} else {
		fmt.Fprintf(out, "Watching messages for %q... (Ctrl+C to stop)\n", agent)
	}

	// Show recent messages first.
	var recent []models.Message
	q := buildWatchQuery(gdb, agent, all)
	if err := q.Order("id DESC").Limit(10).Preload("Recipients").Find(&recent).Error; err != nil {
		return fmt.Errorf("query messages: %w", err)
	}

	// Reverse for chronological display.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	for _, m := range recent {
		printWatchMessage(out, m)
	}

	var lastID uint
	if len(recent) > 0 {
		lastID = recent[len(recent)-1].ID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var newMsgs []models.Message
			nq := buildWatchQuery(gdb, agent, all).Where("messages.id > ?", lastID).Order("id ASC").Preload("Recipients")
			if err := nq.Find(&newMsgs).Error; err != nil {
				fmt.Fprintf(out, "poll error: %v\n", err)
				continue
			}
			for _, m := range newMsgs {
				printWatchMessage(out, m)
				lastID = m.ID
			}
		}
	}
}

func buildWatchQuery(gdb *gorm.DB, agent string, all bool) *gorm.DB {
	q := gdb.Model(&models.Message{})
	if !all {
		q = q.Distinct("messages.*").
			Joins("JOIN message_recipients ON message_recipients.message_id = messages.id").
			Where("message_recipients.agent_id = ?", agent)
	}
	return q
}

func printWatchMessage(out io.Writer, m models.Message) {
	ts := m.CreatedAt.Format("15:04:05")
	var to []string
	for _, r := range m.Recipients {
		to = append(to, r.AgentID)
	}
	fmt.Fprintf(out, "[%s] %s -> %s: %s\n", ts, m.FromAgent, strings.Join(to, ","), truncate(m.Body, 200))
}
