package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/arlobright/signalbox/internal/jobs"
	"github.com/arlobright/signalbox/internal/messaging"
	"github.com/arlobright/signalbox/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// wireJobCompletion connects the message log's responded hook to the
// job tracker, so a responded delivery settles the recipient's derived
// job.
func wireJobCompletion(gdb *gorm.DB, msgLog *messaging.Log) *jobs.Tracker {
	tracker := jobs.New(gdb, msgLog)
	msgLog.OnResponded = tracker.CompleteFromMessage
	return tracker
}

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job tracking commands",
	}

	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobStartCmd())
	cmd.AddCommand(newJobCompleteCmd())
	cmd.AddCommand(newJobFailCmd())
	cmd.AddCommand(newJobCancelCmd())
	cmd.AddCommand(newJobListCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		configPath string
		owner      string
		requester  string
		priority   int
		parentID   uint
		originID   uint
		notify     []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tracker := wireJobCompletion(gdb, newMessageLog(cfg, gdb))

			opts := jobs.CreateOpts{
				Requester:  requester,
				Priority:   priority,
				NotifyList: notify,
			}
			if cmd.Flags().Changed("parent-id") {
				opts.ParentJobID = &parentID
			}
			if cmd.Flags().Changed("origin-message") {
				opts.OriginMessageID = &originID
			}

			job, err := tracker.Create(owner, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created job %d for %s (priority %d)\n",
				job.ID, job.OwnerAgent, job.Priority)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&owner, "owner", "", "owning agent ID (required)")
	cmd.Flags().StringVar(&requester, "requester", "", "requesting agent ID")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1-10 (default 5)")
	cmd.Flags().UintVar(&parentID, "parent-id", 0, "parent job ID")
	cmd.Flags().UintVar(&originID, "origin-message", 0, "message ID this job derives from")
	cmd.Flags().StringSliceVar(&notify, "notify", nil, "agents to message on completion (repeatable)")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newJobStartCmd() *cobra.Command {
	var (
		configPath string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "start <job-id>",
		Short: "Move a pending job to in_progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tracker := wireJobCompletion(gdb, newMessageLog(cfg, gdb))
			if err := tracker.Transition(id, models.JobInProgress, agent); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d started\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "acting agent ID; must own the job (required)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func newJobCompleteCmd() *cobra.Command {
	var (
		configPath  string
		agent       string
		deliverable string
		summary     string
	)

	cmd := &cobra.Command{
		Use:   "complete <job-id>",
		Short: "Complete an in-progress job",
		Long:  "Records the deliverable, marks the job completed, and messages everyone on its notify list.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tracker := wireJobCompletion(gdb, newMessageLog(cfg, gdb))
			if err := tracker.Complete(id, agent, deliverable, summary); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d completed\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "acting agent ID; must own the job (required)")
	cmd.Flags().StringVar(&deliverable, "deliverable", "", "completion artifact or pointer to it")
	cmd.Flags().StringVar(&summary, "summary", "", "short completion summary")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func newJobFailCmd() *cobra.Command {
	var (
		configPath  string
		agent       string
		errorDetail string
	)

	cmd := &cobra.Command{
		Use:   "fail <job-id>",
		Short: "Fail an in-progress job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tracker := wireJobCompletion(gdb, newMessageLog(cfg, gdb))
			if err := tracker.Fail(id, agent, errorDetail); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d failed\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "acting agent ID; must own the job (required)")
	cmd.Flags().StringVar(&errorDetail, "error", "", "failure detail")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func newJobCancelCmd() *cobra.Command {
	var (
		configPath string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job",
		Long:  "Cancels a job that has not started. Child jobs are unaffected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tracker := wireJobCompletion(gdb, newMessageLog(cfg, gdb))
			if err := tracker.Transition(id, models.JobCancelled, agent); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d cancelled\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&agent, "agent", "", "acting agent ID; must own the job (required)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func newJobListCmd() *cobra.Command {
	var (
		configPath string
		owner      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's pending jobs",
		Long:  "Lists pending jobs for an owner, highest priority first, oldest first within a priority.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tracker := wireJobCompletion(gdb, newMessageLog(cfg, gdb))
			jobsList, err := tracker.ListPending(owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobsList) == 0 {
				fmt.Fprintf(out, "No pending jobs for %s\n", owner)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tREQUESTER\tCREATED")
			for _, j := range jobsList {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n",
					j.ID, j.Priority, j.RequesterAgent, formatTime(j.CreatedAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&owner, "owner", "", "owning agent ID (required)")
	cmd.MarkFlagRequired("owner")
	return cmd
}
