package main

import (
	"fmt"

	"github.com/arlobright/signalbox/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBPingCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the signalbox database",
		Long:  "Migrates all tables and, on postgres, installs the change-notification triggers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gdb, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s store %q\n", cfg.Store.Driver, cfg.Store.Database)

	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if cfg.Store.Driver == db.DriverPostgres {
		if err := db.InstallNotifyTriggers(gdb); err != nil {
			return err
		}
		fmt.Fprintf(out, "Installed change-notification triggers on channel %q\n", db.EventChannel)
	} else {
		fmt.Fprintf(out, "Driver %s has no notification channel; reconcilers will poll every %s\n",
			cfg.Store.Driver, cfg.Reconcile.PollInterval)
	}

	fmt.Fprintln(out, "\nSignalbox database initialized successfully.")
	return nil
}

func newDBPingCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check store connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := db.Ping(gdb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store %s/%s is reachable\n", cfg.Store.Driver, cfg.Store.Database)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	return cmd
}
