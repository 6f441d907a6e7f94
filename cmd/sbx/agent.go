package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/arlobright/signalbox/internal/identity"
	"github.com/arlobright/signalbox/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm/clause"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent configuration commands",
	}

	cmd.AddCommand(newAgentSetCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentRmCmd())
	return cmd
}

func newAgentSetCmd() *cobra.Command {
	var (
		configPath string
		model      string
		fallbacks  []string
		reasoning  string
		class      string
		subagents  []string
	)

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update an agent config",
		Long: `Upserts one agent's deployment parameters. Names are
case-insensitive; the stored form is lowercase. On postgres the write
fires a change notification, so running reconcilers republish the
document without being told.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := identity.Canonical(args[0])
			if name == "" {
				return fmt.Errorf("agent name is required")
			}
			if model == "" {
				return fmt.Errorf("--model is required")
			}

			_, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			row := models.AgentConfig{
				Name:           name,
				Model:          model,
				FallbackModels: encodeStringList(fallbacks),
				ReasoningDepth: reasoning,
				InstanceClass:  class,
				Subagents:      encodeStringList(subagents),
			}
			err = gdb.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"model", "fallback_models", "reasoning_depth", "instance_class", "subagents", "updated_at",
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert agent %s: %w", name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Agent %s set (model %s)\n", name, model)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&model, "model", "", "primary model ID (required)")
	cmd.Flags().StringSliceVar(&fallbacks, "fallback", nil, "fallback model IDs in preference order (repeatable)")
	cmd.Flags().StringVar(&reasoning, "reasoning", "", "reasoning depth hint, applied at spawn time")
	cmd.Flags().StringVar(&class, "class", "", "instance class")
	cmd.Flags().StringSliceVar(&subagents, "subagent", nil, "spawnable subagent names (repeatable)")
	return cmd
}

func newAgentListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agent configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var agents []models.AgentConfig
			if err := gdb.Order("name ASC").Find(&agents).Error; err != nil {
				return fmt.Errorf("list agents: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents configured")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODEL\tFALLBACKS\tSUBAGENTS\tUPDATED")
			for _, a := range agents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.Name, a.Model,
					strings.Join(decodeStringList(a.FallbackModels), ","),
					strings.Join(decodeStringList(a.Subagents), ","),
					formatTime(a.UpdatedAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	return cmd
}

func newAgentRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an agent config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := identity.Canonical(args[0])

			_, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			res := gdb.Where("name = ?", name).Delete(&models.AgentConfig{})
			if res.Error != nil {
				return fmt.Errorf("remove agent %s: %w", name, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("agent %q not found", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %s removed\n", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	return cmd
}

func newDefaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "default",
		Short: "System default commands",
	}

	cmd.AddCommand(newDefaultSetCmd())
	cmd.AddCommand(newDefaultListCmd())
	return cmd
}

func newDefaultSetCmd() *cobra.Command {
	var (
		configPath string
		valueType  string
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a system default",
		Long: `Upserts one typed key/value pair. The snapshot builder only
publishes keys it recognizes and skips values whose type tag does not
match the key's declared type.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch valueType {
			case models.ValueInteger, models.ValueBoolean, models.ValueString:
			default:
				return fmt.Errorf("--type %q is not one of integer, boolean, string", valueType)
			}

			_, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			row := models.SystemDefault{Key: args[0], Value: args[1], ValueType: valueType}
			err = gdb.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "value_type", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert default %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Default %s = %s (%s)\n", args[0], args[1], valueType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	cmd.Flags().StringVar(&valueType, "type", models.ValueString, "value type: integer, boolean, string")
	return cmd
}

func newDefaultListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List system defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var defaults []models.SystemDefault
			if err := gdb.Order("key ASC").Find(&defaults).Error; err != nil {
				return fmt.Errorf("list defaults: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(defaults) == 0 {
				fmt.Fprintln(out, "No system defaults set")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tTYPE\tUPDATED")
			for _, d := range defaults {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Key, d.Value, d.ValueType, formatTime(d.UpdatedAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to signalbox config file")
	return cmd
}

func encodeStringList(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	data, _ := json.Marshal(vals)
	return string(data)
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil
	}
	return vals
}
