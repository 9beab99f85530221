package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyonhq/aide/internal/cron"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(cronListCmd())
	cmd.AddCommand(cronAddCmd())
	cmd.AddCommand(cronRemoveCmd())
	return cmd
}

func cronActions() (*cron.Actions, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store := cron.NewStore(cfg.Security.DataDir)
	// No timer: the running gateway reloads the store file on its own.
	return cron.NewActions(store, nil), nil
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			actions, err := cronActions()
			if err != nil {
				slog.Error("cron.config_failed", "error", err)
				os.Exit(1)
			}
			res := actions.List()
			if len(res.Jobs) == 0 {
				fmt.Println("no jobs")
				return
			}
			for _, j := range res.Jobs {
				state := "enabled"
				if !j.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s  %-20s %-10s %s  %q\n", j.ID, j.Label, state, describeSchedule(j.Schedule), j.Payload.Text)
			}
		},
	}
}

func cronAddCmd() *cobra.Command {
	var (
		label   string
		expr    string
		at      string
		everyMs int64
	)
	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Add a scheduled job (one of --cron, --at, --every)",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			actions, err := cronActions()
			if err != nil {
				slog.Error("cron.config_failed", "error", err)
				os.Exit(1)
			}

			schedule, err := scheduleFromFlags(expr, at, everyMs)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			res := actions.Add(label, schedule, strings.Join(args, " "))
			if !res.Success {
				fmt.Fprintln(os.Stderr, res.Message)
				os.Exit(1)
			}
			fmt.Println(res.Message)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "job label")
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression, e.g. \"0 9 * * *\"")
	cmd.Flags().StringVar(&at, "at", "", "one-shot RFC3339 instant")
	cmd.Flags().Int64Var(&everyMs, "every", 0, "repeat interval in milliseconds")
	return cmd
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			actions, err := cronActions()
			if err != nil {
				slog.Error("cron.config_failed", "error", err)
				os.Exit(1)
			}
			res := actions.Remove(args[0])
			if !res.Success {
				fmt.Fprintln(os.Stderr, res.Message)
				os.Exit(1)
			}
			fmt.Println(res.Message)
		},
	}
}

func scheduleFromFlags(expr, at string, everyMs int64) (cron.Schedule, error) {
	set := 0
	for _, ok := range []bool{expr != "", at != "", everyMs != 0} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return cron.Schedule{}, fmt.Errorf("exactly one of --cron, --at, --every is required")
	}
	switch {
	case expr != "":
		return cron.Schedule{Kind: cron.KindCron, Expr: expr}, nil
	case at != "":
		return cron.Schedule{Kind: cron.KindOneshot, ISO: at}, nil
	default:
		return cron.Schedule{Kind: cron.KindInterval, EveryMs: everyMs}, nil
	}
}

func describeSchedule(s cron.Schedule) string {
	switch s.Kind {
	case cron.KindCron:
		return "cron " + s.Expr
	case cron.KindOneshot:
		return "at " + s.ISO
	case cron.KindInterval:
		return fmt.Sprintf("every %dms", s.EveryMs)
	}
	return s.Kind
}
