package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-mentor/backend/internal/app"
)

func (c *cli) planCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:       "plan <tasks|goals|habits|reflections|metrics|profile>",
		Short:     "Dump stored planner collections or the user profile as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"tasks", "goals", "habits", "reflections", "metrics", "profile"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				var (
					v   any
					err error
				)
				switch args[0] {
				case "tasks":
					v, err = a.Planner.ListTasks(ctx)
				case "goals":
					v, err = a.Planner.ListGoals(ctx)
				case "habits":
					v, err = a.Planner.ListHabits(ctx)
				case "reflections":
					v, err = a.Planner.ListReflections(ctx, filter)
				case "metrics":
					v, err = a.Planner.ListMetrics(ctx, filter)
				case "profile":
					v, err = a.Profiles.Get(ctx)
				default:
					return fmt.Errorf("unknown collection %q", args[0])
				}
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "tag for reflections, name for metrics")
	return cmd
}
