package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/z-mentor/backend/internal/app"
	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
)

func (c *cli) personasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List, export, import and delete mentor personas",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tTEMPERATURE\tCUSTOM")
				for _, p := range a.Personas.List(cmd.Context()) {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%t\n", p.ID, p.Name, p.SamplingTemperature(), p.IsCustom)
				}
				return tw.Flush()
			})
		},
	}

	var customOnly bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Print personas as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				var out []persona.Profile
				for _, p := range a.Personas.List(cmd.Context()) {
					if customOnly && !p.IsCustom {
						continue
					}
					out = append(out, p)
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(out); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}
	export.Flags().BoolVar(&customOnly, "custom", false, "only export custom personas")

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Save every persona in a YAML list as a custom persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var profiles []persona.Profile
			if err := yaml.Unmarshal(data, &profiles); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return c.withApp(cmd, func(a *app.App) error {
				for _, p := range profiles {
					saved, err := a.Personas.Save(cmd.Context(), p)
					if err != nil {
						return fmt.Errorf("save persona %q: %w", p.Name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", saved.ID, saved.Name)
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a custom persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				return a.Personas.Delete(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(list, export, importCmd, del)
	return cmd
}
