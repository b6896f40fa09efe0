package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	intentAnalysis "github.com/zhouzirui/z-mentor/backend/internal/analysis/intent"
	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
)

type extractReport struct {
	VisibleText string               `json:"visibleText"`
	Actions     []intentModel.Action `json:"actions"`
	Rejected    []string             `json:"rejected,omitempty"`
	Unknown     []string             `json:"unknown,omitempty"`
	Malformed   []string             `json:"malformed,omitempty"`
}

// extractCmd runs a raw model reply through the extractor and interpreter without
// touching storage.
func (c *cli) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file]",
		Short: "Parse system intents out of a model reply (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 1 && args[0] != "-" {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			res := intentAnalysis.Extract(string(raw))
			report := extractReport{VisibleText: res.VisibleText, Actions: []intentModel.Action{}}
			for _, f := range res.Failures {
				report.Malformed = append(report.Malformed, f.Error())
			}

			interp := intentAnalysis.NewInterpreter(c.logger)
			for _, in := range res.Intents {
				action, err := interp.Interpret(in)
				switch {
				case err != nil:
					report.Rejected = append(report.Rejected, err.Error())
				case action == nil:
					report.Unknown = append(report.Unknown, in.Action)
				default:
					report.Actions = append(report.Actions, *action)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		},
	}
}
