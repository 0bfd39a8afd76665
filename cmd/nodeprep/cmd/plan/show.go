// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"strings"

	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/settings"
	"github.com/kusari-oss/nodeprep/internal/core/format"
	"github.com/kusari-oss/nodeprep/internal/nodeprep"
	planpkg "github.com/kusari-oss/nodeprep/internal/nodeprep/plan"
	"github.com/spf13/cobra"
)

func newShowCmd(s *settings.Settings) *cobra.Command {
	var output string

	showCmd := &cobra.Command{
		Use:   "show [plan-file]",
		Short: "Show the steps of a plan in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := planpkg.LoadFile(args[0])
			if err != nil {
				return err
			}

			orchestrator, err := nodeprep.New(s.Config, s.Log)
			if err != nil {
				return err
			}
			if err := orchestrator.ValidatePlan(p); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "yaml", "json":
				data, err := format.FormatData(p, output == "yaml")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, data)
				return nil
			case "text":
			default:
				return fmt.Errorf("unsupported output format %q", output)
			}

			fmt.Fprintf(out, "Plan: %s\n", p.Name)
			if required := planpkg.RequiredVariables(p); len(required) > 0 {
				fmt.Fprintf(out, "Requires: %s\n", strings.Join(required, ", "))
			}
			for _, step := range p.Steps {
				line := fmt.Sprintf("%3d. %-20s %-16s %s", step.Index+1, step.ID, step.Action, step.DisplayName())
				if step.Guard != nil {
					line += " (guarded)"
				}
				if len(step.DependsOn) > 0 {
					line += fmt.Sprintf(" after %s", strings.Join(step.DependsOn, ", "))
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	showCmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, yaml or json)")

	return showCmd
}
