// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"strings"

	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/settings"
	"github.com/kusari-oss/nodeprep/internal/nodeprep"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/inventory"
	planpkg "github.com/kusari-oss/nodeprep/internal/nodeprep/plan"
	"github.com/spf13/cobra"
)

func newValidateCmd(s *settings.Settings) *cobra.Command {
	var (
		inventoryFile string
		limit         []string
		varPairs      []string
	)

	validateCmd := &cobra.Command{
		Use:   "validate [plan-file]",
		Short: "Validate a plan, and optionally resolve it against an inventory",
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

			if inventoryFile == "" {
				if err := orchestrator.ValidatePlan(p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan %s is valid: %d steps\n", p.Name, len(p.Steps))
				return nil
			}

			runVars, err := settings.ParseVars(varPairs)
			if err != nil {
				return err
			}
			inv, err := inventory.LoadFile(inventoryFile)
			if err != nil {
				return err
			}

			nodes, err := orchestrator.Check(p, inv, limit, runVars)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Plan %s is valid: %d steps, nodes: %s\n",
				p.Name, len(p.Steps), strings.Join(nodes, ", "))
			return nil
		},
	}

	flags := validateCmd.Flags()
	flags.StringVarP(&inventoryFile, "inventory", "i", "", "inventory file to resolve variables against")
	flags.StringSliceVarP(&limit, "limit", "l", nil, "restrict the check to these nodes or groups")
	flags.StringArrayVarP(&varPairs, "var", "e", nil, "run variable as key=value (repeatable)")

	return validateCmd
}
