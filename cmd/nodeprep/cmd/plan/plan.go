// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/settings"
	"github.com/spf13/cobra"
)

// NewPlanCmd creates the plan command group
func NewPlanCmd(s *settings.Settings) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect provisioning plans",
		Long:  `Commands for validating plans and showing their execution order.`,
	}

	planCmd.AddCommand(newValidateCmd(s))
	planCmd.AddCommand(newShowCmd(s))

	return planCmd
}
