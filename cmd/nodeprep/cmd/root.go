// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/plan"
	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/run"
	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/scaffold"
	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/settings"
	"github.com/kusari-oss/nodeprep/internal/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the nodeprep command tree
func NewRootCmd() *cobra.Command {
	s := &settings.Settings{}

	rootCmd := &cobra.Command{
		Use:   "nodeprep",
		Short: "Node bootstrap orchestrator",
		Long: `Nodeprep brings the container runtime stack of cluster worker nodes to a
known state: it stages pre-built artifacts, renders the runtime configuration
for the selected WebAssembly backend and restarts the affected services.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version.Version, version.Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.Load(cmd.ErrOrStderr())
		},
	}

	s.AddFlags(rootCmd)

	rootCmd.AddCommand(run.NewRunCmd(s))
	rootCmd.AddCommand(plan.NewPlanCmd(s))
	rootCmd.AddCommand(scaffold.NewInitCmd(s))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
