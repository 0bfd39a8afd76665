// SPDX-License-Identifier: Apache-2.0

package run

import (
	"fmt"

	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/settings"
	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/nodeprep"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/inventory"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/plan"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/report"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd(s *settings.Settings) *cobra.Command {
	var (
		planFile      string
		inventoryFile string
		limit         []string
		varPairs      []string
		verbose       bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Provision the inventory's nodes with a plan",
		Long: `Run executes the plan on every selected node concurrently. A failing step
halts its node only; the command exits non-zero when any node failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.Config
			flags := cmd.Flags()

			if flags.Changed("artifact-root") {
				cfg.ArtifactRoot, _ = flags.GetString("artifact-root")
			}
			if flags.Changed("concurrency") {
				cfg.Concurrency, _ = flags.GetInt("concurrency")
			}
			if flags.Changed("results") {
				cfg.ResultsFile, _ = flags.GetString("results")
			}
			if flags.Changed("metrics-textfile") {
				cfg.MetricsTextfile, _ = flags.GetString("metrics-textfile")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runVars, err := settings.ParseVars(varPairs)
			if err != nil {
				return err
			}

			p, err := plan.LoadFile(planFile)
			if err != nil {
				return err
			}
			inv, err := inventory.LoadFile(inventoryFile)
			if err != nil {
				return err
			}

			orchestrator, err := nodeprep.New(cfg, s.Log)
			if err != nil {
				return err
			}
			if verbose {
				orchestrator.WithRunner(command.NewExecRunner(s.Log, true))
			}

			result, err := orchestrator.Run(cmd.Context(), p, inv, limit, runVars)
			if result != nil {
				report.NewPrinter(cmd.OutOrStdout(), s.NoColor).Print(result)
			}
			if err != nil {
				return err
			}

			if failed := result.FailedNodes(); len(failed) > 0 {
				return fmt.Errorf("%d node(s) failed: %v", len(failed), failed)
			}
			return nil
		},
	}

	flags := runCmd.Flags()
	flags.StringVarP(&planFile, "plan", "p", "", "plan file (YAML or JSON)")
	flags.StringVarP(&inventoryFile, "inventory", "i", "", "inventory file (YAML or JSON)")
	flags.StringSliceVarP(&limit, "limit", "l", nil, "restrict the run to these nodes or groups")
	flags.StringArrayVarP(&varPairs, "var", "e", nil, "run variable as key=value (repeatable)")
	flags.String("artifact-root", "", "directory holding pre-built artifacts and templates")
	flags.Int("concurrency", 0, "number of nodes provisioned at once")
	flags.String("results", "", "write the run results to this YAML or JSON file")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this textfile")
	flags.BoolVar(&verbose, "verbose", false, "stream command output to the terminal")

	_ = runCmd.MarkFlagRequired("plan")
	_ = runCmd.MarkFlagRequired("inventory")

	return runCmd
}
