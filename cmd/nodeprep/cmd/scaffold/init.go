// SPDX-License-Identifier: Apache-2.0

// Package scaffold implements `nodeprep init`.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kusari-oss/nodeprep/cmd/nodeprep/cmd/settings"
	"github.com/kusari-oss/nodeprep/internal/core/config"
	"github.com/kusari-oss/nodeprep/internal/defaults"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd(s *settings.Settings) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter artifact root with templates, a plan and an inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("error resolving directory: %w", err)
			}

			written, err := defaults.NewManager().CopyDefaults(dir, force)
			if err != nil {
				return err
			}
			for _, file := range written {
				s.Log.WithField("file", file).Debug("written")
			}

			configPath := filepath.Join(dir, config.DefaultConfigFileName)
			if _, err := os.Stat(configPath); force || os.IsNotExist(err) {
				cfg := config.NewDefaultConfig()
				cfg.ArtifactRoot = dir
				if err := config.SaveConfig(cfg, dir); err != nil {
					return err
				}
				written = append(written, config.DefaultConfigFileName)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (%d files written)\n", dir, len(written))
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")

	return initCmd
}
