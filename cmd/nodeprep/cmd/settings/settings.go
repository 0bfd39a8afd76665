// SPDX-License-Identifier: Apache-2.0

// Package settings holds the state shared by every nodeprep subcommand.
package settings

import (
	"fmt"
	"io"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/config"
	"github.com/kusari-oss/nodeprep/internal/core/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Settings is filled by the root command's persistent flags and hook
type Settings struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	NoColor    bool

	Config *config.Config
	Log    *logrus.Logger
}

// AddFlags registers the persistent flags on the root command
func (s *Settings) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&s.ConfigFile, "config", "", "config file (default is ./nodeprep.yaml or ~/.nodeprep/nodeprep.yaml)")
	flags.StringVar(&s.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&s.LogFormat, "log-format", "", "log format (text or json)")
	flags.BoolVar(&s.NoColor, "no-color", false, "disable colored output")
}

// Load reads the configuration, applies flag overrides and builds the logger
func (s *Settings) Load(logOut io.Writer) error {
	cfg, err := config.LoadConfig(s.ConfigFile)
	if err != nil {
		return err
	}

	if s.LogLevel != "" {
		cfg.LogLevel = s.LogLevel
	}
	if s.LogFormat != "" {
		cfg.LogFormat = s.LogFormat
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}

	s.Config = cfg
	s.Log = log
	return nil
}

// ParseVars turns repeated key=value flags into run variables
func ParseVars(pairs []string) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
