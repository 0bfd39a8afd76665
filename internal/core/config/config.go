// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Constants for default paths
const (
	DefaultConfigDir      = ".nodeprep"
	DefaultConfigName     = "nodeprep"
	DefaultConfigFileName = "nodeprep.yaml"
	EnvPrefix             = "NODEPREP"
)

// ServiceConfig tunes the service lifecycle controller
type ServiceConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// Config holds the orchestrator configuration
type Config struct {
	// ArtifactRoot holds pre-built binaries and templates; never written
	ArtifactRoot string `mapstructure:"artifact_root" yaml:"artifact_root"`
	// TemplateDir is where runtime config templates live, relative to ArtifactRoot
	TemplateDir string `mapstructure:"template_dir" yaml:"template_dir"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile,omitempty"`
	ResultsFile     string `mapstructure:"results_file" yaml:"results_file,omitempty"`

	Service ServiceConfig `mapstructure:"service" yaml:"service"`

	// Vars are run-level variables; they take precedence over inventory vars
	Vars map[string]interface{} `mapstructure:"vars" yaml:"vars,omitempty"`
}

// NewDefaultConfig creates a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		ArtifactRoot: "artifacts",
		TemplateDir:  filepath.Join("templates", "containerd"),
		Concurrency:  4,
		LogLevel:     "info",
		LogFormat:    "text",
		Service: ServiceConfig{
			Timeout:      90 * time.Second,
			PollInterval: time.Second,
		},
		Vars: map[string]interface{}{},
	}
}

// ExpandPathWithTilde expands ~ to user home directory.
// It respects the NODEPREP_HOME environment variable for testing purposes.
func ExpandPathWithTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home := getHomeDir()
	if home == "" {
		return path // Return original if can't expand
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// getHomeDir returns the home directory, respecting NODEPREP_HOME for testing
func getHomeDir() string {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// LoadConfig loads the configuration.
// Defaults are overlaid by the config file and then by NODEPREP_* environment
// variables (NODEPREP_SERVICE_TIMEOUT maps to service.timeout). When path is
// empty, nodeprep.yaml is searched in the working directory and ~/.nodeprep;
// a missing file is not an error in that case.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(ExpandPathWithTilde(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home := getHomeDir(); home != "" {
			v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
		}

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.ArtifactRoot = ExpandPathWithTilde(cfg.ArtifactRoot)
	if cfg.Vars == nil {
		cfg.Vars = map[string]interface{}{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("artifact_root", defaults.ArtifactRoot)
	v.SetDefault("template_dir", defaults.TemplateDir)
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("metrics_textfile", defaults.MetricsTextfile)
	v.SetDefault("results_file", defaults.ResultsFile)
	v.SetDefault("service.timeout", defaults.Service.Timeout)
	v.SetDefault("service.poll_interval", defaults.Service.PollInterval)
	v.SetDefault("vars", defaults.Vars)
}

// Validate rejects settings the orchestrator cannot run with
func (c *Config) Validate() error {
	if c.ArtifactRoot == "" {
		return fmt.Errorf("artifact_root must be set")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service.timeout must be positive")
	}
	if c.Service.PollInterval <= 0 || c.Service.PollInterval > c.Service.Timeout {
		return fmt.Errorf("service.poll_interval must be positive and not exceed service.timeout")
	}
	return nil
}

// SaveConfig writes the configuration to dir/nodeprep.yaml
func SaveConfig(config *Config, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory '%s': %w", dir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	configPath := filepath.Join(dir, DefaultConfigFileName)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file '%s': %w", configPath, err)
	}

	return nil
}
