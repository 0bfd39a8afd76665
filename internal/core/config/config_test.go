// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kusari-oss/nodeprep/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, "artifacts", cfg.ArtifactRoot)
	assert.Equal(t, filepath.Join("templates", "containerd"), cfg.TemplateDir)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Service.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodeprep.yaml")
	content := `artifact_root: /srv/artifacts
concurrency: 2
log_format: json
service:
  timeout: 30s
  poll_interval: 500ms
vars:
  registry_address: 10.0.0.5
  runtime_backend: wamr
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/artifacts", cfg.ArtifactRoot)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Service.PollInterval)
	assert.Equal(t, "10.0.0.5", cfg.Vars["registry_address"])
	assert.Equal(t, "wamr", cfg.Vars["runtime_backend"])
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodeprep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 2\n"), 0644))

	t.Setenv("NODEPREP_CONCURRENCY", "7")
	t.Setenv("NODEPREP_SERVICE_TIMEOUT", "2m")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Service.Timeout)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("NODEPREP_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaultConfig().Concurrency, cfg.Concurrency)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := config.LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "explicit path must exist")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("concurrency: 0\n"), 0644))
	_, err = config.LoadConfig(bad)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}

func TestExpandPathWithTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NODEPREP_HOME", home)

	assert.Equal(t, home, config.ExpandPathWithTilde("~"))
	assert.Equal(t, filepath.Join(home, "artifacts"), config.ExpandPathWithTilde("~/artifacts"))
	assert.Equal(t, "/abs/path", config.ExpandPathWithTilde("/abs/path"))
	assert.Equal(t, "rel/path", config.ExpandPathWithTilde("rel/path"))
}

func TestSaveConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefaultConfig()
	cfg.ArtifactRoot = "/opt/artifacts"

	require.NoError(t, config.SaveConfig(cfg, dir))

	loaded, err := config.LoadConfig(filepath.Join(dir, config.DefaultConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "/opt/artifacts", loaded.ArtifactRoot)
	assert.Equal(t, cfg.Service.Timeout, loaded.Service.Timeout)
}
