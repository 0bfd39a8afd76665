// SPDX-License-Identifier: Apache-2.0

package nodeprep_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/config"
	"github.com/kusari-oss/nodeprep/internal/core/format"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/nodeprep"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/facts"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/inventory"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/service"
	"github.com/kusari-oss/nodeprep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu        sync.Mutex
	completed map[string]int
}

func (c *countingObserver) StepStarted(node string, step models.Step) {}

func (c *countingObserver) StepCompleted(node string, result models.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed[node]++
}

type fixture struct {
	cfg   *config.Config
	inv   *inventory.Inventory
	roots map[string]string
	out   string
}

func newFixture(t *testing.T) *fixture {
	artifacts := t.TempDir()
	out := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(artifacts, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(artifacts, "bin", "containerd-shim-wasm"), []byte("shim"), 0644))
	templates := filepath.Join(artifacts, "templates", "containerd")
	require.NoError(t, os.MkdirAll(templates, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(templates, "config-wamr.toml"),
		[]byte("endpoint = [\"http://{{.registry_address}}\"]\n# {{.node_name}} k8s {{.kubernetes_minor}}\n"), 0644))

	roots := map[string]string{}
	for _, name := range []string{"worker-1", "worker-2"} {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "local", "bin"), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "etc", "containerd"), 0755))
		roots[name] = root
	}

	cfg := config.NewDefaultConfig()
	cfg.ArtifactRoot = artifacts
	cfg.Concurrency = 2
	cfg.Service.Timeout = time.Second
	cfg.Service.PollInterval = 10 * time.Millisecond
	cfg.ResultsFile = filepath.Join(out, "results.yaml")
	cfg.MetricsTextfile = filepath.Join(out, "nodeprep.prom")

	inv := &inventory.Inventory{
		Vars: map[string]interface{}{"registry_address": "registry.local:5000"},
		Groups: map[string]inventory.Group{
			"workers": {
				Vars: map[string]interface{}{"runtime_backend": "wamr"},
				Nodes: []inventory.Node{
					{Name: "worker-1", Root: roots["worker-1"]},
					{Name: "worker-2", Root: roots["worker-2"], Vars: map[string]interface{}{"runtime_backend": "wasmedge"}},
				},
			},
		},
	}

	return &fixture{cfg: cfg, inv: inv, roots: roots, out: out}
}

func workerPlan() *models.Plan {
	return &models.Plan{
		Name: "wasm-worker",
		Steps: []models.Step{
			{ID: "copy-shim", Action: models.ActionFileCopy, Params: map[string]interface{}{
				"src": "bin/containerd-shim-wasm", "dest": "/usr/local/bin/containerd-shim-wasm",
			}},
			{ID: "exec-shim", Action: models.ActionFileMode, DependsOn: []string{"copy-shim"}, Params: map[string]interface{}{
				"path": "/usr/local/bin/containerd-shim-wasm", "executable": true,
			}},
			{ID: "render", Action: models.ActionTemplateRender, Params: map[string]interface{}{
				"dest": "/etc/containerd/config.toml", "backend": "{{.runtime_backend}}",
			}},
			{ID: "restart", Action: models.ActionServiceControl, DependsOn: []string{"render"}, Params: map[string]interface{}{
				"name": "containerd", "state": "restart",
			}},
		},
	}
}

func newOrchestrator(t *testing.T, cfg *config.Config) (*nodeprep.Orchestrator, *testutil.MockManager) {
	manager := new(testutil.MockManager)
	manager.On("Exists", mock.Anything, "containerd").Return(true, nil)
	manager.On("Apply", mock.Anything, "containerd", service.Restart).Return(nil)
	manager.On("Active", mock.Anything, "containerd").Return(true, nil)

	o, err := nodeprep.New(cfg, nil)
	require.NoError(t, err)
	o.WithGatherer(&facts.StaticGatherer{Facts: map[string]interface{}{
		facts.SwapTotalKB: 0,
		facts.PkgMgr:      "apt",
	}}).WithServiceManager(manager)
	return o, manager
}

var runVars = map[string]interface{}{
	"registry_address":   "10.0.0.5",
	"kubernetes_version": "v1.29.3",
}

func TestRunIsolatesNodeFailures(t *testing.T) {
	f := newFixture(t)
	o, manager := newOrchestrator(t, f.cfg)
	observer := &countingObserver{completed: map[string]int{}}
	o.WithObserver(observer)

	run, err := o.Run(context.Background(), workerPlan(), f.inv, nil, runVars)
	require.NoError(t, err)
	require.Len(t, run.Nodes, 2)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "wasm-worker", run.Plan)

	healthy, broken := run.Nodes[0], run.Nodes[1]
	assert.Equal(t, "worker-1", healthy.Node)
	assert.Equal(t, "workers", healthy.Group)
	assert.False(t, healthy.Failed(), healthy.FailureDetail)
	assert.Equal(t, 4, healthy.Count(models.OutcomeChanged))

	config, err := os.ReadFile(filepath.Join(f.roots["worker-1"], "etc", "containerd", "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "endpoint = [\"http://10.0.0.5\"]\n# worker-1 k8s 1.29\n", string(config))

	info, err := os.Stat(filepath.Join(f.roots["worker-1"], "usr", "local", "bin", "containerd-shim-wasm"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111)

	require.True(t, broken.Failed())
	assert.Equal(t, "render", broken.Failure.StepID)
	assert.Equal(t, models.KindConfigurationMismatch, broken.Failure.Kind)
	assert.Len(t, broken.Results, 3)
	assert.NoFileExists(t, filepath.Join(f.roots["worker-2"], "etc", "containerd", "config.toml"))

	assert.Equal(t, []string{"worker-2"}, run.FailedNodes())
	manager.AssertNumberOfCalls(t, "Apply", 1)

	assert.Equal(t, 4, observer.completed["worker-1"])
	assert.Equal(t, 3, observer.completed["worker-2"])
}

func TestRunWritesResultsAndMetrics(t *testing.T) {
	f := newFixture(t)
	o, _ := newOrchestrator(t, f.cfg)

	_, err := o.Run(context.Background(), workerPlan(), f.inv, []string{"worker-1"}, runVars)
	require.NoError(t, err)

	var saved models.RunResult
	require.NoError(t, format.ParseFile(f.cfg.ResultsFile, &saved))
	require.Len(t, saved.Nodes, 1)
	assert.Equal(t, "worker-1", saved.Nodes[0].Node)
	assert.Len(t, saved.Nodes[0].Results, 4)

	textfile, err := os.ReadFile(f.cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(textfile), "nodeprep_steps_total")
	assert.Contains(t, string(textfile), `node="worker-1"`)
}

func TestRunRerunConverges(t *testing.T) {
	f := newFixture(t)
	o, _ := newOrchestrator(t, f.cfg)

	_, err := o.Run(context.Background(), workerPlan(), f.inv, []string{"worker-1"}, runVars)
	require.NoError(t, err)

	run, err := o.Run(context.Background(), workerPlan(), f.inv, []string{"worker-1"}, runVars)
	require.NoError(t, err)
	require.Len(t, run.Nodes, 1)
	assert.Equal(t, 3, run.Nodes[0].Count(models.OutcomeUnchanged))
	assert.Equal(t, 1, run.Nodes[0].Count(models.OutcomeChanged), "restart always reports changed")
}

func TestRunRejectsBeforeTouchingNodes(t *testing.T) {
	tests := []struct {
		name    string
		plan    func() *models.Plan
		vars    map[string]interface{}
		limit   []string
		modify  func(f *fixture)
		wantErr error
	}{
		{
			name:    "missing run variable",
			plan:    workerPlan,
			vars:    map[string]interface{}{"registry_address": "10.0.0.5"},
			wantErr: models.ErrMissingRequiredVariable,
		},
		{
			name:    "bad kubernetes version",
			plan:    workerPlan,
			vars:    map[string]interface{}{"registry_address": "10.0.0.5", "kubernetes_version": "latest"},
			wantErr: models.ErrInvalidParameters,
		},
		{
			name: "unknown action",
			plan: func() *models.Plan {
				p := workerPlan()
				p.Steps[0].Action = "reboot"
				return p
			},
			vars: runVars,
		},
		{
			name:  "unknown node in limit",
			plan:  workerPlan,
			vars:  runVars,
			limit: []string{"worker-9"},
		},
		{
			name: "misspelled placeholder",
			plan: func() *models.Plan {
				p := workerPlan()
				p.Steps[2].Params["dest"] = "/etc/containerd/{{.regsitry_address}}.toml"
				return p
			},
			vars:    runVars,
			wantErr: models.ErrUnresolvedVariable,
		},
		{
			name: "nodes sharing a root",
			plan: workerPlan,
			vars: runVars,
			modify: func(f *fixture) {
				f.inv.Groups["workers"].Nodes[1].Root = f.roots["worker-1"] + "/"
			},
			wantErr: models.ErrConfigurationMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.modify != nil {
				tt.modify(f)
			}
			o, manager := newOrchestrator(t, f.cfg)

			run, err := o.Run(context.Background(), tt.plan(), f.inv, tt.limit, tt.vars)
			require.Error(t, err)
			assert.Nil(t, run)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			for _, root := range f.roots {
				assert.NoFileExists(t, filepath.Join(root, "usr", "local", "bin", "containerd-shim-wasm"))
			}
			assert.NoFileExists(t, f.cfg.ResultsFile)
			manager.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	o, _ := newOrchestrator(t, f.cfg)

	nodes, err := o.Check(workerPlan(), f.inv, []string{"workers"}, runVars)
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-1", "worker-2"}, nodes)

	for _, root := range f.roots {
		assert.NoFileExists(t, filepath.Join(root, "etc", "containerd", "config.toml"))
	}
}

type recordingRunner struct {
	mu   sync.Mutex
	cmds []command.Command
}

// Run answers systemctl queries for a loaded, active unit and succeeds otherwise
func (r *recordingRunner) Run(ctx context.Context, cmd command.Command) (*command.Result, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()

	line := cmd.String()
	switch {
	case strings.Contains(line, "--property=LoadState"):
		return &command.Result{Output: []byte("loaded\n")}, nil
	case strings.Contains(line, "is-active"):
		return &command.Result{Output: []byte("active\n")}, nil
	}
	return &command.Result{}, nil
}

func buildPlan() *models.Plan {
	return &models.Plan{
		Name: "wasm-runtime",
		Steps: []models.Step{
			{ID: "build-crun", Action: models.ActionCommandRun, Params: map[string]interface{}{
				"cmd":     "./configure {{.runtime_build_flag}} && make",
				"chdir":   "/usr/local/src/crun",
				"creates": "/usr/local/bin/crun",
			}},
			{ID: "render", Action: models.ActionTemplateRender, Params: map[string]interface{}{
				"dest": "/etc/containerd/config.toml", "backend": "{{.runtime_backend}}",
			}},
			{ID: "restart", Action: models.ActionServiceControl, DependsOn: []string{"build-crun", "render"}, Params: map[string]interface{}{
				"name": "containerd", "state": "restart",
			}},
		},
	}
}

func TestRunBuildsAndConfiguresTheSameBackend(t *testing.T) {
	f := newFixture(t)
	templates := filepath.Join(f.cfg.ArtifactRoot, "templates", "containerd")
	for _, backend := range []string{"wamr", "wasmedge"} {
		require.NoError(t, os.WriteFile(filepath.Join(templates, "config-"+backend+".toml"),
			[]byte("runtime_type = \"io.containerd.{{.runtime_backend}}.v1\"\n"), 0644))
	}
	f.inv.Groups["workers"].Nodes[0].Machine = "worker-1"

	runner := &recordingRunner{}
	o, err := nodeprep.New(f.cfg, nil)
	require.NoError(t, err)
	o.WithGatherer(&facts.StaticGatherer{Facts: map[string]interface{}{
		facts.SwapTotalKB: 0,
		facts.PkgMgr:      "apt",
	}}).WithRunner(runner)

	run, err := o.Run(context.Background(), buildPlan(), f.inv, nil, runVars)
	require.NoError(t, err)
	require.Len(t, run.Nodes, 2)

	for _, tt := range []struct {
		node    string
		backend string
	}{
		{"worker-1", "wamr"},
		{"worker-2", "wasmedge"},
	} {
		root := f.roots[tt.node]

		var build *command.Command
		for i, cmd := range runner.cmds {
			if cmd.Name == "chroot" && cmd.Args[0] == root {
				build = &runner.cmds[i]
			}
		}
		require.NotNil(t, build, tt.node)
		assert.Equal(t, "./configure --with-"+tt.backend+" && make", build.Args[len(build.Args)-1])
		assert.Contains(t, build.Args, "/usr/local/src/crun", "chdir is applied inside the root")

		config, err := os.ReadFile(filepath.Join(root, "etc", "containerd", "config.toml"))
		require.NoError(t, err)
		assert.Equal(t, "runtime_type = \"io.containerd."+tt.backend+".v1\"\n", string(config))
	}

	assert.False(t, run.Nodes[0].Failed(), run.Nodes[0].FailureDetail)
	assert.Equal(t, 3, run.Nodes[0].Count(models.OutcomeChanged))

	require.True(t, run.Nodes[1].Failed())
	assert.Equal(t, "restart", run.Nodes[1].Failure.StepID)
	assert.Equal(t, models.KindConfigurationMismatch, run.Nodes[1].Failure.Kind)

	for _, cmd := range runner.cmds {
		switch cmd.Name {
		case "chroot":
		case "systemctl":
			assert.Equal(t, "--machine=worker-1", cmd.Args[0], cmd.String())
		default:
			t.Errorf("command ran on the host: %s", cmd)
		}
	}
}
