// SPDX-License-Identifier: Apache-2.0

package plan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kusari-oss/nodeprep/internal/core/format"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/action"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/condition"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workerPlan = `name: wasm-worker
required:
  - bin_dir
steps:
  - id: restart
    name: Restart containerd
    action: service-control
    depends_on: [render]
    params:
      name: containerd
      state: restart
  - id: copy-crun
    action: file-copy
    params:
      src: bin/crun
      dest: "{{.bin_dir}}/crun"
      mode: "0755"
  - id: render
    action: template-render
    depends_on: [copy-crun]
    guard:
      all:
        - fact: swap_total_kb
          op: eq
          value: 0
        - expr: facts.pkg_mgr == 'apt'
    params:
      dest: /etc/containerd/config.toml
      backend: "{{.runtime_backend}}"
`

func writePlan(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	p, err := plan.LoadFile(writePlan(t, "plan.yaml", workerPlan))
	require.NoError(t, err)

	assert.Equal(t, "wasm-worker", p.Name)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, models.ActionServiceControl, p.Steps[0].Action)
	assert.Equal(t, "0755", p.Steps[1].Params["mode"])
	require.NotNil(t, p.Steps[2].Guard)
	assert.Len(t, p.Steps[2].Guard.All, 2)

	_, err = plan.LoadFile(writePlan(t, "bad.yaml", "name: x\nstages: []\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestOrder(t *testing.T) {
	p, err := plan.LoadFile(writePlan(t, "plan.yaml", workerPlan))
	require.NoError(t, err)

	require.NoError(t, plan.Order(p))

	ids := make([]string, 0, len(p.Steps))
	for i, step := range p.Steps {
		ids = append(ids, step.ID)
		assert.Equal(t, i, step.Index)
	}
	assert.Equal(t, []string{"copy-crun", "render", "restart"}, ids)
}

func TestOrderKeepsDeclaredOrderWithoutDependencies(t *testing.T) {
	p := &models.Plan{Steps: []models.Step{
		{ID: "c", Action: models.ActionCommandRun},
		{ID: "a", Action: models.ActionCommandRun},
		{ID: "b", Action: models.ActionCommandRun},
	}}

	require.NoError(t, plan.Order(p))
	assert.Equal(t, "c", p.Steps[0].ID)
	assert.Equal(t, "a", p.Steps[1].ID)
	assert.Equal(t, "b", p.Steps[2].ID)
	assert.Equal(t, 2, p.Steps[2].Index)
}

func TestValidate(t *testing.T) {
	registry := action.NewDefaultRegistry()
	gate, err := condition.NewGate()
	require.NoError(t, err)

	tests := []struct {
		name    string
		steps   []models.Step
		wantErr string
	}{
		{
			name: "valid",
			steps: []models.Step{
				{ID: "a", Action: models.ActionFileCopy},
				{ID: "b", Action: models.ActionServiceControl, DependsOn: []string{"a"}},
			},
		},
		{
			name:    "empty",
			wantErr: "no steps",
		},
		{
			name:    "empty id",
			steps:   []models.Step{{Action: models.ActionFileCopy}},
			wantErr: "empty ID",
		},
		{
			name: "duplicate id",
			steps: []models.Step{
				{ID: "a", Action: models.ActionFileCopy},
				{ID: "a", Action: models.ActionFileMode},
			},
			wantErr: "duplicate step ID",
		},
		{
			name:    "unknown action",
			steps:   []models.Step{{ID: "a", Action: "reboot"}},
			wantErr: "unknown action",
		},
		{
			name:    "unknown dependency",
			steps:   []models.Step{{ID: "a", Action: models.ActionFileCopy, DependsOn: []string{"z"}}},
			wantErr: "non-existent step",
		},
		{
			name: "cycle",
			steps: []models.Step{
				{ID: "a", Action: models.ActionFileCopy, DependsOn: []string{"c"}},
				{ID: "b", Action: models.ActionFileCopy, DependsOn: []string{"a"}},
				{ID: "c", Action: models.ActionFileCopy, DependsOn: []string{"b"}},
			},
			wantErr: "circular dependency",
		},
		{
			name: "malformed guard",
			steps: []models.Step{
				{ID: "a", Action: models.ActionFileCopy, Guard: &models.Guard{Fact: "x", Op: "approx"}},
			},
			wantErr: "unknown operator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := plan.Validate(&models.Plan{Steps: tt.steps}, registry.Has, gate)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVariables(t *testing.T) {
	p, err := plan.LoadFile(writePlan(t, "plan.yaml", workerPlan))
	require.NoError(t, err)

	assert.Equal(t, []string{"registry_address", "runtime_backend", "kubernetes_version", "bin_dir"}, plan.RequiredVariables(p))
	assert.Equal(t, []string{"bin_dir", "runtime_backend"}, plan.ReferencedVariables(p))

	scope := variables.NewScope()
	require.NoError(t, scope.Push(variables.LayerRun, map[string]interface{}{
		"registry_address": "10.0.0.5",
		"runtime_backend":  "wamr",
	}))
	err = plan.CheckVariables(p, scope.Freeze())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingRequiredVariable)
	assert.Contains(t, err.Error(), "kubernetes_version")
	assert.Contains(t, err.Error(), "bin_dir")
}

func TestCheckVariablesUnboundPlaceholder(t *testing.T) {
	p, err := plan.LoadFile(writePlan(t, "plan.yaml", workerPlan))
	require.NoError(t, err)

	scope := variables.NewScope()
	require.NoError(t, scope.Push(variables.LayerRun, map[string]interface{}{
		"registry_address":   "10.0.0.5",
		"runtime_backend":    "wamr",
		"kubernetes_version": "v1.29.3",
		"bin_dir":            "/usr/local/bin",
	}))
	require.NoError(t, plan.CheckVariables(p, scope.Freeze()))

	p.Steps[0].Params["name"] = "{{.regsitry_address}}"
	err = plan.CheckVariables(p, scope)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnresolvedVariable)
	assert.Contains(t, err.Error(), "regsitry_address")
}

func TestLoadFileJSON(t *testing.T) {
	p, err := plan.LoadFile(writePlan(t, "plan.yaml", workerPlan))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, format.WriteFile(out, p))

	loaded, err := plan.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, p.Name, loaded.Name)
	assert.Len(t, loaded.Steps, 3)
}
