// SPDX-License-Identifier: Apache-2.0

package report_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/report"
	"github.com/stretchr/testify/assert"
)

func TestPrint(t *testing.T) {
	renderStep := models.Step{ID: "render", Name: "Render containerd config", Index: 2}

	run := &models.RunResult{
		RunID: "3f6c",
		Plan:  "wasm-worker",
		Nodes: []*models.NodeResult{
			{
				Node:  "worker-1",
				Group: "workers",
				Results: []models.StepResult{
					{Name: "Copy crun", Index: 0, Action: models.ActionFileCopy, Outcome: models.OutcomeUnchanged},
					{Name: "Disable swap", Index: 1, Action: models.ActionCommandRun, Outcome: models.OutcomeSkipped},
					{Name: "Restart containerd", Index: 2, Action: models.ActionServiceControl, Outcome: models.OutcomeChanged},
				},
			},
			{
				Node: "worker-2",
				Results: []models.StepResult{
					{Name: "Render containerd config", Index: 2, Action: models.ActionTemplateRender, Outcome: models.OutcomeFailed},
				},
				Failure: models.NewStepError(renderStep, fmt.Errorf("%w: no template for wasmedge", models.ErrConfigurationMismatch)),
			},
			{
				Node: "worker-3",
				Err:  errors.New("error gathering facts"),
			},
		},
	}

	var buf bytes.Buffer
	report.NewPrinter(&buf, true).Print(run)
	out := buf.String()

	assert.Contains(t, out, "Run 3f6c, plan wasm-worker")
	assert.Contains(t, out, "NODE [worker-1] (workers)")
	assert.Contains(t, out, "skipped     2. Disable swap [command-run]")
	assert.Contains(t, out, "FAILED step 3 (Render containerd config) failed [configuration-mismatch]")
	assert.Contains(t, out, "FAILED error gathering facts")
	assert.Contains(t, out, "changed=1 unchanged=1 skipped=1 failed=0")
	assert.Contains(t, out, "changed=0 unchanged=0 skipped=0 failed=1")
	assert.NotContains(t, out, "\x1b[")
}
