// SPDX-License-Identifier: Apache-2.0

package metrics_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	recorder := metrics.NewRecorder()

	recorder.StepCompleted("worker-1", models.StepResult{Action: models.ActionFileCopy, Outcome: models.OutcomeChanged, Duration: 10 * time.Millisecond})
	recorder.StepCompleted("worker-1", models.StepResult{Action: models.ActionFileCopy, Outcome: models.OutcomeChanged, Duration: 5 * time.Millisecond})
	recorder.StepCompleted("worker-1", models.StepResult{Action: models.ActionServiceControl, Outcome: models.OutcomeSkipped})
	recorder.NodeFinished(&models.NodeResult{Node: "worker-1"})
	recorder.NodeFinished(&models.NodeResult{Node: "worker-2", Failure: &models.StepError{StepID: "render"}})

	count, err := testutil.GatherAndCount(recorder.Registry(), "nodeprep_steps_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per node/action/outcome")

	path := filepath.Join(t.TempDir(), "nodeprep.prom")
	require.NoError(t, recorder.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `nodeprep_steps_total{action="file-copy",node="worker-1",outcome="changed"} 2`)
	assert.Contains(t, text, `nodeprep_steps_total{action="service-control",node="worker-1",outcome="skipped"} 1`)
	assert.Contains(t, text, `nodeprep_node_failed{node="worker-2"} 1`)
	assert.Contains(t, text, `nodeprep_step_duration_seconds_count{action="file-copy"} 2`)
}
