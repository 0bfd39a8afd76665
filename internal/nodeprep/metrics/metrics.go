// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts step outcomes of a run. It satisfies executor.Observer
// and is safe for concurrent node runs.
type Recorder struct {
	registry *prometheus.Registry

	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	failed   *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nodeprep_steps_total",
			Help: "Steps executed, by node, action kind and outcome",
		}, []string{"node", "action", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodeprep_step_duration_seconds",
			Help:    "Wall time spent per step, by action kind",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"action"}),
		failed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nodeprep_node_failed",
			Help: "1 when the node did not converge in the last run",
		}, []string{"node"}),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// StepStarted is a no-op
func (r *Recorder) StepStarted(node string, step models.Step) {}

// StepCompleted records the outcome and duration of a step
func (r *Recorder) StepCompleted(node string, result models.StepResult) {
	r.steps.WithLabelValues(node, string(result.Action), string(result.Outcome)).Inc()
	if result.Outcome != models.OutcomeSkipped {
		r.duration.WithLabelValues(string(result.Action)).Observe(result.Duration.Seconds())
	}
}

// NodeFinished records whether a node converged
func (r *Recorder) NodeFinished(result *models.NodeResult) {
	value := 0.0
	if result.Failed() {
		value = 1
	}
	r.failed.WithLabelValues(result.Node).Set(value)
}

// WriteTextfile writes the metrics in the node-exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("error writing metrics textfile: %w", err)
	}
	return nil
}
