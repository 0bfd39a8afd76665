// SPDX-License-Identifier: Apache-2.0

package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStep(t *testing.T) {
	t.Run("DisplayNameFallsBackToID", func(t *testing.T) {
		step := Step{ID: "copy-shim", Action: ActionFileCopy}
		assert.Equal(t, "copy-shim", step.DisplayName())

		step.Name = "Copy wasm shim"
		assert.Equal(t, "Copy wasm shim", step.DisplayName())
	})

	t.Run("StepWithDependencies", func(t *testing.T) {
		step := Step{
			ID:        "restart-containerd",
			Action:    ActionServiceControl,
			DependsOn: []string{"render-config", "copy-shim"},
		}

		assert.Len(t, step.DependsOn, 2)
		assert.Contains(t, step.DependsOn, "render-config")
	})
}

func TestOutcome(t *testing.T) {
	assert.True(t, OutcomeChanged.Succeeded())
	assert.True(t, OutcomeUnchanged.Succeeded())
	assert.False(t, OutcomeSkipped.Succeeded())
	assert.False(t, OutcomeFailed.Succeeded())

	assert.Equal(t, OutcomeChanged, ChangedIf(true))
	assert.Equal(t, OutcomeUnchanged, ChangedIf(false))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"nil", nil, ""},
		{"unresolved", fmt.Errorf("token x: %w", ErrUnresolvedVariable), KindUnresolvedVariable},
		{"source", fmt.Errorf("%w: bin/a", ErrSourceNotFound), KindSourceNotFound},
		{"destination", fmt.Errorf("%w: /bin/a", ErrDestinationUnwritable), KindDestinationUnwritable},
		{"mismatch", fmt.Errorf("%w: wasmedge", ErrConfigurationMismatch), KindConfigurationMismatch},
		{"service not found", fmt.Errorf("%w: containerd", ErrServiceNotFound), KindServiceTransition},
		{"timeout", fmt.Errorf("%w: containerd", ErrTransitionTimeout), KindServiceTransition},
		{"guard", fmt.Errorf("%w: swap", ErrGuardEvaluation), KindGuardEvaluation},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestStepError(t *testing.T) {
	step := Step{ID: "render", Name: "Render containerd config", Index: 2}
	cause := fmt.Errorf("%w: no template for wasmedge", ErrConfigurationMismatch)

	stepErr := NewStepError(step, cause)

	assert.Equal(t, "render", stepErr.StepID)
	assert.Equal(t, 2, stepErr.Index)
	assert.Equal(t, KindConfigurationMismatch, stepErr.Kind)
	assert.ErrorIs(t, stepErr, ErrConfigurationMismatch)
	assert.Contains(t, stepErr.Error(), "step 3 (Render containerd config)")
	assert.Contains(t, stepErr.Error(), "configuration-mismatch")
}

func TestNodeResultCounts(t *testing.T) {
	result := &NodeResult{
		Node: "worker-1",
		Results: []StepResult{
			{StepID: "a", Outcome: OutcomeChanged},
			{StepID: "b", Outcome: OutcomeSkipped},
			{StepID: "c", Outcome: OutcomeChanged},
		},
	}

	assert.Equal(t, 2, result.Count(OutcomeChanged))
	assert.Equal(t, 1, result.Count(OutcomeSkipped))
	assert.False(t, result.Failed())

	result.Failure = &StepError{StepID: "c"}
	assert.True(t, result.Failed())

	run := &RunResult{Nodes: []*NodeResult{result, {Node: "worker-2"}}}
	assert.Equal(t, []string{"worker-1"}, run.FailedNodes())
}
