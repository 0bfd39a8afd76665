// SPDX-License-Identifier: Apache-2.0

package models

import "time"

// Outcome is the recorded result of one step
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeChanged   Outcome = "changed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Succeeded reports whether the outcome counts as success for control flow
func (o Outcome) Succeeded() bool {
	return o == OutcomeUnchanged || o == OutcomeChanged
}

// ChangedIf maps a handler's change flag onto an outcome
func ChangedIf(changed bool) Outcome {
	if changed {
		return OutcomeChanged
	}
	return OutcomeUnchanged
}

// StepResult records the outcome of executing a step
type StepResult struct {
	StepID   string        `json:"step_id" yaml:"step_id"`
	Name     string        `json:"name" yaml:"name"`
	Index    int           `json:"index" yaml:"index"`
	Action   ActionKind    `json:"action" yaml:"action"`
	Outcome  Outcome       `json:"outcome" yaml:"outcome"`
	Kind     ErrorKind     `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// NodeResult collects every step result for one node
type NodeResult struct {
	Node    string       `json:"node" yaml:"node"`
	Group   string       `json:"group,omitempty" yaml:"group,omitempty"`
	Results []StepResult `json:"results" yaml:"results"`

	// Failure is set when a step failed and the remaining plan was abandoned
	Failure *StepError `json:"-" yaml:"-"`
	// Err is set when the node could not start, e.g. fact gathering failed
	Err error `json:"-" yaml:"-"`

	FailureDetail string `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Failed reports whether the node did not converge
func (r *NodeResult) Failed() bool {
	return r.Failure != nil || r.Err != nil
}

// Count returns how many results have the given outcome
func (r *NodeResult) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// RunResult aggregates node results of one orchestrator run
type RunResult struct {
	RunID string        `json:"run_id" yaml:"run_id"`
	Plan  string        `json:"plan" yaml:"plan"`
	Nodes []*NodeResult `json:"nodes" yaml:"nodes"`
}

// FailedNodes returns the names of nodes that did not converge
func (r *RunResult) FailedNodes() []string {
	var failed []string
	for _, n := range r.Nodes {
		if n.Failed() {
			failed = append(failed, n.Node)
		}
	}
	return failed
}
