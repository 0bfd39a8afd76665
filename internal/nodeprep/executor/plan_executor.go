// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/kusari-oss/nodeprep/internal/core/logging"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/action"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/condition"
)

// Observer receives lifecycle callbacks for each step of a node
type Observer interface {
	StepStarted(node string, step models.Step)
	StepCompleted(node string, result models.StepResult)
}

// StepExecutor is responsible for executing a single step
type StepExecutor struct {
	registry *action.Registry
	gate     *condition.Gate
}

// NewStepExecutor creates a new step executor
func NewStepExecutor(registry *action.Registry, gate *condition.Gate) *StepExecutor {
	return &StepExecutor{registry: registry, gate: gate}
}

// ExecuteStep gates, resolves, validates and dispatches one step.
// The returned error is nil unless the outcome is failed.
func (e *StepExecutor) ExecuteStep(ctx context.Context, env *action.Env, step models.Step) (models.StepResult, error) {
	start := time.Now()
	result := models.StepResult{
		StepID: step.ID,
		Name:   step.DisplayName(),
		Index:  step.Index,
		Action: step.Action,
	}

	outcome, err := e.run(ctx, env, step)
	result.Outcome = outcome
	result.Duration = time.Since(start)
	if err != nil {
		result.Outcome = models.OutcomeFailed
		result.Kind = models.KindOf(err)
		result.Error = err.Error()
	}
	return result, err
}

func (e *StepExecutor) run(ctx context.Context, env *action.Env, step models.Step) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return models.OutcomeFailed, err
	}

	run, err := e.gate.Evaluate(step.Guard, env.Facts.Snapshot())
	if err != nil {
		return models.OutcomeFailed, err
	}
	if !run {
		return models.OutcomeSkipped, nil
	}

	handler, err := e.registry.Lookup(step.Action)
	if err != nil {
		return models.OutcomeFailed, err
	}

	params, err := variables.ProcessMap(step.Params, env.Scope)
	if err != nil {
		return models.OutcomeFailed, err
	}

	if err := handler.Schema().Validate(params); err != nil {
		return models.OutcomeFailed, fmt.Errorf("parameter validation failed: %w", err)
	}

	stepEnv := *env
	stepEnv.Log = logging.ForStep(env.Log, step.ID, step.Index, string(step.Action))

	return handler.Apply(ctx, &stepEnv, params)
}

// PlanExecutor runs a plan against one node, halting at the first failure
type PlanExecutor struct {
	stepExecutor *StepExecutor
	observers    []Observer
}

// NewPlanExecutor creates a new plan executor
func NewPlanExecutor(registry *action.Registry, gate *condition.Gate, observers ...Observer) *PlanExecutor {
	return &PlanExecutor{
		stepExecutor: NewStepExecutor(registry, gate),
		observers:    observers,
	}
}

// Execute runs every step in index order. After a failure no further step
// is dispatched and nothing already done is rolled back.
func (e *PlanExecutor) Execute(ctx context.Context, env *action.Env, plan *models.Plan) *models.NodeResult {
	nodeResult := &models.NodeResult{
		Node:    env.Node,
		Group:   env.Group,
		Results: make([]models.StepResult, 0, len(plan.Steps)),
	}

	if err := checkReady(env, plan); err != nil {
		nodeResult.Err = err
		nodeResult.FailureDetail = err.Error()
		env.Log.Error(nodeResult.FailureDetail)
		return nodeResult
	}

	for i := range plan.Steps {
		step := plan.Steps[i]

		for _, o := range e.observers {
			o.StepStarted(env.Node, step)
		}
		env.Log.Debugf("Executing step %d/%d: %s", i+1, len(plan.Steps), step.ID)

		result, err := e.stepExecutor.ExecuteStep(ctx, env, step)
		nodeResult.Results = append(nodeResult.Results, result)

		for _, o := range e.observers {
			o.StepCompleted(env.Node, result)
		}

		if err != nil {
			nodeResult.Failure = models.NewStepError(step, err)
			nodeResult.FailureDetail = nodeResult.Failure.Error()
			env.Log.WithField(logging.FieldStep, step.ID).Error(nodeResult.FailureDetail)
			break
		}

		env.Log.WithField(logging.FieldStep, step.ID).Infof("%s: %s", result.Outcome, step.DisplayName())
	}

	return nodeResult
}

// checkReady rejects a plan that was not ordered or a scope that can still change
func checkReady(env *action.Env, plan *models.Plan) error {
	if env.Scope == nil || !env.Scope.Frozen() {
		return fmt.Errorf("variable scope of node %s is not frozen", env.Node)
	}
	for i := 1; i < len(plan.Steps); i++ {
		if plan.Steps[i].Index <= plan.Steps[i-1].Index {
			return fmt.Errorf("plan is not ordered: step %s has index %d after %s with index %d",
				plan.Steps[i].ID, plan.Steps[i].Index, plan.Steps[i-1].ID, plan.Steps[i-1].Index)
		}
	}
	return nil
}
