// SPDX-License-Identifier: Apache-2.0

package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// CELEvaluator handles evaluation of CEL guard expressions over host facts
type CELEvaluator struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewCELEvaluator creates a new CEL evaluator
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("facts", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	return &CELEvaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile parses and type-checks an expression, caching the program
func (e *CELEvaluator) Compile(expression string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.programs[expression]; ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating program: %w", err)
	}

	e.programs[expression] = program
	return program, nil
}

// EvaluateExpression evaluates a CEL expression against a fact snapshot
func (e *CELEvaluator) EvaluateExpression(expression string, facts map[string]interface{}) (bool, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return false, err
	}

	if facts == nil {
		facts = map[string]interface{}{}
	}

	result, _, err := program.Eval(map[string]interface{}{"facts": facts})
	if err != nil {
		return false, fmt.Errorf("error evaluating expression: %w", err)
	}

	if result.Type() != types.BoolType {
		return false, fmt.Errorf("expression did not evaluate to a boolean")
	}

	return result.Value().(bool), nil
}
