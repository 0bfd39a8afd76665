// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/format"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
)

// RunVariables must be bound for every run regardless of the plan
var RunVariables = []string{"registry_address", "runtime_backend", "kubernetes_version"}

// GuardChecker validates the shape of a guard
type GuardChecker interface {
	Validate(guard *models.Guard) error
}

// LoadFile loads a plan from a file (supports both YAML and JSON)
func LoadFile(filePath string) (*models.Plan, error) {
	var p models.Plan
	if err := format.ParseFile(filePath, &p); err != nil {
		return nil, fmt.Errorf("error parsing plan file: %w", err)
	}
	return &p, nil
}

// Validate checks IDs, action kinds, guards and dependencies.
// known and guards may be nil to skip those checks.
func Validate(p *models.Plan, known func(models.ActionKind) bool, guards GuardChecker) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan contains no steps")
	}

	stepIDs := make(map[string]bool)
	for _, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("step has empty ID")
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step ID: %s", step.ID)
		}
		stepIDs[step.ID] = true
	}

	for _, step := range p.Steps {
		if step.Action == "" {
			return fmt.Errorf("step '%s' has empty action", step.ID)
		}
		if known != nil && !known(step.Action) {
			return fmt.Errorf("step '%s': %w: %s", step.ID, models.ErrUnknownAction, step.Action)
		}
		if guards != nil {
			if err := guards.Validate(step.Guard); err != nil {
				return fmt.Errorf("step '%s': %w", step.ID, err)
			}
		}
		for _, depID := range step.DependsOn {
			if !stepIDs[depID] {
				return fmt.Errorf("step '%s' depends on non-existent step '%s'", step.ID, depID)
			}
		}
	}

	return DetectCycles(p.Steps)
}

// Order sorts the steps so that every dependency precedes its dependents,
// keeping the declared order otherwise, and assigns each step its Index
func Order(p *models.Plan) error {
	if err := DetectCycles(p.Steps); err != nil {
		return err
	}

	stepMap := make(map[string]int)
	for i, step := range p.Steps {
		stepMap[step.ID] = i
	}
	for _, step := range p.Steps {
		for _, depID := range step.DependsOn {
			if _, exists := stepMap[depID]; !exists {
				return fmt.Errorf("step '%s' depends on non-existent step '%s'", step.ID, depID)
			}
		}
	}

	sorted := make([]models.Step, 0, len(p.Steps))
	visited := make(map[string]bool)

	var visit func(step models.Step)
	visit = func(step models.Step) {
		if visited[step.ID] {
			return
		}
		visited[step.ID] = true

		for _, depID := range step.DependsOn {
			visit(p.Steps[stepMap[depID]])
		}
		sorted = append(sorted, step)
	}

	for _, step := range p.Steps {
		visit(step)
	}

	for i := range sorted {
		sorted[i].Index = i
	}
	p.Steps = sorted
	return nil
}

// DetectCycles checks for circular dependencies in the steps
func DetectCycles(steps []models.Step) error {
	stepMap := make(map[string]models.Step)
	for _, step := range steps {
		stepMap[step.ID] = step
	}

	visited := make(map[string]bool)
	for _, step := range steps {
		path := make(map[string]bool)
		if cycle := findCycle(step.ID, stepMap, visited, path); cycle != "" {
			return fmt.Errorf("circular dependency detected: %s", cycle)
		}
	}
	return nil
}

// findCycle performs DFS to find cycles in the dependency graph
func findCycle(nodeID string, graph map[string]models.Step, visited, path map[string]bool) string {
	if path[nodeID] {
		return nodeID
	}
	if visited[nodeID] {
		return ""
	}

	visited[nodeID] = true
	path[nodeID] = true

	if node, exists := graph[nodeID]; exists {
		for _, depID := range node.DependsOn {
			if cycle := findCycle(depID, graph, visited, path); cycle != "" {
				return fmt.Sprintf("%s -> %s", nodeID, cycle)
			}
		}
	}

	path[nodeID] = false
	return ""
}

// RequiredVariables returns the run variables plus those the plan declares
func RequiredVariables(p *models.Plan) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range append(append([]string{}, RunVariables...), p.Required...) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// ReferencedVariables lists every placeholder used by step parameters
func ReferencedVariables(p *models.Plan) []string {
	seen := make(map[string]bool)
	for _, step := range p.Steps {
		for _, token := range variables.MapTokens(step.Params) {
			seen[token] = true
		}
	}

	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// CheckVariables verifies that every required variable is bound in scope
// and that every placeholder in the step parameters resolves
func CheckVariables(p *models.Plan, scope *variables.Scope) error {
	if err := scope.Require(RequiredVariables(p)...); err != nil {
		return err
	}

	var unbound []string
	for _, token := range ReferencedVariables(p) {
		if _, ok := scope.Lookup(token); !ok {
			unbound = append(unbound, token)
		}
	}
	if len(unbound) > 0 {
		return fmt.Errorf("%w: %s", models.ErrUnresolvedVariable, strings.Join(unbound, ", "))
	}
	return nil
}
