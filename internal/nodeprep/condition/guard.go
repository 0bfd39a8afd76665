// SPDX-License-Identifier: Apache-2.0

package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// Comparison operators accepted in a guard
const (
	OpEq = "eq"
	OpNe = "ne"
	OpGt = "gt"
	OpGe = "ge"
	OpLt = "lt"
	OpLe = "le"
)

// Gate decides whether a step runs. Evaluation never modifies the facts.
type Gate struct {
	cel *CELEvaluator
}

// NewGate creates a gate able to evaluate both guard trees and CEL leaves
func NewGate() (*Gate, error) {
	evaluator, err := NewCELEvaluator()
	if err != nil {
		return nil, err
	}
	return &Gate{cel: evaluator}, nil
}

// Evaluate returns whether guard holds for facts. A nil guard always holds.
// Every error wraps models.ErrGuardEvaluation.
func (g *Gate) Evaluate(guard *models.Guard, facts map[string]interface{}) (bool, error) {
	if guard == nil {
		return true, nil
	}

	result, err := g.eval(*guard, facts)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrGuardEvaluation, err)
	}
	return result, nil
}

// Validate checks the shape of a guard tree without evaluating it
func (g *Gate) Validate(guard *models.Guard) error {
	if guard == nil {
		return nil
	}
	if err := g.validate(*guard); err != nil {
		return fmt.Errorf("%w: %v", models.ErrGuardEvaluation, err)
	}
	return nil
}

func (g *Gate) validate(guard models.Guard) error {
	if n := forms(guard); n != 1 {
		return fmt.Errorf("guard must have exactly one form, found %d", n)
	}

	switch {
	case guard.Fact != "":
		if !validOp(guard.Op) {
			return fmt.Errorf("unknown operator %q for fact %s", guard.Op, guard.Fact)
		}
	case guard.Expr != "":
		if _, err := g.cel.Compile(guard.Expr); err != nil {
			return err
		}
	case guard.Not != nil:
		return g.validate(*guard.Not)
	default:
		for _, child := range append(guard.All, guard.Any...) {
			if err := g.validate(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Gate) eval(guard models.Guard, facts map[string]interface{}) (bool, error) {
	if n := forms(guard); n != 1 {
		return false, fmt.Errorf("guard must have exactly one form, found %d", n)
	}

	switch {
	case guard.Fact != "":
		actual, ok := facts[guard.Fact]
		if !ok {
			return false, fmt.Errorf("undefined fact %q", guard.Fact)
		}
		return compare(actual, guard.Op, guard.Value)

	case guard.Expr != "":
		return g.cel.EvaluateExpression(guard.Expr, facts)

	case guard.Not != nil:
		result, err := g.eval(*guard.Not, facts)
		return !result, err

	case guard.All != nil:
		for _, child := range guard.All {
			result, err := g.eval(child, facts)
			if err != nil || !result {
				return false, err
			}
		}
		return true, nil

	default:
		for _, child := range guard.Any {
			result, err := g.eval(child, facts)
			if err != nil {
				return false, err
			}
			if result {
				return true, nil
			}
		}
		return false, nil
	}
}

func forms(guard models.Guard) int {
	n := 0
	if guard.Fact != "" {
		n++
	}
	if guard.Expr != "" {
		n++
	}
	if guard.Not != nil {
		n++
	}
	if guard.All != nil {
		n++
	}
	if guard.Any != nil {
		n++
	}
	return n
}

func validOp(op string) bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// compare applies op numerically when both sides are numbers, otherwise as strings
func compare(actual interface{}, op string, expected interface{}) (bool, error) {
	if !validOp(op) {
		return false, fmt.Errorf("unknown operator %q", op)
	}

	var cmp int
	a, aNum := toFloat(actual)
	b, bNum := toFloat(expected)
	if aNum && bNum {
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(fmt.Sprint(actual), fmt.Sprint(expected))
	}

	switch op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	case OpLt:
		return cmp < 0, nil
	default:
		return cmp <= 0, nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
