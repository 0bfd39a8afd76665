// SPDX-License-Identifier: Apache-2.0

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a step failure for reporting
type ErrorKind string

const (
	KindUnresolvedVariable    ErrorKind = "unresolved-variable"
	KindSourceNotFound        ErrorKind = "source-not-found"
	KindDestinationUnwritable ErrorKind = "destination-unwritable"
	KindConfigurationMismatch ErrorKind = "configuration-mismatch"
	KindServiceTransition     ErrorKind = "service-transition-failure"
	KindGuardEvaluation       ErrorKind = "guard-evaluation-error"
	KindInvalidParameters     ErrorKind = "invalid-parameters"
	KindCommandFailed         ErrorKind = "command-failed"
	KindUnknownAction         ErrorKind = "unknown-action"
	KindUnknown               ErrorKind = "unknown"
)

var (
	ErrUnresolvedVariable      = errors.New("unresolved variable")
	ErrMissingRequiredVariable = errors.New("missing required variable")
	ErrSourceNotFound          = errors.New("source not found")
	ErrDestinationUnwritable   = errors.New("destination unwritable")
	ErrConfigurationMismatch   = errors.New("configuration mismatch")
	ErrServiceNotFound         = errors.New("service not found")
	ErrTransitionTimeout       = errors.New("transition timed out")
	ErrServiceTransition       = errors.New("service transition failed")
	ErrGuardEvaluation         = errors.New("guard evaluation error")
	ErrInvalidParameters       = errors.New("invalid parameters")
	ErrCommandFailed           = errors.New("command failed")
	ErrUnknownAction           = errors.New("unknown action")
)

// KindOf classifies err by the sentinel it wraps
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnresolvedVariable), errors.Is(err, ErrMissingRequiredVariable):
		return KindUnresolvedVariable
	case errors.Is(err, ErrSourceNotFound):
		return KindSourceNotFound
	case errors.Is(err, ErrDestinationUnwritable):
		return KindDestinationUnwritable
	case errors.Is(err, ErrConfigurationMismatch):
		return KindConfigurationMismatch
	case errors.Is(err, ErrServiceNotFound), errors.Is(err, ErrTransitionTimeout), errors.Is(err, ErrServiceTransition):
		return KindServiceTransition
	case errors.Is(err, ErrGuardEvaluation):
		return KindGuardEvaluation
	case errors.Is(err, ErrInvalidParameters):
		return KindInvalidParameters
	case errors.Is(err, ErrCommandFailed):
		return KindCommandFailed
	case errors.Is(err, ErrUnknownAction):
		return KindUnknownAction
	default:
		return KindUnknown
	}
}

// StepError attributes a failure to a step and its position in the plan
type StepError struct {
	StepID string
	Name   string
	Index  int
	Kind   ErrorKind
	Err    error
}

// NewStepError wraps err with the identity of the failing step
func NewStepError(step Step, err error) *StepError {
	return &StepError{
		StepID: step.ID,
		Name:   step.DisplayName(),
		Index:  step.Index,
		Kind:   KindOf(err),
		Err:    err,
	}
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed [%s]: %v", e.Index+1, e.Name, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
