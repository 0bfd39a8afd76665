// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"

	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/action"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/service"
	"github.com/stretchr/testify/mock"
)

// MockRunner provides a mock implementation of command.Runner
type MockRunner struct {
	mock.Mock
}

// Run mocks the Run method
func (m *MockRunner) Run(ctx context.Context, cmd command.Command) (*command.Result, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*command.Result), args.Error(1)
}

// MockManager provides a mock implementation of service.Manager
type MockManager struct {
	mock.Mock
}

// DaemonReload mocks the DaemonReload method
func (m *MockManager) DaemonReload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Exists mocks the Exists method
func (m *MockManager) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

// Apply mocks the Apply method
func (m *MockManager) Apply(ctx context.Context, name string, op service.Operation) error {
	args := m.Called(ctx, name, op)
	return args.Error(0)
}

// Active mocks the Active method
func (m *MockManager) Active(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

// MockHandler provides a versatile mock implementation of action.Handler.
// Without expectations it behaves like a handler that reports no change.
type MockHandler struct {
	mock.Mock
	SchemaDoc *schema.Schema
}

// Apply mocks the Apply method
func (m *MockHandler) Apply(ctx context.Context, env *action.Env, params map[string]interface{}) (models.Outcome, error) {
	if len(m.ExpectedCalls) == 0 {
		return models.OutcomeUnchanged, nil
	}

	args := m.Called(ctx, env, params)
	return args.Get(0).(models.Outcome), args.Error(1)
}

// Schema returns the configured schema, nil by default
func (m *MockHandler) Schema() *schema.Schema {
	return m.SchemaDoc
}

// Description returns a fixed description
func (m *MockHandler) Description() string {
	return "mock handler"
}
