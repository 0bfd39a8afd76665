// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/service"
)

var serviceSchema = schema.MustCompile(`{
	"type": "object",
	"required": ["name", "state"],
	"additionalProperties": false,
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"state": {"type": "string", "enum": ["start", "stop", "restart", "reload"]},
		"daemon_reload": {"type": "boolean"}
	}
}`)

// ServiceHandler drives a service through a lifecycle transition.
// A transition is always reported as a change.
type ServiceHandler struct{}

// Apply performs the transition and waits for it to settle
func (h *ServiceHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	op, err := service.ParseOperation(stringParam(params, "state"))
	if err != nil {
		return models.OutcomeFailed, err
	}
	if env.Services == nil {
		return models.OutcomeFailed, fmt.Errorf("%w: no service manager for node %s; a node with its own root needs a machine", models.ErrConfigurationMismatch, env.Node)
	}

	if err := env.Services.Transition(ctx, stringParam(params, "name"), op, boolParam(params, "daemon_reload")); err != nil {
		return models.OutcomeFailed, err
	}
	return models.OutcomeChanged, nil
}

func (h *ServiceHandler) Schema() *schema.Schema { return serviceSchema }

func (h *ServiceHandler) Description() string {
	return "Start, stop, restart or reload a service"
}
