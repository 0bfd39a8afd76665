// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/runtimecfg"
)

var renderSchema = schema.MustCompile(`{
	"type": "object",
	"required": ["dest"],
	"additionalProperties": false,
	"properties": {
		"dest": {"type": "string", "minLength": 1},
		"src": {"type": "string", "minLength": 1, "description": "plain template relative to the artifact root"},
		"backend": {"type": "string", "description": "must match the run's runtime backend"},
		"mode": {"type": "string", "pattern": "^(0o)?[0-7]{3,4}$", "description": "quoted octal permission bits"},
		"create_dirs": {"type": "boolean"}
	}
}`)

// RenderHandler writes a configuration file rendered from a template.
// Without src the runtime backend's daemon config is composed.
type RenderHandler struct{}

// Apply renders and writes the file
func (h *RenderHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	if requested := stringParam(params, "backend"); requested != "" {
		backend, err := runtimecfg.ParseBackend(requested)
		if err != nil {
			return models.OutcomeFailed, err
		}
		if backend != env.Backend {
			return models.OutcomeFailed, fmt.Errorf("%w: step renders for backend %s but the run selected %s",
				models.ErrConfigurationMismatch, backend, env.Backend)
		}
	}

	var content []byte
	var err error
	if src := stringParam(params, "src"); src != "" {
		content, err = variables.SubstituteFile(env.Distributor.Source(src), env.Scope)
	} else {
		if env.Composer == nil {
			return models.OutcomeFailed, fmt.Errorf("%w: no configuration templates available", models.ErrConfigurationMismatch)
		}
		content, err = env.Composer.Compose(env.Backend, env.Scope)
	}
	if err != nil {
		return models.OutcomeFailed, err
	}

	opts, err := stageOptions(params)
	if err != nil {
		return models.OutcomeFailed, err
	}

	changed, err := env.Distributor.Write(stringParam(params, "dest"), content, opts)
	if err != nil {
		return models.OutcomeFailed, err
	}
	return models.ChangedIf(changed), nil
}

func (h *RenderHandler) Schema() *schema.Schema { return renderSchema }

func (h *RenderHandler) Description() string {
	return "Render a configuration file from a template"
}
