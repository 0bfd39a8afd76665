// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
)

var factsSchema = schema.MustCompile(`{
	"type": "object",
	"additionalProperties": false,
	"properties": {}
}`)

// FactsHandler re-gathers host facts, for example after a repository has
// been enabled. It is the only action that writes the fact set.
type FactsHandler struct{}

// Apply gathers facts again and overlays the static inventory facts
func (h *FactsHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	if env.Gatherer == nil {
		return models.OutcomeUnchanged, nil
	}

	gathered, err := env.Gatherer.Gather(ctx, env.TargetRoot())
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("error refreshing facts: %w", err)
	}
	for k, v := range env.StaticFacts {
		gathered[k] = v
	}

	return models.ChangedIf(env.Facts.Merge(gathered)), nil
}

func (h *FactsHandler) Schema() *schema.Schema { return factsSchema }

func (h *FactsHandler) Description() string {
	return "Refresh host facts"
}
