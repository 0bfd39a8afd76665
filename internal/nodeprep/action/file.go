// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/artifact"
)

var copySchema = schema.MustCompile(`{
	"type": "object",
	"required": ["src", "dest"],
	"additionalProperties": false,
	"properties": {
		"src": {"type": "string", "minLength": 1, "description": "path relative to the artifact root"},
		"dest": {"type": "string", "minLength": 1, "description": "absolute path on the target"},
		"mode": {"type": "string", "pattern": "^(0o)?[0-7]{3,4}$", "description": "quoted octal permission bits"},
		"executable": {"type": "boolean"},
		"create_dirs": {"type": "boolean"}
	}
}`)

var modeSchema = schema.MustCompile(`{
	"type": "object",
	"required": ["path"],
	"additionalProperties": false,
	"anyOf": [{"required": ["mode"]}, {"required": ["executable"]}],
	"properties": {
		"path": {"type": "string", "minLength": 1},
		"mode": {"type": "string", "pattern": "^(0o)?[0-7]{3,4}$", "description": "quoted octal permission bits"},
		"executable": {"type": "boolean"}
	}
}`)

func stageOptions(params map[string]interface{}) (artifact.StageOptions, error) {
	mode, err := artifact.ParseMode(params["mode"])
	if err != nil {
		return artifact.StageOptions{}, err
	}
	return artifact.StageOptions{
		Mode:       mode,
		Executable: boolParam(params, "executable"),
		CreateDirs: boolParam(params, "create_dirs"),
	}, nil
}

// CopyHandler stages a file or directory from the artifact root onto the target
type CopyHandler struct{}

// Apply copies src to dest
func (h *CopyHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	opts, err := stageOptions(params)
	if err != nil {
		return models.OutcomeFailed, err
	}

	changed, err := env.Distributor.Stage(stringParam(params, "src"), stringParam(params, "dest"), opts)
	if err != nil {
		return models.OutcomeFailed, err
	}
	return models.ChangedIf(changed), nil
}

func (h *CopyHandler) Schema() *schema.Schema { return copySchema }

func (h *CopyHandler) Description() string {
	return "Copy an artifact to the target"
}

// ModeHandler sets permission bits on a file that is already on the target
type ModeHandler struct{}

// Apply changes the mode of path
func (h *ModeHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	mode, err := artifact.ParseMode(params["mode"])
	if err != nil {
		return models.OutcomeFailed, err
	}

	changed, err := env.Distributor.SetMode(stringParam(params, "path"), mode, boolParam(params, "executable"))
	if err != nil {
		return models.OutcomeFailed, err
	}
	return models.ChangedIf(changed), nil
}

func (h *ModeHandler) Schema() *schema.Schema { return modeSchema }

func (h *ModeHandler) Description() string {
	return "Set file permissions on the target"
}
