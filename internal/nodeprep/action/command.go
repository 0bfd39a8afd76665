// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"os"

	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
)

var commandSchema = schema.MustCompile(`{
	"type": "object",
	"additionalProperties": false,
	"oneOf": [{"required": ["cmd"]}, {"required": ["argv"]}],
	"properties": {
		"cmd": {"type": "string", "minLength": 1, "description": "shell command run with sh -c"},
		"argv": {"type": "array", "minItems": 1, "items": {"type": "string"}},
		"chdir": {"type": "string"},
		"env": {"type": "object"},
		"creates": {"type": "string", "description": "skip when this target path exists"},
		"removes": {"type": "string", "description": "skip when this target path is absent"}
	}
}`)

// CommandHandler runs an arbitrary command on the node
type CommandHandler struct{}

// Apply runs the command unless creates or removes show it is already done
func (h *CommandHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	if creates := stringParam(params, "creates"); creates != "" {
		exists, err := targetExists(env, creates)
		if err != nil {
			return models.OutcomeFailed, err
		}
		if exists {
			return models.OutcomeUnchanged, nil
		}
	}
	if removes := stringParam(params, "removes"); removes != "" {
		exists, err := targetExists(env, removes)
		if err != nil {
			return models.OutcomeFailed, err
		}
		if !exists {
			return models.OutcomeUnchanged, nil
		}
	}

	cmd := command.Command{
		Dir: stringParam(params, "chdir"),
		Env: envList(params, "env"),
	}
	if shell := stringParam(params, "cmd"); shell != "" {
		cmd.Name = "sh"
		cmd.Args = []string{"-c", shell}
	} else {
		argv, err := stringSlice(params, "argv")
		if err != nil {
			return models.OutcomeFailed, err
		}
		cmd.Name = argv[0]
		cmd.Args = argv[1:]
	}

	result, err := env.Runner.Run(ctx, cmd)
	if err != nil {
		return models.OutcomeFailed, err
	}
	if len(result.Output) > 0 {
		env.Log.WithField("command", cmd.String()).Debug(string(result.Output))
	}
	return models.OutcomeChanged, nil
}

func targetExists(env *Env, path string) (bool, error) {
	target, err := env.Distributor.Target(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (h *CommandHandler) Schema() *schema.Schema { return commandSchema }

func (h *CommandHandler) Description() string {
	return "Run a command on the node"
}
