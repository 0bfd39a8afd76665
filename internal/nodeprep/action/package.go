// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/facts"
)

var packageSchema = schema.MustCompile(`{
	"type": "object",
	"required": ["packages"],
	"additionalProperties": false,
	"properties": {
		"packages": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"update_cache": {"type": "boolean"}
	}
}`)

// installer knows how to query and install packages with one package manager
type installer struct {
	query   func(pkg string) command.Command
	isFound func(result *command.Result) bool
	update  command.Command
	install func(pkgs []string) command.Command
}

var installers = map[string]installer{
	"apt": {
		query: func(pkg string) command.Command {
			return command.Command{Name: "dpkg-query", Args: []string{"-W", "-f=${Status}", pkg}}
		},
		isFound: func(result *command.Result) bool {
			return strings.Contains(string(result.Output), "install ok installed")
		},
		update: command.Command{Name: "apt-get", Args: []string{"update"}, Env: []string{"DEBIAN_FRONTEND=noninteractive"}},
		install: func(pkgs []string) command.Command {
			return command.Command{
				Name: "apt-get",
				Args: append([]string{"install", "-y", "--no-install-recommends"}, pkgs...),
				Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
			}
		},
	},
	"dnf": {
		query: func(pkg string) command.Command {
			return command.Command{Name: "rpm", Args: []string{"-q", pkg}}
		},
		isFound: func(result *command.Result) bool { return true },
		update:  command.Command{Name: "dnf", Args: []string{"makecache"}},
		install: func(pkgs []string) command.Command {
			return command.Command{Name: "dnf", Args: append([]string{"install", "-y"}, pkgs...)}
		},
	},
}

// PackageHandler installs the packages that are not yet present
type PackageHandler struct{}

// Apply queries each package and installs the missing ones in one call
func (h *PackageHandler) Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error) {
	pkgs, err := stringSlice(params, "packages")
	if err != nil {
		return models.OutcomeFailed, err
	}

	mgr, _ := env.Facts.Get(facts.PkgMgr)
	inst, ok := installers[fmt.Sprint(mgr)]
	if !ok {
		return models.OutcomeFailed, fmt.Errorf("%w: unsupported package manager %v", models.ErrConfigurationMismatch, mgr)
	}

	var missing []string
	for _, pkg := range pkgs {
		result, err := env.Runner.Run(ctx, inst.query(pkg))
		switch {
		case err == nil && inst.isFound(result):
			continue
		case err == nil, errors.Is(err, models.ErrCommandFailed):
			missing = append(missing, pkg)
		default:
			return models.OutcomeFailed, err
		}
	}

	if len(missing) == 0 {
		return models.OutcomeUnchanged, nil
	}

	if boolParam(params, "update_cache") {
		if _, err := env.Runner.Run(ctx, inst.update); err != nil {
			return models.OutcomeFailed, err
		}
	}

	env.Log.WithField("packages", missing).Info("installing")
	if _, err := env.Runner.Run(ctx, inst.install(missing)); err != nil {
		return models.OutcomeFailed, err
	}
	return models.OutcomeChanged, nil
}

func (h *PackageHandler) Schema() *schema.Schema { return packageSchema }

func (h *PackageHandler) Description() string {
	return "Install system packages"
}
