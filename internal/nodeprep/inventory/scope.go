// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/runtimecfg"
)

// Derived variable names
const (
	VarNodeName          = "node_name"
	VarArtifactRoot      = "artifact_root"
	VarKubernetesVersion = "kubernetes_version"
	VarKubernetesMinor   = "kubernetes_minor"
	VarRuntimeBackend    = "runtime_backend"
	VarRuntimeBuildFlag  = "runtime_build_flag"
)

// KubernetesMinor returns "major.minor" of a semantic version
func KubernetesMinor(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("%w: kubernetes_version %q is not a semantic version: %v",
			models.ErrInvalidParameters, version, err)
	}
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor()), nil
}

// BuildScope layers global, group, host and run variables for node, checks
// the required names, adds the derived run variables and freezes the scope
func (inv *Inventory) BuildScope(node Node, runVars map[string]interface{}, artifactRoot string, required []string) (*variables.Scope, runtimecfg.Backend, error) {
	scope := variables.NewScope()

	var groupVars map[string]interface{}
	if g, ok := inv.Groups[node.Group]; ok {
		groupVars = g.Vars
	}

	for _, layer := range []struct {
		name   string
		values map[string]interface{}
	}{
		{variables.LayerGlobal, inv.Vars},
		{variables.LayerGroup, groupVars},
		{variables.LayerHost, node.Vars},
		{variables.LayerRun, runVars},
	} {
		if err := scope.Push(layer.name, layer.values); err != nil {
			return nil, "", err
		}
	}

	if err := scope.Require(required...); err != nil {
		return nil, "", fmt.Errorf("node %s: %w", node.Name, err)
	}

	rawBackend, _ := scope.Lookup(VarRuntimeBackend)
	backend, err := runtimecfg.ParseBackend(rawBackend)
	if err != nil {
		return nil, "", fmt.Errorf("node %s: %w", node.Name, err)
	}

	derived := map[string]interface{}{
		VarNodeName:         node.Name,
		VarArtifactRoot:     artifactRoot,
		VarRuntimeBackend:   string(backend),
		VarRuntimeBuildFlag: runtimecfg.BuildFlag(backend),
	}

	if version, ok := scope.Lookup(VarKubernetesVersion); ok {
		minor, err := KubernetesMinor(fmt.Sprint(version))
		if err != nil {
			return nil, "", fmt.Errorf("node %s: %w", node.Name, err)
		}
		derived[VarKubernetesMinor] = minor
	}

	for name, value := range derived {
		if err := scope.Set(variables.LayerRun, name, value); err != nil {
			return nil, "", err
		}
	}

	return scope.Freeze(), backend, nil
}
