// SPDX-License-Identifier: Apache-2.0

package variables

import (
	"fmt"
	"sort"

	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// Layer names, from highest to lowest precedence
const (
	LayerRun    = "run"
	LayerHost   = "host"
	LayerGroup  = "group"
	LayerGlobal = "global"
)

// Layer is one named level of variable bindings
type Layer struct {
	Name   string
	Values map[string]interface{}
}

// Scope resolves names through layers ordered by precedence.
// Layers are added lowest first; once frozen the scope is read-only and
// safe to share across the steps of a run.
type Scope struct {
	layers []Layer
	frozen bool
}

// NewScope creates an empty scope
func NewScope() *Scope {
	return &Scope{}
}

// Push adds a layer that takes precedence over every layer already present.
// The values are copied so later changes to the source map are not observed.
func (s *Scope) Push(name string, values map[string]interface{}) error {
	if s.frozen {
		return fmt.Errorf("cannot add layer %q to a frozen scope", name)
	}

	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}

	s.layers = append(s.layers, Layer{Name: name, Values: copied})
	return nil
}

// Set binds a single value in the named layer, creating it on top if absent
func (s *Scope) Set(layer, name string, value interface{}) error {
	if s.frozen {
		return fmt.Errorf("cannot set %q on a frozen scope", name)
	}

	for i := range s.layers {
		if s.layers[i].Name == layer {
			s.layers[i].Values[name] = value
			return nil
		}
	}

	return s.Push(layer, map[string]interface{}{name: value})
}

// Freeze makes the scope immutable
func (s *Scope) Freeze() *Scope {
	s.frozen = true
	return s
}

// Frozen reports whether resolution may begin
func (s *Scope) Frozen() bool {
	return s.frozen
}

// Lookup returns the value bound to name by the highest-precedence layer
func (s *Scope) Lookup(name string) (interface{}, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := s.layers[i].Values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Origin returns the name of the layer that binds name
func (s *Scope) Origin(name string) (string, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if _, ok := s.layers[i].Values[name]; ok {
			return s.layers[i].Name, true
		}
	}
	return "", false
}

// Flatten returns every visible binding with precedence applied
func (s *Scope) Flatten() map[string]interface{} {
	result := make(map[string]interface{})
	for _, layer := range s.layers {
		for k, v := range layer.Values {
			result[k] = v
		}
	}
	return result
}

// Names returns the visible variable names in sorted order
func (s *Scope) Names() []string {
	flat := s.Flatten()
	names := make([]string, 0, len(flat))
	for k := range flat {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Require checks that every name is bound and not empty
func (s *Scope) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		v, ok := s.Lookup(name)
		if !ok || v == nil || v == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", models.ErrMissingRequiredVariable, missing)
	}
	return nil
}
