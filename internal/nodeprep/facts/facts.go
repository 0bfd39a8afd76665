// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Well-known fact names
const (
	SwapTotalKB = "swap_total_kb"
	MemTotalKB  = "mem_total_kb"
	PkgMgr      = "pkg_mgr"
	OSFamily    = "os_family"
	OSID        = "os_id"
	OSVersion   = "os_version"
	Arch        = "arch"
)

// Required lists the facts every node must expose before its first step
var Required = []string{SwapTotalKB, PkgMgr}

// Set holds the facts of one host. It is written when gathered and by
// explicit refresh steps only.
type Set struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewSet creates a fact set from initial values
func NewSet(values map[string]interface{}) *Set {
	s := &Set{values: make(map[string]interface{}, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns a single fact
func (s *Set) Get(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Snapshot returns a copy of every fact for read-only evaluation
func (s *Set) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Merge overlays values and reports whether any fact changed
func (s *Set) Merge(values map[string]interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for k, v := range values {
		if old, ok := s.values[k]; !ok || !reflect.DeepEqual(old, v) {
			changed = true
		}
		s.values[k] = v
	}
	return changed
}

// Names returns the fact names in sorted order
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Require checks that every named fact is present
func (s *Set) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := s.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required facts: %v", missing)
	}
	return nil
}
