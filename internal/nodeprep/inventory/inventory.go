// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/format"
)

// Node is one machine to provision
type Node struct {
	Name string `json:"name" yaml:"name"`
	// Root is the filesystem prefix of the node, "/" for the local host
	Root string `json:"root,omitempty" yaml:"root,omitempty"`
	// Machine is the systemd-machined name of a node with its own root
	Machine string                 `json:"machine,omitempty" yaml:"machine,omitempty"`
	Vars    map[string]interface{} `json:"vars,omitempty" yaml:"vars,omitempty"`
	Facts   map[string]interface{} `json:"facts,omitempty" yaml:"facts,omitempty"`

	Group string `json:"-" yaml:"-"`
}

// Group is a set of nodes sharing variables
type Group struct {
	Vars  map[string]interface{} `json:"vars,omitempty" yaml:"vars,omitempty"`
	Nodes []Node                 `json:"nodes" yaml:"nodes"`
}

// Inventory lists the nodes of a cluster with their variables
type Inventory struct {
	Vars   map[string]interface{} `json:"vars,omitempty" yaml:"vars,omitempty"`
	Groups map[string]Group       `json:"groups" yaml:"groups"`
}

// LoadFile loads an inventory from a file (supports both YAML and JSON)
func LoadFile(filePath string) (*Inventory, error) {
	var inv Inventory
	if err := format.ParseFile(filePath, &inv); err != nil {
		return nil, fmt.Errorf("error parsing inventory file: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks that every node has a unique name
func (inv *Inventory) Validate() error {
	if len(inv.Groups) == 0 {
		return fmt.Errorf("inventory contains no groups")
	}

	seen := make(map[string]string)
	for _, groupName := range inv.groupNames() {
		for _, node := range inv.Groups[groupName].Nodes {
			if node.Name == "" {
				return fmt.Errorf("group '%s' has a node with an empty name", groupName)
			}
			if other, ok := seen[node.Name]; ok {
				return fmt.Errorf("node '%s' appears in groups '%s' and '%s'", node.Name, other, groupName)
			}
			seen[node.Name] = groupName
		}
	}
	return nil
}

func (inv *Inventory) groupNames() []string {
	names := make([]string, 0, len(inv.Groups))
	for name := range inv.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Nodes returns every node ordered by group name, then declaration order
func (inv *Inventory) Nodes() []Node {
	var nodes []Node
	for _, groupName := range inv.groupNames() {
		for _, node := range inv.Groups[groupName].Nodes {
			node.Group = groupName
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// Select returns the nodes matching any of the patterns, by node or group
// name. An empty limit selects every node.
func (inv *Inventory) Select(limit []string) ([]Node, error) {
	all := inv.Nodes()
	if len(limit) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool)
	for _, entry := range limit {
		for _, name := range strings.Split(entry, ",") {
			if name = strings.TrimSpace(name); name != "" {
				wanted[name] = true
			}
		}
	}

	matched := make(map[string]bool)
	var nodes []Node
	for _, node := range all {
		hit := false
		if wanted[node.Name] {
			matched[node.Name] = true
			hit = true
		}
		if wanted[node.Group] {
			matched[node.Group] = true
			hit = true
		}
		if hit {
			nodes = append(nodes, node)
		}
	}

	var unknown []string
	for name := range wanted {
		if !matched[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("limit matches no node or group: %s", strings.Join(unknown, ", "))
	}

	return nodes, nil
}
