// SPDX-License-Identifier: Apache-2.0

package runtimecfg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
)

// TemplateName returns the file name of a backend's daemon config template
func TemplateName(b Backend) string {
	return fmt.Sprintf("config-%s.toml", b)
}

// Composer renders the container daemon configuration for a backend
type Composer struct {
	templates map[Backend]string
}

// NewComposer creates an empty composer
func NewComposer() *Composer {
	return &Composer{templates: make(map[Backend]string)}
}

// Discover registers every backend template found in dir
func Discover(dir string) (*Composer, error) {
	c := NewComposer()

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("error reading template directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template path %s is not a directory", dir)
	}

	for _, b := range Backends {
		path := filepath.Join(dir, TemplateName(b))
		if _, err := os.Stat(path); err == nil {
			c.templates[b] = path
		}
	}
	return c, nil
}

// Register associates a template file with a backend
func (c *Composer) Register(b Backend, path string) error {
	if !b.Valid() {
		return fmt.Errorf("%w: unknown runtime backend %q", models.ErrConfigurationMismatch, b)
	}
	c.templates[b] = path
	return nil
}

// Registered returns the backends that have a template, in sorted order
func (c *Composer) Registered() []Backend {
	out := make([]Backend, 0, len(c.templates))
	for b := range c.templates {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Compose renders the template registered for b with the given scope
func (c *Composer) Compose(b Backend, vars variables.Resolver) ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: unknown runtime backend %q", models.ErrConfigurationMismatch, b)
	}

	path, ok := c.templates[b]
	if !ok {
		return nil, fmt.Errorf("%w: no configuration template for backend %s (registered: %v)",
			models.ErrConfigurationMismatch, b, c.Registered())
	}

	return variables.SubstituteFile(path, vars)
}
