// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"fmt"
	"sort"

	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/schema"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/artifact"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/facts"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/runtimecfg"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/service"
	"github.com/sirupsen/logrus"
)

// Handler defines the interface that every action kind must implement
type Handler interface {
	// Apply brings the target to the state described by params and reports
	// whether anything changed
	Apply(ctx context.Context, env *Env, params map[string]interface{}) (models.Outcome, error)

	// Schema describes the accepted parameters. Nil accepts anything.
	Schema() *schema.Schema

	// Description returns a human-readable description of the action
	Description() string
}

// Env is everything a handler may touch while provisioning one node
type Env struct {
	Node  string
	Group string

	Scope   *variables.Scope
	Backend runtimecfg.Backend

	Distributor *artifact.Distributor
	Composer    *runtimecfg.Composer
	Runner      command.Runner
	Services    *service.Controller

	Facts       *facts.Set
	Gatherer    facts.Gatherer
	StaticFacts map[string]interface{}

	Log logrus.FieldLogger
}

// TargetRoot returns the filesystem prefix of the node
func (e *Env) TargetRoot() string {
	if e.Distributor == nil || e.Distributor.TargetRoot == "" {
		return "/"
	}
	return e.Distributor.TargetRoot
}

// Registry maps action kinds to handlers
type Registry struct {
	handlers map[models.ActionKind]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.ActionKind]Handler)}
}

// NewDefaultRegistry creates a registry with every built-in action kind
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterDefaultTypes()
	return r
}

// Register registers a handler for an action kind, replacing any previous one
func (r *Registry) Register(kind models.ActionKind, handler Handler) {
	r.handlers[kind] = handler
}

// Lookup returns the handler for kind
func (r *Registry) Lookup(kind models.ActionKind) (Handler, error) {
	handler, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownAction, kind)
	}
	return handler, nil
}

// Has reports whether a handler is registered for kind
func (r *Registry) Has(kind models.ActionKind) bool {
	_, ok := r.handlers[kind]
	return ok
}

// Kinds returns the registered action kinds in sorted order
func (r *Registry) Kinds() []models.ActionKind {
	kinds := make([]models.ActionKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// RegisterDefaultTypes registers all the standard action kinds
func (r *Registry) RegisterDefaultTypes() {
	r.Register(models.ActionFileCopy, &CopyHandler{})
	r.Register(models.ActionFileMode, &ModeHandler{})
	r.Register(models.ActionTemplateRender, &RenderHandler{})
	r.Register(models.ActionCommandRun, &CommandHandler{})
	r.Register(models.ActionPackageInstall, &PackageHandler{})
	r.Register(models.ActionServiceControl, &ServiceHandler{})
	r.Register(models.ActionFactsRefresh, &FactsHandler{})
}
