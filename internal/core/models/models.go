// SPDX-License-Identifier: Apache-2.0

package models

// ActionKind names the handler a step dispatches to
type ActionKind string

const (
	ActionPackageInstall ActionKind = "package-install"
	ActionFileCopy       ActionKind = "file-copy"
	ActionFileMode       ActionKind = "file-mode"
	ActionTemplateRender ActionKind = "template-render"
	ActionCommandRun     ActionKind = "command-run"
	ActionServiceControl ActionKind = "service-control"
	ActionFactsRefresh   ActionKind = "facts-refresh"
)

// Guard is a tagged boolean expression over host facts.
// Exactly one form is set: a comparison (Fact/Op/Value), All, Any, Not or Expr.
type Guard struct {
	Fact  string      `json:"fact,omitempty" yaml:"fact,omitempty"`
	Op    string      `json:"op,omitempty" yaml:"op,omitempty"`
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`

	All []Guard `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Guard `json:"any,omitempty" yaml:"any,omitempty"`
	Not *Guard  `json:"not,omitempty" yaml:"not,omitempty"`

	// Expr is a CEL expression evaluated against the "facts" map
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// Step is a single unit of provisioning work
type Step struct {
	ID        string                 `json:"id" yaml:"id"`
	Name      string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Action    ActionKind             `json:"action" yaml:"action"`
	Params    map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	Guard     *Guard                 `json:"guard,omitempty" yaml:"guard,omitempty"`
	DependsOn []string               `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Index is the execution position assigned when the plan is ordered
	Index int `json:"index" yaml:"-"`
}

// DisplayName returns the human label, falling back to the ID
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Plan is an ordered list of provisioning steps for one node
type Plan struct {
	Name string `json:"name" yaml:"name"`
	// Required lists variables that must be bound before any node runs
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
	Steps    []Step   `json:"steps" yaml:"steps"`
}
