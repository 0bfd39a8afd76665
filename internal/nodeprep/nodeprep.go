// SPDX-License-Identifier: Apache-2.0

// Package nodeprep provisions the nodes of an inventory with a plan.
package nodeprep

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/config"
	"github.com/kusari-oss/nodeprep/internal/core/format"
	"github.com/kusari-oss/nodeprep/internal/core/logging"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/kusari-oss/nodeprep/internal/core/variables"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/action"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/artifact"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/condition"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/executor"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/facts"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/inventory"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/metrics"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/plan"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/runtimecfg"
	"github.com/kusari-oss/nodeprep/internal/nodeprep/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs one plan against the selected nodes of an inventory
type Orchestrator struct {
	cfg *config.Config
	log logrus.FieldLogger

	registry  *action.Registry
	gate      *condition.Gate
	gatherer  facts.Gatherer
	runner    command.Runner
	manager   service.Manager
	metrics   *metrics.Recorder
	observers []executor.Observer
}

// New creates an orchestrator with the built-in actions, local fact
// gathering, local command execution and systemd
func New(cfg *config.Config, log logrus.FieldLogger) (*Orchestrator, error) {
	gate, err := condition.NewGate()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}

	runner := command.NewExecRunner(log, false)
	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		registry: action.NewDefaultRegistry(),
		gate:     gate,
		gatherer: facts.NewLocalGatherer(),
		runner:   runner,
		manager:  service.NewSystemd(runner),
		metrics:  metrics.NewRecorder(),
	}, nil
}

// WithGatherer replaces the fact gatherer
func (o *Orchestrator) WithGatherer(g facts.Gatherer) *Orchestrator {
	o.gatherer = g
	return o
}

// WithRunner replaces the command runner used by actions and, unless a
// custom service manager was set, by systemd
func (o *Orchestrator) WithRunner(r command.Runner) *Orchestrator {
	o.runner = r
	if _, ok := o.manager.(*service.Systemd); ok {
		o.manager = service.NewSystemd(r)
	}
	return o
}

// WithServiceManager replaces the service manager
func (o *Orchestrator) WithServiceManager(m service.Manager) *Orchestrator {
	o.manager = m
	return o
}

// WithObserver adds a step observer
func (o *Orchestrator) WithObserver(obs executor.Observer) *Orchestrator {
	o.observers = append(o.observers, obs)
	return o
}

// Registry exposes the action registry so callers can add handlers
func (o *Orchestrator) Registry() *action.Registry {
	return o.registry
}

// Metrics returns the recorder fed by every run
func (o *Orchestrator) Metrics() *metrics.Recorder {
	return o.metrics
}

type nodeJob struct {
	node    inventory.Node
	scope   *variables.Scope
	backend runtimecfg.Backend
}

// ValidatePlan checks the plan against the registered actions and guard
// grammar, then assigns execution indices
func (o *Orchestrator) ValidatePlan(p *models.Plan) error {
	if err := plan.Validate(p, o.registry.Has, o.gate); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	if err := plan.Order(p); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	return nil
}

// Check validates and orders the plan and resolves the scope of every
// selected node without touching any node.
func (o *Orchestrator) Check(p *models.Plan, inv *inventory.Inventory, limit []string, runVars map[string]interface{}) ([]string, error) {
	jobs, err := o.prepare(p, inv, limit, runVars)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.node.Name)
	}
	return names, nil
}

func (o *Orchestrator) prepare(p *models.Plan, inv *inventory.Inventory, limit []string, runVars map[string]interface{}) ([]nodeJob, error) {
	if err := o.ValidatePlan(p); err != nil {
		return nil, err
	}

	nodes, err := inv.Select(limit)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes selected")
	}

	vars := make(map[string]interface{}, len(o.cfg.Vars)+len(runVars))
	for k, v := range o.cfg.Vars {
		vars[k] = v
	}
	for k, v := range runVars {
		vars[k] = v
	}

	required := plan.RequiredVariables(p)
	roots := make(map[string]string, len(nodes))
	jobs := make([]nodeJob, 0, len(nodes))
	for _, node := range nodes {
		root := nodeRoot(node)
		if other, ok := roots[root]; ok {
			return nil, fmt.Errorf("%w: nodes %s and %s share root %s", models.ErrConfigurationMismatch, other, node.Name, root)
		}
		roots[root] = node.Name

		scope, backend, err := inv.BuildScope(node, vars, o.cfg.ArtifactRoot, required)
		if err != nil {
			return nil, err
		}
		if err := plan.CheckVariables(p, scope); err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name, err)
		}
		jobs = append(jobs, nodeJob{node: node, scope: scope, backend: backend})
	}

	return jobs, nil
}

func nodeRoot(node inventory.Node) string {
	if node.Root == "" {
		return "/"
	}
	return filepath.Clean(node.Root)
}

// services returns the service controller for a node. A custom manager is
// used as is; systemd is only reachable for the host or a registered machine.
func (o *Orchestrator) services(node inventory.Node, log logrus.FieldLogger) *service.Controller {
	manager := o.manager
	if systemd, ok := manager.(*service.Systemd); ok && nodeRoot(node) != "/" {
		if node.Machine == "" {
			return nil
		}
		manager = systemd.ForMachine(node.Machine)
	}
	return service.NewController(manager, o.cfg.Service.Timeout, o.cfg.Service.PollInterval, log)
}

// Run provisions every selected node concurrently. A node's failure never
// stops its siblings; it is recorded in that node's result. The returned
// error covers problems that prevented the run from starting.
func (o *Orchestrator) Run(ctx context.Context, p *models.Plan, inv *inventory.Inventory, limit []string, runVars map[string]interface{}) (*models.RunResult, error) {
	jobs, err := o.prepare(p, inv, limit, runVars)
	if err != nil {
		return nil, err
	}

	composer, err := runtimecfg.Discover(filepath.Join(o.cfg.ArtifactRoot, o.cfg.TemplateDir))
	if err != nil {
		return nil, err
	}

	run := &models.RunResult{
		RunID: uuid.New().String(),
		Plan:  p.Name,
		Nodes: make([]*models.NodeResult, len(jobs)),
	}
	o.log.WithField(logging.FieldRunID, run.RunID).Infof("provisioning %d node(s) with plan %s", len(jobs), p.Name)

	observers := append([]executor.Observer{o.metrics}, o.observers...)
	exec := executor.NewPlanExecutor(o.registry, o.gate, observers...)

	var group errgroup.Group
	group.SetLimit(o.cfg.Concurrency)

	for i, job := range jobs {
		group.Go(func() error {
			result := o.runNode(ctx, exec, composer, run.RunID, p, job)
			o.metrics.NodeFinished(result)
			run.Nodes[i] = result
			return nil
		})
	}
	_ = group.Wait()

	if o.cfg.ResultsFile != "" {
		if err := format.WriteFile(o.cfg.ResultsFile, run); err != nil {
			return run, fmt.Errorf("error writing results file: %w", err)
		}
	}
	if o.cfg.MetricsTextfile != "" {
		if err := o.metrics.WriteTextfile(o.cfg.MetricsTextfile); err != nil {
			return run, err
		}
	}

	return run, nil
}

func (o *Orchestrator) runNode(ctx context.Context, exec *executor.PlanExecutor, composer *runtimecfg.Composer, runID string, p *models.Plan, job nodeJob) *models.NodeResult {
	log := logging.ForNode(o.log, runID, job.node.Name, job.node.Group)

	var nodePlan models.Plan
	if err := copier.CopyWithOption(&nodePlan, p, copier.Option{DeepCopy: true}); err != nil {
		return &models.NodeResult{Node: job.node.Name, Group: job.node.Group, Err: err, FailureDetail: err.Error()}
	}

	nodeFacts, err := facts.Collect(ctx, o.gatherer, job.node.Root, job.node.Facts)
	if err != nil {
		log.WithError(err).Error("cannot start node")
		return &models.NodeResult{Node: job.node.Name, Group: job.node.Group, Err: err, FailureDetail: err.Error()}
	}

	env := &action.Env{
		Node:        job.node.Name,
		Group:       job.node.Group,
		Scope:       job.scope,
		Backend:     job.backend,
		Distributor: artifact.NewDistributor(o.cfg.ArtifactRoot, job.node.Root),
		Composer:    composer,
		Runner:      command.ForRoot(o.runner, job.node.Root),
		Services:    o.services(job.node, log),
		Facts:       nodeFacts,
		Gatherer:    o.gatherer,
		StaticFacts: job.node.Facts,
		Log:         log,
	}

	return exec.Execute(ctx, env, &nodePlan)
}
