// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kusari-oss/nodeprep/internal/core/command"
	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/siderolabs/go-retry/retry"
	"github.com/sirupsen/logrus"
)

// Operation is a lifecycle transition requested from the service manager
type Operation string

const (
	Start   Operation = "start"
	Stop    Operation = "stop"
	Restart Operation = "restart"
	Reload  Operation = "reload"
)

// ParseOperation validates an operation name
func ParseOperation(value string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(value))); op {
	case Start, Stop, Restart, Reload:
		return op, nil
	default:
		return "", fmt.Errorf("%w: unknown service operation %q", models.ErrInvalidParameters, value)
	}
}

// wantsActive reports the state the service should settle in after op
func (o Operation) wantsActive() bool {
	return o != Stop
}

// Manager is the node's service manager
type Manager interface {
	DaemonReload(ctx context.Context) error
	Exists(ctx context.Context, name string) (bool, error)
	Apply(ctx context.Context, name string, op Operation) error
	Active(ctx context.Context, name string) (bool, error)
}

// Systemd drives units through systemctl
type Systemd struct {
	runner  command.Runner
	machine string
}

// NewSystemd creates a systemd manager using runner
func NewSystemd(runner command.Runner) *Systemd {
	return &Systemd{runner: runner}
}

// ForMachine returns a manager for the systemd instance of a local
// container, as registered with systemd-machined
func (s *Systemd) ForMachine(machine string) *Systemd {
	return &Systemd{runner: s.runner, machine: machine}
}

func (s *Systemd) systemctl(ctx context.Context, args ...string) (*command.Result, error) {
	if s.machine != "" {
		args = append([]string{"--machine=" + s.machine}, args...)
	}
	return s.runner.Run(ctx, command.Command{Name: "systemctl", Args: args})
}

// DaemonReload re-reads unit files
func (s *Systemd) DaemonReload(ctx context.Context) error {
	_, err := s.systemctl(ctx, "daemon-reload")
	return err
}

// Exists reports whether systemd knows the unit
func (s *Systemd) Exists(ctx context.Context, name string) (bool, error) {
	result, err := s.systemctl(ctx, "show", "--property=LoadState", "--value", name)
	if err != nil {
		return false, err
	}
	state := strings.TrimSpace(string(result.Output))
	return state != "" && state != "not-found", nil
}

// Apply performs op on the unit
func (s *Systemd) Apply(ctx context.Context, name string, op Operation) error {
	_, err := s.systemctl(ctx, string(op), name)
	return err
}

// Active reports whether the unit is running. is-active exits non-zero for
// inactive units, which is a state and not a failure.
func (s *Systemd) Active(ctx context.Context, name string) (bool, error) {
	result, err := s.systemctl(ctx, "is-active", name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, models.ErrCommandFailed) && result != nil && result.ExitStatus > 0 {
		return false, nil
	}
	return false, err
}

// Controller performs a transition and waits for the service to settle
type Controller struct {
	manager  Manager
	timeout  time.Duration
	interval time.Duration
	log      logrus.FieldLogger
}

// NewController creates a controller that polls every interval until timeout
func NewController(manager Manager, timeout, interval time.Duration, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.New()
	}
	return &Controller{manager: manager, timeout: timeout, interval: interval, log: log}
}

// Transition reloads metadata if asked, checks that the service exists,
// applies op and waits for the expected active state
func (c *Controller) Transition(ctx context.Context, name string, op Operation, daemonReload bool) error {
	if daemonReload {
		if err := c.manager.DaemonReload(ctx); err != nil {
			return fmt.Errorf("%w: daemon-reload: %v", models.ErrServiceTransition, err)
		}
	}

	exists, err := c.manager.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: checking %s: %v", models.ErrServiceTransition, name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", models.ErrServiceNotFound, name)
	}

	c.log.WithField("service", name).Infof("%s", op)
	if err := c.manager.Apply(ctx, name, op); err != nil {
		return fmt.Errorf("%w: %s %s: %v", models.ErrServiceTransition, op, name, err)
	}

	want := op.wantsActive()
	var fatal error
	err = retry.Constant(c.timeout, retry.WithUnits(c.interval)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			active, stateErr := c.manager.Active(ctx, name)
			if stateErr != nil {
				fatal = stateErr
				return stateErr
			}
			if active != want {
				return retry.ExpectedError(fmt.Errorf("%s is not yet %s", name, stateName(want)))
			}
			return nil
		})
	if err != nil {
		if fatal != nil {
			return fmt.Errorf("%w: reading state of %s: %v", models.ErrServiceTransition, name, fatal)
		}
		return fmt.Errorf("%w: %s did not become %s within %s", models.ErrTransitionTimeout, name, stateName(want), c.timeout)
	}

	return nil
}

func stateName(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
