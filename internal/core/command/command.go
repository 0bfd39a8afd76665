// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/sirupsen/logrus"
)

// Command describes one process invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the current environment
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the result of command execution
type Result struct {
	Output     []byte
	Stderr     []byte
	ExitStatus int
}

// Runner runs commands on behalf of action handlers and service managers
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// CommandExecutor handles running a single command
type CommandExecutor struct {
	command     string
	args        []string
	workingDir  string
	environment []string
	verbose     bool
}

// NewCommandExecutor creates a new command executor
func NewCommandExecutor(command string, args []string) *CommandExecutor {
	return &CommandExecutor{
		command: command,
		args:    args,
	}
}

// WithWorkingDir sets the working directory
func (e *CommandExecutor) WithWorkingDir(dir string) *CommandExecutor {
	e.workingDir = dir
	return e
}

// WithEnvironment appends environment variables to the inherited environment
func (e *CommandExecutor) WithEnvironment(env []string) *CommandExecutor {
	if len(env) > 0 {
		e.environment = append(os.Environ(), env...)
	}
	return e
}

// WithVerbose streams output to the terminal as well as capturing it
func (e *CommandExecutor) WithVerbose(verbose bool) *CommandExecutor {
	e.verbose = verbose
	return e
}

// Execute runs the command. A non-zero exit wraps models.ErrCommandFailed.
func (e *CommandExecutor) Execute(ctx context.Context) (*Result, error) {
	cmd := exec.CommandContext(ctx, e.command, e.args...)

	var stdout, stderr bytes.Buffer
	if e.verbose {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if e.workingDir != "" {
		cmd.Dir = e.workingDir
	}
	if len(e.environment) > 0 {
		cmd.Env = e.environment
	}

	err := cmd.Run()

	result := &Result{
		Output: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitStatus = exitError.ExitCode()
		} else {
			result.ExitStatus = -1
		}

		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return result, fmt.Errorf("%w: %s (exit %d): %s", models.ErrCommandFailed,
			strings.TrimSpace(e.command+" "+strings.Join(e.args, " ")), result.ExitStatus, detail)
	}

	return result, nil
}

// ExecRunner runs commands as local processes
type ExecRunner struct {
	Verbose bool
	Log     logrus.FieldLogger
}

// NewExecRunner creates a runner for local processes
func NewExecRunner(log logrus.FieldLogger, verbose bool) *ExecRunner {
	return &ExecRunner{Verbose: verbose, Log: log}
}

// Run executes cmd and captures its output
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if r.Log != nil {
		r.Log.WithField("command", cmd.String()).Debug("executing")
	}

	return NewCommandExecutor(cmd.Name, cmd.Args).
		WithWorkingDir(cmd.Dir).
		WithEnvironment(cmd.Env).
		WithVerbose(r.Verbose).
		Execute(ctx)
}

// ChrootRunner runs commands inside a node root with chroot(8).
// Dir is interpreted inside the root.
type ChrootRunner struct {
	Runner Runner
	Root   string
}

// ForRoot returns runner unchanged for the host root and a ChrootRunner otherwise
func ForRoot(runner Runner, root string) Runner {
	if root == "" || filepath.Clean(root) == "/" {
		return runner
	}
	return &ChrootRunner{Runner: runner, Root: filepath.Clean(root)}
}

// Run wraps cmd so that it executes inside the root
func (r *ChrootRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	args := []string{r.Root}
	if cmd.Dir != "" {
		args = append(args, "sh", "-c", `cd "$1" && shift && exec "$@"`, "sh", cmd.Dir)
	}
	args = append(args, cmd.Name)
	args = append(args, cmd.Args...)

	return r.Runner.Run(ctx, Command{Name: "chroot", Args: args, Env: cmd.Env})
}
