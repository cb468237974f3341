// Package vcs runs the external commands the converters query.
package vcs

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"patchbridge/internal/errors"

	"go.uber.org/zap"
)

// Command describes one synchronous invocation.
type Command struct {
	Dir   string
	Name  string
	Args  []string
	Env   []string // appended to the process environment
	Stdin string
	// OKExitCodes lists non-zero exit codes that still count as success,
	// e.g. 1 for diff(1) when the inputs differ.
	OKExitCodes []int
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner runs a command and captures its stdout.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	logger *zap.Logger
}

func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{logger: logger}
}

// Run executes cmd and returns its stdout. A failing command is reported as
// a command error carrying the arguments and stderr.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (string, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	r.logger.Debug("ran command",
		zap.String("command", cmd.String()),
		zap.String("dir", cmd.Dir),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("stdout_bytes", stdout.Len()))

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) && slices.Contains(cmd.OKExitCodes, exitErr.ExitCode()) {
			return stdout.String(), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		detail := fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		return "", errors.Command(cmd.String(), detail)
	}
	return stdout.String(), nil
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (string, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (string, error) {
	return f(ctx, cmd)
}
