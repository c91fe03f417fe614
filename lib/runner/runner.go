package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result holds the outcome of a finished external command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. The concrete implementation shells out;
// tests substitute a fake to exercise pipelines without the real tools.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExitError is returned when a command runs to completion with a non-zero
// exit status. It carries the captured output so failures surface the tool's
// own explanation.
type ExitError struct {
	Name   string
	Args   []string
	Result Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s: exit status %d", e.Name, strings.Join(e.Args, " "), e.Result.ExitCode)
	if out := strings.TrimSpace(e.Result.Stderr); out != "" {
		return msg + ": " + out
	}
	if out := strings.TrimSpace(e.Result.Stdout); out != "" {
		return msg + ": " + out
	}
	return msg
}

type execRunner struct{}

// New returns a Runner backed by os/exec.
func New() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Name: name, Args: args, Result: res}
	default:
		// Spawn failure (tool missing, context cancelled, ...).
		return res, fmt.Errorf("run %s: %w", name, err)
	}
}
