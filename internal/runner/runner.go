// Package runner abstracts external process execution behind a single
// blocking run-and-capture operation. The setup pipeline drives every
// side-effecting tool (the venv module, pip, git, the MAP Client entry
// point) through this interface, so tests substitute a scripted fake and
// never spawn real processes.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command describes one external process invocation.
type Command struct {
	// Path is the executable: an absolute path or a bare name resolved
	// via the search path.
	Path string

	// Args are the arguments, not including the program itself.
	Args []string

	// Dir is the working directory. Empty inherits the caller's.
	Dir string
}

// Argv returns the full argument vector including the program, the form
// transcripts and expectations use.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// Result captures the observable outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes one external command and blocks until it exits. A nil
// error means the process ran and exited zero. A non-nil error covers
// both start failures and non-zero exits; when the process ran, the
// Result still carries its exit code and captured output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec. No timeout is imposed; a hang
// in an external tool hangs the pipeline, and cancellation arrives only
// through the context.
type ExecRunner struct{}

// Run executes the command, capturing stdout and stderr separately.
// Stderr is folded into the returned error so failure messages carry
// the tool's own explanation.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	runErr := proc.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if runErr != nil {
		result.ExitCode = -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, fmt.Errorf("%s: %w%s", describe(cmd), runErr, stderrSuffix(result.Stderr))
	}
	return result, nil
}

// describe renders a command for error messages: program basename, its
// arguments, and the working directory when one was set.
func describe(cmd Command) string {
	name := filepath.Base(cmd.Path)
	if len(cmd.Args) > 0 {
		name += " " + strings.Join(cmd.Args, " ")
	}
	if cmd.Dir != "" {
		name += " in " + cmd.Dir
	}
	return name
}

func stderrSuffix(stderr string) string {
	trimmed := strings.TrimSpace(stderr)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf(" (stderr: %s)", trimmed)
}
