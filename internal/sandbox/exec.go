package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ExecRunner runs invocations as bare host processes rooted in the
// workspace with a scrubbed environment.
//
// It provides the same one-process-per-invocation and hard-timeout
// guarantees as the docker engine but no network or filesystem isolation.
// Intended for development and for the harness's own tests; production runs
// use the docker engine.
type ExecRunner struct {
	// DefaultTimeout applies when the spec does not set one.
	DefaultTimeout time.Duration
}

// NewExecRunner creates an exec runner with the given default timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{DefaultTimeout: timeout}
}

// Run executes spec.Command with the workspace as working directory.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Outcome, error) {
	if len(spec.Command) == 0 {
		return Outcome{}, errors.New("empty sandbox command")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Workspace
	// Scrubbed environment: artifact code sees nothing from the host shell.
	cmd.Env = []string{"PATH=/usr/local/bin:/usr/bin:/bin", "HOME=/tmp"}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	outcome := Outcome{
		Stdout:   truncate(stdout.Bytes()),
		Stderr:   truncate(stderr.Bytes()),
		Elapsed:  elapsed,
		TimedOut: timedOut,
	}

	switch {
	case timedOut:
		outcome.ExitCode = -1
		return outcome, nil
	case ctx.Err() != nil:
		return outcome, ctx.Err()
	case err == nil:
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return outcome, fmt.Errorf("sandbox exec failed: %w", err)
	}
	outcome.ExitCode = exitErr.ExitCode()
	if outcome.ExitCode == exitOOMKilled {
		outcome.OOMKilled = true
	}
	return outcome, nil
}
