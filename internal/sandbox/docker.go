package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/emberforge/furnace/internal/config"
)

// exitOOMKilled is the conventional exit code for a SIGKILL from the
// container's resource limiter.
const exitOOMKilled = 137

// DockerRunner runs each invocation in a fresh, network-disabled container
// pinned to a fixed base image. The workspace is the only mount.
type DockerRunner struct {
	cfg    config.SandboxConfig
	logger *slog.Logger

	// binary is the container CLI, "docker" unless overridden (podman is
	// drop-in compatible for the flags used here).
	binary string
}

// NewDockerRunner creates a runner from sandbox configuration.
func NewDockerRunner(cfg config.SandboxConfig, logger *slog.Logger) *DockerRunner {
	return &DockerRunner{cfg: cfg, logger: logger, binary: "docker"}
}

// Run executes spec.Command inside a disposable container.
//
// The container is always removed: --rm covers normal exits, and an explicit
// `docker rm -f` covers force-termination and external cancellation. No
// container instance outlives its invocation.
func (r *DockerRunner) Run(ctx context.Context, spec Spec) (Outcome, error) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}

	name := "furnace-" + uuid.Must(uuid.NewV7()).String()
	args := []string{
		"run", "--rm",
		"--name", name,
		"--network", "none",
		"--memory", fmt.Sprintf("%dm", r.cfg.MemoryMB),
		"--cpus", fmt.Sprintf("%g", r.cfg.CPUs),
		"--pids-limit", fmt.Sprintf("%d", r.cfg.PidsLimit),
		"-v", spec.Workspace + ":/work",
		"-w", "/work",
		r.cfg.Image,
	}
	args = append(args, spec.Command...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Give the docker CLI a moment to forward the kill before SIGKILLing it.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	// Killing the CLI does not reliably kill the container. Force-remove on
	// every non-clean path so nothing leaks.
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancelled := ctx.Err() != nil && !timedOut
	if timedOut || cancelled || err != nil {
		r.teardown(name)
	}

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
	case cancelled:
		return outcome, ctx.Err()
	case err == nil:
		outcome.ExitCode = 0
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// The CLI itself failed to start: a harness fault, not the artifact's.
		return outcome, fmt.Errorf("sandbox engine failed: %w", err)
	}

	outcome.ExitCode = exitErr.ExitCode()
	if outcome.ExitCode == exitOOMKilled {
		outcome.OOMKilled = true
	}
	return outcome, nil
}

// teardown force-removes the container. Best effort: the container may have
// already exited under --rm.
func (r *DockerRunner) teardown(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if out, err := exec.CommandContext(ctx, r.binary, "rm", "-f", name).CombinedOutput(); err != nil {
		r.logger.Debug("sandbox teardown", "container", name, "error", err, "output", string(out))
	}
}
