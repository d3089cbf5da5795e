// Package sandbox executes one bounded, disposable process per invocation.
//
// A sandbox instance serves exactly one command: it is created, runs to
// completion (or is force-terminated at the wall-clock limit), and is torn
// down on every exit path. Instances are never reused across tiers or
// artifacts.
package sandbox

import (
	"context"
	"time"
)

// Spec describes one sandbox invocation.
type Spec struct {
	// Workspace is the host directory mounted read-write into the sandbox.
	// All artifact I/O happens under it.
	Workspace string

	// Command is the argv to execute, paths relative to the workspace mount.
	Command []string

	// Timeout is the hard wall-clock limit. Zero means the runner default.
	Timeout time.Duration
}

// Outcome reports what one sandbox invocation did.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration

	// TimedOut is set when the invocation hit the wall-clock limit and was
	// force-terminated. Reported as NONTERMINATION, never as a crash.
	TimedOut bool

	// OOMKilled is set when the process was killed by the resource limiter
	// (exit 137 under the docker engine).
	OOMKilled bool
}

// Success reports a clean zero exit.
func (o Outcome) Success() bool {
	return o.ExitCode == 0 && !o.TimedOut
}

// Runner executes commands in disposable sandboxes.
//
// Run returns an error only for harness-side faults (runner misconfigured,
// workspace missing). Everything the artifact does, including non-zero exit,
// timeout, or resource kill, is reported in the Outcome, not as an error.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Outcome, error)
}

// captureLimit bounds captured stdout/stderr per stream. Artifact output is
// diagnostic only; unbounded capture would let a hostile artifact exhaust
// harness memory.
const captureLimit = 64 * 1024

// truncate clips captured output to the capture limit.
func truncate(b []byte) string {
	if len(b) > captureLimit {
		return string(b[:captureLimit])
	}
	return string(b)
}
