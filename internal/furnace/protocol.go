package furnace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/config"
	"github.com/emberforge/furnace/internal/sandbox"
	"github.com/emberforge/furnace/internal/verdict"
)

// Contract calls cross the sandbox boundary through the workspace: the
// harness writes io/request.json, the sandbox runs the artifact's invoke
// command, and the harness reads io/response.json. One sandbox per call.

const (
	ioDir        = "io"
	requestFile  = "io/request.json"
	responseFile = "io/response.json"
)

// request is the wire form handed to the artifact.
type request struct {
	Op          string            `json:"op"`
	Event       json.RawMessage   `json:"event,omitempty"`
	State       json.RawMessage   `json:"state"`
	Lineage     []json.RawMessage `json:"lineage,omitempty"`
	TargetBytes int               `json:"target_bytes,omitempty"`
}

// response is the wire form the artifact returns.
type response struct {
	State       json.RawMessage `json:"state,omitempty"`
	LineageItem json.RawMessage `json:"lineage_item,omitempty"`
	Status      string          `json:"status,omitempty"` // audit: "OK" | "HALT"
	Reason      string          `json:"reason,omitempty"` // audit: HALT reason
}

// auditOK / auditHalt are the two well-formed audit statuses.
const (
	auditOK   = "OK"
	auditHalt = "HALT"
)

// wellFormedAudit reports whether the response is a legal audit return.
func (r *response) wellFormedAudit() bool {
	switch r.Status {
	case auditOK:
		return true
	case auditHalt:
		return r.Reason != ""
	default:
		return false
	}
}

// fault is a classified failure of one sandbox invocation. reason carries
// the public taxonomy class; internal is set only for harness-side errors
// and maps to INTERNAL_ERROR at the tier boundary.
type fault struct {
	reason   verdict.Reason
	internal error
}

// invoker drives artifact contract calls through the sandbox runner for one
// pipeline run. It owns no shared state: each run gets its own invoker and
// workspace.
type invoker struct {
	runner    sandbox.Runner
	runtime   config.RuntimeConfig
	workspace string
	pkg       *artifact.Package
	logger    *slog.Logger
}

// expandArgv substitutes runtime-template placeholders.
func (iv *invoker) expandArgv(template []string, op string) []string {
	repl := strings.NewReplacer(
		"{impl}", iv.pkg.Manifest.Implementation,
		"{selftest}", iv.pkg.Manifest.Selftest,
		"{op}", op,
	)
	argv := make([]string, len(template))
	for i, a := range template {
		argv[i] = repl.Replace(a)
	}
	return argv
}

// runCommand executes a bare (non-contract) command in a fresh sandbox and
// classifies the outcome for the given tier.
func (iv *invoker) runCommand(ctx context.Context, tier verdict.Tier, argv []string) *fault {
	out, err := iv.runner.Run(ctx, sandbox.Spec{Workspace: iv.workspace, Command: argv})
	if err != nil {
		return &fault{reason: verdict.ReasonInternalError, internal: err}
	}
	iv.logInvocation(tier, argv[0], out)
	if reason := classifyOutcome(tier, out); reason != verdict.ReasonNone {
		return &fault{reason: reason}
	}
	return nil
}

// call performs one contract operation in a fresh sandbox and decodes the
// response. Every artifact exception surfaces here as a classified fault;
// nothing propagates upward raw.
func (iv *invoker) call(ctx context.Context, tier verdict.Tier, op artifact.Binding, req request) (*response, *fault) {
	if err := iv.writeRequest(req); err != nil {
		return nil, &fault{reason: verdict.ReasonInternalError, internal: err}
	}

	argv := iv.expandArgv(iv.runtime.Invoke, op.Name)
	out, err := iv.runner.Run(ctx, sandbox.Spec{Workspace: iv.workspace, Command: argv})
	if err != nil {
		return nil, &fault{reason: verdict.ReasonInternalError, internal: err}
	}
	iv.logInvocation(tier, op.Name, out)

	if reason := classifyOutcome(tier, out); reason != verdict.ReasonNone {
		return nil, &fault{reason: reason}
	}

	resp, err := iv.readResponse()
	if err != nil {
		// The process exited cleanly but produced no parseable response:
		// the contract's serializability invariant is broken.
		iv.logger.Debug("malformed contract response", "op", op.Name, "error", err)
		return nil, &fault{reason: verdict.ReasonInvariantFail}
	}
	return resp, nil
}

// classifyOutcome converts a sandbox outcome into a public reason.
// Timeouts and resource kills keep their own classes; any other non-zero
// exit is the tier's HARNESS_FAIL.
func classifyOutcome(tier verdict.Tier, out sandbox.Outcome) verdict.Reason {
	switch {
	case out.TimedOut:
		return verdict.ReasonNontermination
	case out.OOMKilled:
		return verdict.ReasonResourceExhaustion
	case out.ExitCode != 0:
		return verdict.HarnessFail(tier)
	default:
		return verdict.ReasonNone
	}
}

func (iv *invoker) writeRequest(req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	// Remove any stale response so a crashed call cannot replay the
	// previous answer.
	if err := os.Remove(filepath.Join(iv.workspace, responseFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear stale response: %w", err)
	}
	if err := os.WriteFile(filepath.Join(iv.workspace, requestFile), data, 0o644); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (iv *invoker) readResponse() (*response, error) {
	data, err := os.ReadFile(filepath.Join(iv.workspace, responseFile))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// logInvocation records sandbox detail in the internal log only. Captured
// output never reaches a verdict.
func (iv *invoker) logInvocation(tier verdict.Tier, what string, out sandbox.Outcome) {
	iv.logger.Debug("sandbox invocation",
		"tier", tier.String(),
		"command", what,
		"exit", out.ExitCode,
		"timed_out", out.TimedOut,
		"oom", out.OOMKilled,
		"elapsed", out.Elapsed,
	)
}
