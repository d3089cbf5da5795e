// Package testutil provides deterministic test doubles for the Furnace:
// an in-process sandbox runner scripted by scenario fixtures, and the
// reference "counter" artifact used to exercise every tier without a real
// container engine.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emberforge/furnace/internal/config"
	"github.com/emberforge/furnace/internal/sandbox"
)

// Test runtime templates dispatch on argv[0] so the scripted runner can tell
// invocation kinds apart without a real runtime.
const (
	CmdSelftest = "selftest"
	CmdImport   = "import"
	CmdInvoke   = "invoke"
)

// Config returns a furnace configuration wired for scripted runs.
func Config(workspace string) *config.Config {
	cfg := config.Default()
	cfg.Workspace = workspace
	cfg.Database = filepath.Join(workspace, "outcomes.db")
	cfg.Sandbox.Engine = "exec"
	cfg.Sandbox.Timeout = 30 * time.Second
	cfg.Runtime = config.RuntimeConfig{
		Selftest:    []string{CmdSelftest, "{selftest}"},
		ImportCheck: []string{CmdImport, "{impl}"},
		Invoke:      []string{CmdInvoke, "{op}"},
	}
	return cfg
}

// ContractRequest mirrors the harness's wire request for scripted handlers.
type ContractRequest struct {
	Op          string            `json:"op"`
	Event       json.RawMessage   `json:"event,omitempty"`
	State       json.RawMessage   `json:"state"`
	Lineage     []json.RawMessage `json:"lineage,omitempty"`
	TargetBytes int               `json:"target_bytes,omitempty"`
}

// Reply describes what the scripted artifact does for one invocation.
type Reply struct {
	// Response is JSON-marshaled into io/response.json when non-nil.
	Response any
	// RawResponse is written verbatim instead (malformed-response tests).
	RawResponse string
	ExitCode    int
	TimedOut    bool
	OOMKilled   bool
}

// ScriptedRunner implements sandbox.Runner entirely in-process. Each Run
// call plays one sandbox invocation against the scripted artifact.
type ScriptedRunner struct {
	SelftestReply Reply
	ImportReply   Reply

	// Handler answers contract calls. Required for any run that reaches T2.
	Handler func(req ContractRequest) Reply

	mu    sync.Mutex
	calls []string
}

// Run implements sandbox.Runner.
func (r *ScriptedRunner) Run(_ context.Context, spec sandbox.Spec) (sandbox.Outcome, error) {
	if len(spec.Command) == 0 {
		return sandbox.Outcome{}, fmt.Errorf("empty command")
	}

	switch spec.Command[0] {
	case CmdSelftest:
		r.record(CmdSelftest)
		return outcomeFor(r.SelftestReply), nil
	case CmdImport:
		r.record(CmdImport)
		return outcomeFor(r.ImportReply), nil
	case CmdInvoke:
		return r.invoke(spec)
	default:
		return sandbox.Outcome{}, fmt.Errorf("unscripted command %q", spec.Command[0])
	}
}

func (r *ScriptedRunner) invoke(spec sandbox.Spec) (sandbox.Outcome, error) {
	data, err := os.ReadFile(filepath.Join(spec.Workspace, "io", "request.json"))
	if err != nil {
		return sandbox.Outcome{}, fmt.Errorf("scripted runner: %w", err)
	}
	var req ContractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return sandbox.Outcome{}, fmt.Errorf("scripted runner: %w", err)
	}
	r.record(req.Op)

	if r.Handler == nil {
		return sandbox.Outcome{}, fmt.Errorf("scripted runner: no handler for op %q", req.Op)
	}
	reply := r.Handler(req)

	if reply.ExitCode == 0 && !reply.TimedOut && !reply.OOMKilled {
		var out []byte
		if reply.RawResponse != "" {
			out = []byte(reply.RawResponse)
		} else if out, err = json.Marshal(reply.Response); err != nil {
			return sandbox.Outcome{}, fmt.Errorf("scripted runner: %w", err)
		}
		if err := os.WriteFile(filepath.Join(spec.Workspace, "io", "response.json"), out, 0o644); err != nil {
			return sandbox.Outcome{}, fmt.Errorf("scripted runner: %w", err)
		}
	}
	return outcomeFor(reply), nil
}

// Calls returns the recorded invocation kinds in order.
func (r *ScriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount returns how many invocations of the given kind were recorded.
func (r *ScriptedRunner) CallCount(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == kind {
			n++
		}
	}
	return n
}

func (r *ScriptedRunner) record(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind)
}

func outcomeFor(reply Reply) sandbox.Outcome {
	out := sandbox.Outcome{
		ExitCode:  reply.ExitCode,
		TimedOut:  reply.TimedOut,
		OOMKilled: reply.OOMKilled,
	}
	if reply.TimedOut {
		out.ExitCode = -1
	}
	return out
}
