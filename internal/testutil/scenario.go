package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scenario configures the reference counter artifact with failure-injection
// knobs. Scenarios live as YAML fixtures under testdata so tier tests stay
// declarative.
type Scenario struct {
	Name string `yaml:"name"`

	// SelftestExit / ImportExit are the exit codes for T0 and T1.
	SelftestExit int `yaml:"selftest_exit"`
	ImportExit   int `yaml:"import_exit"`

	// TimeoutSelftest makes T0 hit the wall-clock limit.
	TimeoutSelftest bool `yaml:"timeout_selftest"`

	// FailIngestAt makes the Nth ingest call (1-based) exit non-zero.
	FailIngestAt int `yaml:"fail_ingest_at"`

	// RaiseAuditAtTruncation makes audit exit non-zero when called with
	// exactly that many lineage entries (a T2 raise).
	RaiseAuditAtTruncation int `yaml:"raise_audit_at_truncation"`

	// HaltAuditAtTruncation makes audit return a well-formed HALT at that
	// truncation level (legal at T2).
	HaltAuditAtTruncation int `yaml:"halt_audit_at_truncation"`

	// OversizeAtBudget makes compact return a state larger than that budget.
	OversizeAtBudget int `yaml:"oversize_at_budget"`

	// RaiseAuditAfterCompact makes the post-compaction audit exit non-zero.
	RaiseAuditAfterCompact bool `yaml:"raise_audit_after_compact"`

	// DivergeAtCycle makes the probe ingest return different output on that
	// restart cycle (1-based; the pre-teardown baseline is not a cycle).
	DivergeAtCycle int `yaml:"diverge_at_cycle"`

	// RaiseAuditAtCycle makes audit exit non-zero on that restart cycle.
	RaiseAuditAtCycle int `yaml:"raise_audit_at_cycle"`
}

// LoadScenario parses a YAML scenario fixture.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// counterState is the reference artifact's state shape.
type counterState struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum"`
}

// NewCounterArtifact builds a scripted runner implementing a deterministic
// counter artifact honoring the scenario's knobs. With a zero-value
// scenario the artifact survives all five tiers.
func NewCounterArtifact(s *Scenario) *ScriptedRunner {
	r := &ScriptedRunner{
		SelftestReply: Reply{ExitCode: s.SelftestExit, TimedOut: s.TimeoutSelftest},
		ImportReply:   Reply{ExitCode: s.ImportExit},
	}

	var mu sync.Mutex
	ingestCalls := 0
	probeCalls := 0
	compactedAudits := 0

	r.Handler = func(req ContractRequest) Reply {
		mu.Lock()
		defer mu.Unlock()

		switch req.Op {
		case "ingest":
			ingestCalls++
			if s.FailIngestAt > 0 && ingestCalls == s.FailIngestAt {
				return Reply{ExitCode: 1}
			}

			state := decodeCounter(req.State)
			var ev struct {
				Seq   int64  `json:"seq"`
				Key   string `json:"key"`
				Value int64  `json:"value"`
			}
			_ = json.Unmarshal(req.Event, &ev)

			if ev.Key == "probe" {
				probeCalls++
				// The baseline observation is probe call 1; cycle N is call N+1.
				if s.DivergeAtCycle > 0 && probeCalls == s.DivergeAtCycle+1 {
					state.Sum += 999
				}
			}

			state.Count++
			state.Sum += ev.Value
			return Reply{Response: map[string]any{
				"state":        state,
				"lineage_item": map[string]any{"seq": state.Count, "event_seq": ev.Seq},
			}}

		case "compact":
			state := decodeCounter(req.State)
			if s.OversizeAtBudget > 0 && req.TargetBytes == s.OversizeAtBudget {
				return Reply{Response: map[string]any{
					"state": map[string]any{
						"count":   state.Count,
						"padding": strings.Repeat("x", req.TargetBytes+64),
					},
				}}
			}
			// Compaction keeps the count and drops the running sum.
			return Reply{Response: map[string]any{
				"state": map[string]any{"count": state.Count},
			}}

		case "audit":
			n := len(req.Lineage)
			if s.RaiseAuditAtTruncation > 0 && n == s.RaiseAuditAtTruncation {
				return Reply{ExitCode: 1}
			}
			if isCompacted(req.State) {
				compactedAudits++
				// Compacted-state audits: one per byte budget, then the
				// restart baseline, then one per cycle. Cycle N is call 5+N.
				if s.RaiseAuditAtCycle > 0 && compactedAudits == 5+s.RaiseAuditAtCycle {
					return Reply{ExitCode: 1}
				}
			}
			if s.RaiseAuditAfterCompact && req.TargetBytes == 0 && n > 0 && isCompacted(req.State) {
				return Reply{ExitCode: 1}
			}
			if s.HaltAuditAtTruncation > 0 && n == s.HaltAuditAtTruncation {
				return Reply{Response: map[string]any{"status": "HALT", "reason": "insufficient history"}}
			}
			return Reply{Response: map[string]any{"status": "OK"}}

		default:
			return Reply{ExitCode: 2}
		}
	}
	return r
}

func decodeCounter(raw json.RawMessage) counterState {
	var s counterState
	_ = json.Unmarshal(raw, &s)
	return s
}

// isCompacted detects a state produced by compact (no "sum" field).
func isCompacted(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	_, hasSum := m["sum"]
	_, hasCount := m["count"]
	return hasCount && !hasSum
}
