package furnace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/canonical"
	"github.com/emberforge/furnace/internal/verdict"
)

// persistFile is where state survives sandbox destruction between cycles.
const persistFile = "persist/state.json"

// restartEngine drives T4: serialize state to the persistent workspace,
// destroy the sandbox, reload into a fresh one, and verify behavior is
// byte-identical to the pre-teardown baseline. Every sandbox invocation is
// already a fresh disposable instance, so the persist/reload round-trip is
// the only thing carrying state across the teardown.
type restartEngine struct {
	iv *invoker
}

// snapshot is the serialized form written to the persistent workspace.
type snapshot struct {
	State   json.RawMessage   `json:"state"`
	Lineage []json.RawMessage `json:"lineage"`
}

// behavior captures the observable result of one audit + one probe ingest.
// Two behaviors are compared canonically; any divergence is DETERMINISM_FAIL.
type behavior struct {
	auditStatus string
	auditReason string
	probeState  json.RawMessage
	probeItem   json.RawMessage
}

func (e *restartEngine) run(ctx context.Context, ar *arena) tierOutcome {
	baseline, flt := e.observe(ctx, ar.state, ar.lineage)
	if flt != nil {
		return failOutcome(flt, verdict.Detail{})
	}

	for cycle := 1; cycle <= restartCycles; cycle++ {
		detail := verdict.Detail{RestartCycle: cycle}

		state, lineage, err := e.roundTrip(ar)
		if err != nil {
			return tierOutcome{reason: verdict.ReasonInternalError, internal: err, detail: detail}
		}

		after, flt := e.observe(ctx, state, lineage)
		if flt != nil {
			return failOutcome(flt, detail)
		}

		same, err := baseline.equal(after)
		if err != nil {
			return tierOutcome{reason: verdict.ReasonInvariantFail, detail: detail}
		}
		if !same {
			// Silent reset or corruption: the reloaded artifact no longer
			// behaves like it did before teardown.
			return tierOutcome{reason: verdict.ReasonDeterminismFail, detail: detail}
		}
	}

	return tierOutcome{pass: true}
}

// roundTrip serializes the arena to the persistent workspace and reloads it,
// exactly as a restarted pipeline would.
func (e *restartEngine) roundTrip(ar *arena) (json.RawMessage, []json.RawMessage, error) {
	path := filepath.Join(e.iv.workspace, persistFile)

	data, err := json.Marshal(snapshot{State: ar.state, Lineage: ar.lineage})
	if err != nil {
		return nil, nil, fmt.Errorf("serialize state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, nil, fmt.Errorf("persist state: %w", err)
	}

	reloaded, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reload state: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(reloaded, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode reloaded state: %w", err)
	}
	return snap.State, snap.Lineage, nil
}

// observe runs audit and the fixed probe ingest against the given state
// without committing anything to the arena.
func (e *restartEngine) observe(ctx context.Context, state json.RawMessage, lineage []json.RawMessage) (*behavior, *fault) {
	const tier = verdict.TierRestart

	auditResp, flt := e.iv.call(ctx, tier, e.iv.pkg.Contract.Audit, request{
		Op:      artifact.OpAudit,
		State:   state,
		Lineage: lineage,
	})
	if flt != nil {
		return nil, flt
	}
	if !auditResp.wellFormedAudit() {
		return nil, &fault{reason: verdict.ReasonInvariantFail}
	}

	ingestResp, flt := e.iv.call(ctx, tier, e.iv.pkg.Contract.Ingest, request{
		Op:    artifact.OpIngest,
		Event: probeEvent,
		State: state,
	})
	if flt != nil {
		return nil, flt
	}
	if len(ingestResp.State) == 0 || len(ingestResp.LineageItem) == 0 {
		return nil, &fault{reason: verdict.ReasonInvariantFail}
	}

	return &behavior{
		auditStatus: auditResp.Status,
		auditReason: auditResp.Reason,
		probeState:  ingestResp.State,
		probeItem:   ingestResp.LineageItem,
	}, nil
}

// equal compares two behaviors canonically.
func (b *behavior) equal(other *behavior) (bool, error) {
	if b.auditStatus != other.auditStatus || b.auditReason != other.auditReason {
		return false, nil
	}
	sameState, err := canonical.Equal(b.probeState, other.probeState)
	if err != nil {
		return false, err
	}
	if !sameState {
		return false, nil
	}
	return canonical.Equal(b.probeItem, other.probeItem)
}
