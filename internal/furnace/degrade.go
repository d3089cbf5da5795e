package furnace

import (
	"context"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/canonical"
	"github.com/emberforge/furnace/internal/verdict"
)

// degradationEngine drives T2: build lineage and state through repeated
// ingest, then re-validate audit against a descending retained-history
// schedule. It is the only component allowed to truncate lineage.
type degradationEngine struct {
	iv *invoker
}

func (e *degradationEngine) run(ctx context.Context, ar *arena) tierOutcome {
	const tier = verdict.TierDegradation

	// Phase 1: grow state and lineage from the synthetic schedule.
	for _, ev := range syntheticEvents(ingestCount) {
		resp, flt := e.iv.call(ctx, tier, e.iv.pkg.Contract.Ingest, request{
			Op:    artifact.OpIngest,
			Event: ev,
			State: ar.state,
		})
		if flt != nil {
			return failOutcome(flt, verdict.Detail{})
		}
		if flt := ar.commitIngest(resp); flt != nil {
			return failOutcome(flt, verdict.Detail{})
		}
	}

	// Phase 2: truncate retained history along the fixed schedule and
	// re-validate at each level. First violating level is the failure point.
	for _, level := range truncationLevels {
		detail := verdict.Detail{TruncationLevel: level}

		resp, flt := e.iv.call(ctx, tier, e.iv.pkg.Contract.Audit, request{
			Op:      artifact.OpAudit,
			State:   ar.state,
			Lineage: ar.truncated(level),
		})
		if flt != nil {
			return failOutcome(flt, detail)
		}
		// OK and well-formed HALT both pass T2; only a raise or a malformed
		// return kills the artifact here.
		if !resp.wellFormedAudit() {
			return tierOutcome{reason: verdict.ReasonInvariantFail, detail: detail}
		}
	}

	return tierOutcome{pass: true}
}

// commitIngest validates an ingest response and advances the arena.
// The new state must remain serializable and the lineage item must be
// present: lineage only grows, one item per ingest.
func (ar *arena) commitIngest(resp *response) *fault {
	if len(resp.State) == 0 || len(resp.LineageItem) == 0 {
		return &fault{reason: verdict.ReasonInvariantFail}
	}
	if _, err := canonical.Encode(resp.State); err != nil {
		return &fault{reason: verdict.ReasonInvariantFail}
	}
	if _, err := canonical.Encode(resp.LineageItem); err != nil {
		return &fault{reason: verdict.ReasonInvariantFail}
	}
	ar.state = resp.State
	ar.lineage = append(ar.lineage, resp.LineageItem)
	return nil
}
