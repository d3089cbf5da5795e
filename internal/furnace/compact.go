package furnace

import (
	"context"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/canonical"
	"github.com/emberforge/furnace/internal/verdict"
)

// compactionEngine drives T3: compact under a descending sequence of byte
// budgets. Violation is discovered by direct measurement of the canonical
// serialized size, never by trusting the artifact's own accounting.
type compactionEngine struct {
	iv *invoker
}

func (e *compactionEngine) run(ctx context.Context, ar *arena) tierOutcome {
	const tier = verdict.TierCompaction

	for _, budget := range byteBudgets {
		detail := verdict.Detail{ByteBudget: budget}

		resp, flt := e.iv.call(ctx, tier, e.iv.pkg.Contract.Compact, request{
			Op:          artifact.OpCompact,
			State:       ar.state,
			Lineage:     ar.lineage,
			TargetBytes: budget,
		})
		if flt != nil {
			return failOutcome(flt, detail)
		}
		if len(resp.State) == 0 {
			return tierOutcome{reason: verdict.ReasonInvariantFail, detail: detail}
		}

		size, err := canonical.Size(resp.State)
		if err != nil {
			// Compacted state is no longer serializable.
			return tierOutcome{reason: verdict.ReasonInvariantFail, detail: detail}
		}
		if size > budget {
			return tierOutcome{reason: verdict.HarnessFail(tier), detail: detail}
		}

		// The compacted state must still satisfy audit against the full
		// lineage. A HALT here means compaction lost required invariants.
		auditResp, flt := e.iv.call(ctx, tier, e.iv.pkg.Contract.Audit, request{
			Op:      artifact.OpAudit,
			State:   resp.State,
			Lineage: ar.lineage,
		})
		if flt != nil {
			return failOutcome(flt, detail)
		}
		if !auditResp.wellFormedAudit() {
			return tierOutcome{reason: verdict.ReasonInvariantFail, detail: detail}
		}
		if auditResp.Status != auditOK {
			return tierOutcome{reason: verdict.HarnessFail(tier), detail: detail}
		}

		// Budgets descend; the compacted state carries forward so each step
		// squeezes the previous one.
		ar.state = resp.State
	}

	return tierOutcome{pass: true}
}
