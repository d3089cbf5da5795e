package furnace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/sandbox"
	"github.com/emberforge/furnace/internal/testutil"
	"github.com/emberforge/furnace/internal/verdict"
)

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		name string
		out  sandbox.Outcome
		want verdict.Reason
	}{
		{"clean exit", sandbox.Outcome{ExitCode: 0}, verdict.ReasonNone},
		{"timeout", sandbox.Outcome{TimedOut: true, ExitCode: -1}, verdict.ReasonNontermination},
		{"oom", sandbox.Outcome{OOMKilled: true, ExitCode: 137}, verdict.ReasonResourceExhaustion},
		{"crash", sandbox.Outcome{ExitCode: 1}, verdict.ReasonHarnessFailT2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyOutcome(verdict.TierDegradation, tc.out))
		})
	}
}

func TestClassifyOutcome_TimeoutBeatsExitCode(t *testing.T) {
	// A force-terminated process also has a non-zero exit; NONTERMINATION
	// must win over the generic tier failure.
	out := sandbox.Outcome{TimedOut: true, ExitCode: -1}
	assert.Equal(t, verdict.ReasonNontermination, classifyOutcome(verdict.TierSelftest, out))
}

func TestWellFormedAudit(t *testing.T) {
	assert.True(t, (&response{Status: auditOK}).wellFormedAudit())
	assert.True(t, (&response{Status: auditHalt, Reason: "lost history"}).wellFormedAudit())
	// HALT without a reason is not well-formed.
	assert.False(t, (&response{Status: auditHalt}).wellFormedAudit())
	assert.False(t, (&response{Status: "MAYBE"}).wellFormedAudit())
	assert.False(t, (&response{}).wellFormedAudit())
}

func TestRun_MalformedResponseIsInvariantFail(t *testing.T) {
	pkgDir, err := testutil.WritePackage(t.TempDir())
	require.NoError(t, err)
	pkg, err := artifact.Load(pkgDir)
	require.NoError(t, err)

	runner := testutil.NewCounterArtifact(&testutil.Scenario{})
	base := runner.Handler
	runner.Handler = func(req testutil.ContractRequest) testutil.Reply {
		if req.Op == "ingest" {
			// Clean exit, garbage response: the serializability invariant
			// is broken even though nothing crashed.
			return testutil.Reply{RawResponse: "not json {{"}
		}
		return base(req)
	}

	ctrl := NewController(runner, testutil.Config(t.TempDir()), nil)
	v := ctrl.Run(context.Background(), pkg)

	assert.Equal(t, verdict.Killed(verdict.TierDegradation), v.Code)
	assert.Equal(t, verdict.ReasonInvariantFail, v.Reason)
}

func TestSyntheticEvents_Deterministic(t *testing.T) {
	a := syntheticEvents(100)
	b := syntheticEvents(100)
	require.Len(t, a, 100)
	for i := range a {
		assert.JSONEq(t, string(a[i]), string(b[i]))
	}
}

func TestArena_TruncatedDoesNotMutate(t *testing.T) {
	ar := &arena{}
	for _, ev := range syntheticEvents(10) {
		ar.lineage = append(ar.lineage, ev)
	}

	view := ar.truncated(3)
	assert.Len(t, view, 3)
	assert.Len(t, ar.lineage, 10)

	whole := ar.truncated(50)
	assert.Len(t, whole, 10)
}
