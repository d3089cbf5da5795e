package verdict

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func passingTiers() []TierResult {
	return []TierResult{
		{Tier: TierSelftest, Pass: true, Elapsed: 120 * time.Millisecond},
		{Tier: TierIsolation, Pass: true, Elapsed: 80 * time.Millisecond},
		{Tier: TierDegradation, Pass: true, Elapsed: 400 * time.Millisecond},
		{Tier: TierCompaction, Pass: true, Elapsed: 300 * time.Millisecond},
		{Tier: TierRestart, Pass: true, Elapsed: 950 * time.Millisecond},
	}
}

func TestRenderBlock_Survivor(t *testing.T) {
	v := &Verdict{
		RunID:      "0192f0c1-0000-7000-8000-000000000001",
		ArtifactID: "demo-counter",
		Code:       Survivor,
		Tiers:      passingTiers(),
		Elapsed:    1850 * time.Millisecond,
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "verdict_survivor", []byte(RenderBlock(v)))
}

func TestRenderBlock_KilledAtRestartCycle(t *testing.T) {
	tiers := passingTiers()
	tiers[4] = TierResult{
		Tier:    TierRestart,
		Pass:    false,
		Reason:  ReasonHarnessFailT4,
		Elapsed: 950 * time.Millisecond,
		Detail:  Detail{RestartCycle: 3},
	}

	v := &Verdict{
		RunID:      "0192f0c1-0000-7000-8000-000000000002",
		ArtifactID: "demo-counter",
		Code:       Killed(TierRestart),
		Reason:     ReasonHarnessFailT4,
		Tiers:      tiers,
		Elapsed:    1850 * time.Millisecond,
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "verdict_killed_t4", []byte(RenderBlock(v)))
}

func TestProgressLine(t *testing.T) {
	pass := TierResult{Tier: TierDegradation, Pass: true}
	assert.Equal(t, "T2 DEGRADATION      PASS", ProgressLine(pass))

	fail := TierResult{
		Tier:   TierCompaction,
		Pass:   false,
		Reason: ReasonHarnessFailT3,
		Detail: Detail{ByteBudget: 1000},
	}
	assert.Equal(t, "T3 COMPACTION       FAIL HARNESS_FAIL_T3 (budget=1000)", ProgressLine(fail))
}
