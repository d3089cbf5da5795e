package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTier_String(t *testing.T) {
	assert.Equal(t, "T0", TierSelftest.String())
	assert.Equal(t, "T4", TierRestart.String())
}

func TestHarnessFail_MapsEveryTier(t *testing.T) {
	cases := map[Tier]Reason{
		TierSelftest:    ReasonHarnessFailT0,
		TierIsolation:   ReasonHarnessFailT1,
		TierDegradation: ReasonHarnessFailT2,
		TierCompaction:  ReasonHarnessFailT3,
		TierRestart:     ReasonHarnessFailT4,
	}
	for tier, want := range cases {
		assert.Equal(t, want, HarnessFail(tier), "tier %s", tier)
	}
}

func TestKilled_Code(t *testing.T) {
	assert.Equal(t, Code("KILLED_T2"), Killed(TierDegradation))
	assert.Equal(t, Code("KILLED_T4"), Killed(TierRestart))
}

func TestExitCode_SurvivorIsZero(t *testing.T) {
	v := &Verdict{Code: Survivor}
	assert.Equal(t, 0, v.ExitCode())
	assert.True(t, v.Survived())
}

func TestExitCode_EveryKilledVerdictIsOne(t *testing.T) {
	for tier := TierSelftest; tier <= TierRestart; tier++ {
		v := &Verdict{Code: Killed(tier), Reason: HarnessFail(tier)}
		assert.Equal(t, 1, v.ExitCode(), "verdict %s", v.Code)
		assert.False(t, v.Survived())
	}

	pre := &Verdict{Code: KilledPreflight, Reason: ReasonFormatInvalid}
	assert.Equal(t, 1, pre.ExitCode())
}

func TestDetail_IsZero(t *testing.T) {
	assert.True(t, Detail{}.IsZero())
	assert.False(t, Detail{RestartCycle: 3}.IsZero())
}
