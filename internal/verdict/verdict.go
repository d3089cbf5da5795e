// Package verdict defines the terminal classification of one Furnace run:
// the tier identifiers, the public-safe reason taxonomy, per-tier results,
// and the immutable Verdict record appended to the outcome log.
package verdict

import (
	"fmt"
	"time"
)

// Tier identifies one sequential stage of the torture pipeline.
type Tier int

const (
	TierSelftest Tier = iota // T0: artifact's own self-test
	TierIsolation            // T1: structural check + clean import
	TierDegradation          // T2: lineage truncation schedule
	TierCompaction           // T3: byte-budget compaction schedule
	TierRestart              // T4: serialize/teardown/reload cycles
)

// String returns the short tier name (T0..T4).
func (t Tier) String() string {
	if t < TierSelftest || t > TierRestart {
		return fmt.Sprintf("T?(%d)", int(t))
	}
	return fmt.Sprintf("T%d", int(t))
}

// Label returns the descriptive tier name used in progress output.
func (t Tier) Label() string {
	switch t {
	case TierSelftest:
		return "SELFTEST"
	case TierIsolation:
		return "SYNTAX/ISOLATION"
	case TierDegradation:
		return "DEGRADATION"
	case TierCompaction:
		return "COMPACTION"
	case TierRestart:
		return "RESTART"
	default:
		return "UNKNOWN"
	}
}

// Reason categorizes why a run ended the way it did.
//
// The taxonomy is deliberately coarse: verdicts are public, so a reason must
// never reveal exploit-enabling detail. Stack traces, paths, and syscall
// names stay in the internal log only.
type Reason string

const (
	// ReasonNone marks a passing tier or a surviving run.
	ReasonNone Reason = ""

	// ReasonFormatInvalid indicates a malformed package: missing or extra
	// files, or bad archive structure. No sandbox is ever created.
	ReasonFormatInvalid Reason = "FORMAT_INVALID"

	// ReasonManifestInvalid indicates malformed manifest JSON, unresolved
	// operation names, or contract arity mismatch.
	ReasonManifestInvalid Reason = "MANIFEST_INVALID"

	// ReasonHarnessFailT0..T4 indicate the artifact failed the named tier's
	// check: non-zero self-test exit, import-time exception, a raising audit,
	// a blown byte budget, a corrupted reload.
	ReasonHarnessFailT0 Reason = "HARNESS_FAIL_T0"
	ReasonHarnessFailT1 Reason = "HARNESS_FAIL_T1"
	ReasonHarnessFailT2 Reason = "HARNESS_FAIL_T2"
	ReasonHarnessFailT3 Reason = "HARNESS_FAIL_T3"
	ReasonHarnessFailT4 Reason = "HARNESS_FAIL_T4"

	// ReasonResourceExhaustion indicates the sandbox hit its memory or
	// process limits.
	ReasonResourceExhaustion Reason = "RESOURCE_EXHAUSTION"

	// ReasonNontermination indicates the sandbox hit the hard wall-clock
	// timeout and was force-terminated.
	ReasonNontermination Reason = "NONTERMINATION"

	// ReasonDeterminismFail indicates identical inputs produced divergent
	// behavior (detected across restart cycles).
	ReasonDeterminismFail Reason = "DETERMINISM_FAIL"

	// ReasonInvariantFail indicates the artifact violated a contract
	// invariant: audit raised instead of returning OK/HALT, lineage was
	// mutated, or state stopped being serializable.
	ReasonInvariantFail Reason = "INVARIANT_FAIL"

	// ReasonInternalError indicates a fault in the harness itself, not
	// attributable to the artifact.
	ReasonInternalError Reason = "INTERNAL_ERROR"
)

// HarnessFail returns the HARNESS_FAIL_Tn reason for a tier.
func HarnessFail(t Tier) Reason {
	switch t {
	case TierSelftest:
		return ReasonHarnessFailT0
	case TierIsolation:
		return ReasonHarnessFailT1
	case TierDegradation:
		return ReasonHarnessFailT2
	case TierCompaction:
		return ReasonHarnessFailT3
	case TierRestart:
		return ReasonHarnessFailT4
	default:
		return ReasonInternalError
	}
}

// TierResult records the outcome of one completed tier.
type TierResult struct {
	Tier    Tier          `json:"tier"`
	Pass    bool          `json:"pass"`
	Reason  Reason        `json:"reason,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`

	// Detail carries the tier-specific failure point: truncation level (T2),
	// byte budget (T3), or restart cycle number (T4). Zero when passing or
	// not applicable.
	Detail Detail `json:"detail,omitempty"`
}

// Detail is the tier-specific failure point.
type Detail struct {
	TruncationLevel int `json:"truncation_level,omitempty"`
	ByteBudget      int `json:"byte_budget,omitempty"`
	RestartCycle    int `json:"restart_cycle,omitempty"`
}

// IsZero reports whether no detail was recorded.
func (d Detail) IsZero() bool {
	return d == Detail{}
}

// Code is the terminal verdict classification.
type Code string

// Survivor is the sole passing verdict of phase 0.
const Survivor Code = "SURVIVOR_PHASE_0"

// Killed returns the KILLED_<tier> verdict code.
func Killed(t Tier) Code {
	return Code("KILLED_" + t.String())
}

// KilledPreflight is the verdict for packages rejected before T0 (loader
// failures: FORMAT_INVALID / MANIFEST_INVALID). No sandbox was created.
const KilledPreflight Code = "KILLED_PREFLIGHT"

// Verdict is the terminal, immutable record of one pipeline run.
// Written exactly once to the append-only outcome log.
type Verdict struct {
	RunID      string       `json:"run_id"`
	ArtifactID string       `json:"artifact_id"`
	Code       Code         `json:"verdict"`
	Reason     Reason       `json:"reason,omitempty"`
	Tiers      []TierResult `json:"tiers"`
	StartedAt  time.Time    `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Survived reports whether the run passed all tiers.
func (v *Verdict) Survived() bool {
	return v.Code == Survivor
}

// ExitCode maps the verdict to a process exit code:
// 0 for SURVIVOR_PHASE_0, 1 for every KILLED_* outcome.
func (v *Verdict) ExitCode() int {
	if v.Survived() {
		return 0
	}
	return 1
}
