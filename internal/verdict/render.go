package verdict

import (
	"fmt"
	"strings"
	"time"
)

// RenderBlock produces the final human-readable verdict block printed after
// the per-tier progress lines. The layout is fixed; golden tests pin it.
func RenderBlock(v *Verdict) string {
	var b strings.Builder

	b.WriteString("================ FURNACE VERDICT ================\n")
	fmt.Fprintf(&b, "artifact : %s\n", v.ArtifactID)
	fmt.Fprintf(&b, "run      : %s\n", v.RunID)
	fmt.Fprintf(&b, "verdict  : %s\n", v.Code)
	if v.Reason != ReasonNone {
		fmt.Fprintf(&b, "reason   : %s\n", v.Reason)
	}

	for _, tr := range v.Tiers {
		status := "PASS"
		if !tr.Pass {
			status = "FAIL"
		}
		line := fmt.Sprintf("  %s %-16s %s  %s", tr.Tier, tr.Label(), status, formatElapsed(tr.Elapsed))
		if detail := tr.Detail.describe(); detail != "" {
			line += "  (" + detail + ")"
		}
		b.WriteString(line + "\n")
	}

	fmt.Fprintf(&b, "elapsed  : %s\n", formatElapsed(v.Elapsed))
	fmt.Fprintf(&b, "exit     : %d\n", v.ExitCode())
	b.WriteString("=================================================\n")
	return b.String()
}

// ProgressLine is the single per-tier line printed while the pipeline runs.
func ProgressLine(tr TierResult) string {
	status := "PASS"
	if !tr.Pass {
		status = "FAIL"
		if tr.Reason != ReasonNone {
			status += " " + string(tr.Reason)
		}
	}
	line := fmt.Sprintf("%s %-16s %s", tr.Tier, tr.Label(), status)
	if detail := tr.Detail.describe(); detail != "" {
		line += " (" + detail + ")"
	}
	return line
}

// Label returns the descriptive name of the tier in this result.
func (tr TierResult) Label() string {
	return tr.Tier.Label()
}

func (d Detail) describe() string {
	switch {
	case d.TruncationLevel > 0:
		return fmt.Sprintf("truncation=%d", d.TruncationLevel)
	case d.ByteBudget > 0:
		return fmt.Sprintf("budget=%d", d.ByteBudget)
	case d.RestartCycle > 0:
		return fmt.Sprintf("cycle=%d", d.RestartCycle)
	default:
		return ""
	}
}

// formatElapsed renders a duration rounded to milliseconds so that verdict
// blocks stay diffable in logs and golden files.
func formatElapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
