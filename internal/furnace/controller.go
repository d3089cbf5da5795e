// Package furnace implements the torture-test pipeline: the tier controller
// state machine, the degradation/compaction/restart engines, and the
// boundary that converts everything artifact code does into the public
// reason taxonomy.
package furnace

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/config"
	"github.com/emberforge/furnace/internal/sandbox"
	"github.com/emberforge/furnace/internal/verdict"
)

// arena holds the single State/Lineage pair owned by one pipeline run.
// Nothing in it is shared across runs. Lineage is append-only: only the
// degradation engine ever presents a truncated view, and even then the
// stored sequence is untouched.
type arena struct {
	state   json.RawMessage
	lineage []json.RawMessage
}

// truncated returns the last n lineage entries without mutating the arena.
func (ar *arena) truncated(n int) []json.RawMessage {
	if n >= len(ar.lineage) {
		return ar.lineage
	}
	return ar.lineage[len(ar.lineage)-n:]
}

// tierOutcome is the sealed result of one tier: Pass or Fail(reason).
// No artifact exception escapes past this type.
type tierOutcome struct {
	pass     bool
	reason   verdict.Reason
	detail   verdict.Detail
	internal error
}

func failOutcome(flt *fault, detail verdict.Detail) tierOutcome {
	return tierOutcome{reason: flt.reason, detail: detail, internal: flt.internal}
}

// Controller sequences T0→T4 for one artifact, halting at the first
// failure. A single controller instance serves a single run; independent
// runs get independent controllers.
type Controller struct {
	runner sandbox.Runner
	cfg    *config.Config
	logger *slog.Logger

	// Progress, when set, is called once per completed tier, in order.
	Progress func(verdict.TierResult)
}

// NewController creates a controller over the given runner.
func NewController(runner sandbox.Runner, cfg *config.Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{runner: runner, cfg: cfg, logger: logger}
}

// Run executes the full tier sequence for a loaded package and returns the
// terminal verdict. It never returns an error and never panics outward:
// harness faults become INTERNAL_ERROR verdicts, external cancellation
// becomes a terminal kill at the tier in flight.
func (c *Controller) Run(ctx context.Context, pkg *artifact.Package) (v *verdict.Verdict) {
	started := time.Now()
	v = &verdict.Verdict{
		RunID:      uuid.Must(uuid.NewV7()).String(),
		ArtifactID: pkg.ID(),
		StartedAt:  started,
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("harness panic", "artifact", pkg.ID(), "panic", r)
			c.seal(v, verdict.TierResult{
				Tier:   currentTier(v),
				Pass:   false,
				Reason: verdict.ReasonInternalError,
			})
		}
		v.Elapsed = time.Since(started)
	}()

	workspace, err := c.prepareWorkspace(pkg, v.RunID)
	if err != nil {
		c.logger.Error("workspace setup failed", "artifact", pkg.ID(), "error", err)
		c.seal(v, verdict.TierResult{Tier: verdict.TierSelftest, Pass: false, Reason: verdict.ReasonInternalError})
		return v
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			c.logger.Warn("workspace cleanup failed", "path", workspace, "error", err)
		}
	}()

	iv := &invoker{
		runner:    c.runner,
		runtime:   c.cfg.Runtime,
		workspace: workspace,
		pkg:       pkg,
		logger:    c.logger,
	}
	ar := &arena{state: initialState}

	tiers := []struct {
		tier verdict.Tier
		fn   func(context.Context, *arena) tierOutcome
	}{
		{verdict.TierSelftest, func(ctx context.Context, _ *arena) tierOutcome { return c.runSelftest(ctx, iv) }},
		{verdict.TierIsolation, func(ctx context.Context, _ *arena) tierOutcome { return c.runIsolation(ctx, iv) }},
		{verdict.TierDegradation, (&degradationEngine{iv: iv}).run},
		{verdict.TierCompaction, (&compactionEngine{iv: iv}).run},
		{verdict.TierRestart, (&restartEngine{iv: iv}).run},
	}

	for _, step := range tiers {
		tierStart := time.Now()
		out := step.fn(ctx, ar)

		// External cancellation is terminal, never indeterminate: the tier
		// in flight records the kill.
		if ctx.Err() != nil && out.pass {
			out = tierOutcome{reason: verdict.ReasonInternalError, internal: ctx.Err()}
		}
		if out.internal != nil {
			c.logger.Error("harness fault", "tier", step.tier.String(), "error", out.internal)
		}

		result := verdict.TierResult{
			Tier:    step.tier,
			Pass:    out.pass,
			Reason:  out.reason,
			Elapsed: time.Since(tierStart),
			Detail:  out.detail,
		}
		v.Tiers = append(v.Tiers, result)
		if c.Progress != nil {
			c.Progress(result)
		}
		c.logger.Info("tier complete",
			"artifact", pkg.ID(),
			"tier", step.tier.String(),
			"pass", result.Pass,
			"reason", string(result.Reason),
		)

		// Fail-fast: the first failing tier terminates the run. No retries,
		// no partial credit.
		if !out.pass {
			v.Code = verdict.Killed(step.tier)
			v.Reason = out.reason
			return v
		}
	}

	v.Code = verdict.Survivor
	return v
}

// runSelftest executes T0: the artifact's own self-test must exit zero
// inside the sandbox.
func (c *Controller) runSelftest(ctx context.Context, iv *invoker) tierOutcome {
	argv := iv.expandArgv(iv.runtime.Selftest, "")
	if flt := iv.runCommand(ctx, verdict.TierSelftest, argv); flt != nil {
		return failOutcome(flt, verdict.Detail{})
	}
	return tierOutcome{pass: true}
}

// runIsolation executes T1: the implementation module must import cleanly
// in the sandbox with no import-time exception. The host-side structural
// half of this tier already ran in the loader.
func (c *Controller) runIsolation(ctx context.Context, iv *invoker) tierOutcome {
	argv := iv.expandArgv(iv.runtime.ImportCheck, "")
	if flt := iv.runCommand(ctx, verdict.TierIsolation, argv); flt != nil {
		return failOutcome(flt, verdict.Detail{})
	}
	return tierOutcome{pass: true}
}

// prepareWorkspace creates the per-run isolated workspace: the five package
// files plus the io/ and persist/ directories the protocol uses.
func (c *Controller) prepareWorkspace(pkg *artifact.Package, runID string) (string, error) {
	ws := filepath.Join(c.cfg.Workspace, runID)
	for _, dir := range []string{ws, filepath.Join(ws, ioDir), filepath.Join(ws, "persist")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(pkg.Path)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(pkg.Path, e.Name()))
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(ws, e.Name()), data, 0o644); err != nil {
			return "", err
		}
	}
	return ws, nil
}

// seal records a terminal failure on a verdict that could not finish
// normally.
func (c *Controller) seal(v *verdict.Verdict, result verdict.TierResult) {
	v.Tiers = append(v.Tiers, result)
	v.Code = verdict.Killed(result.Tier)
	v.Reason = result.Reason
}

// currentTier returns the tier a panicking run was in: the one after the
// last recorded result.
func currentTier(v *verdict.Verdict) verdict.Tier {
	if n := len(v.Tiers); n > 0 {
		last := v.Tiers[n-1].Tier
		if last < verdict.TierRestart {
			return last + 1
		}
		return last
	}
	return verdict.TierSelftest
}
