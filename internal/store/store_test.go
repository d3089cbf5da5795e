package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberforge/furnace/internal/verdict"
)

func testVerdict(runID, artifactID string, code verdict.Code) *verdict.Verdict {
	return &verdict.Verdict{
		RunID:      runID,
		ArtifactID: artifactID,
		Code:       code,
		Tiers: []verdict.TierResult{
			{Tier: verdict.TierSelftest, Pass: true, Elapsed: 120 * time.Millisecond},
		},
		StartedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Elapsed:   2 * time.Second,
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestAppendVerdict_RoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	v := testVerdict("run-1", "demo-counter@1.0.0", verdict.Survivor)
	v.Tiers = append(v.Tiers, verdict.TierResult{
		Tier:    verdict.TierRestart,
		Pass:    false,
		Reason:  verdict.ReasonHarnessFailT4,
		Detail:  verdict.Detail{RestartCycle: 3},
		Elapsed: 900 * time.Millisecond,
	})

	if err := s.AppendVerdict(ctx, v); err != nil {
		t.Fatalf("AppendVerdict() failed: %v", err)
	}

	got, err := s.GetOutcome(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetOutcome() failed: %v", err)
	}
	if got.Verdict.Code != verdict.Survivor {
		t.Errorf("verdict = %q, want %q", got.Verdict.Code, verdict.Survivor)
	}
	if got.Verdict.ArtifactID != "demo-counter@1.0.0" {
		t.Errorf("artifact_id = %q", got.Verdict.ArtifactID)
	}
	if len(got.Verdict.Tiers) != 2 {
		t.Fatalf("tiers = %d, want 2", len(got.Verdict.Tiers))
	}
	if got.Verdict.Tiers[1].Detail.RestartCycle != 3 {
		t.Errorf("restart cycle = %d, want 3", got.Verdict.Tiers[1].Detail.RestartCycle)
	}
	if !got.Verdict.StartedAt.Equal(v.StartedAt) {
		t.Errorf("started_at = %v, want %v", got.Verdict.StartedAt, v.StartedAt)
	}
}

func TestAppendVerdict_ExactlyOnce(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	v := testVerdict("run-dup", "demo", verdict.Survivor)

	// A duplicate append must be a silent no-op, never an update.
	if err := s.AppendVerdict(ctx, v); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	mutated := testVerdict("run-dup", "demo", verdict.Killed(verdict.TierSelftest))
	if err := s.AppendVerdict(ctx, mutated); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	n, err := s.count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("outcome count = %d, want 1", n)
	}

	got, err := s.GetOutcome(ctx, "run-dup")
	if err != nil {
		t.Fatalf("GetOutcome() failed: %v", err)
	}
	if got.Verdict.Code != verdict.Survivor {
		t.Errorf("original row was mutated: verdict = %q", got.Verdict.Code)
	}
}

func TestGetOutcome_NotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := s.GetOutcome(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListOutcomes_FilterAndLimit(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, spec := range []struct {
		run, art string
	}{
		{"r1", "alpha"}, {"r2", "alpha"}, {"r3", "beta"},
	} {
		if err := s.AppendVerdict(ctx, testVerdict(spec.run, spec.art, verdict.Survivor)); err != nil {
			t.Fatalf("append %s: %v", spec.run, err)
		}
	}

	all, err := s.ListOutcomes(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListOutcomes() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all outcomes = %d, want 3", len(all))
	}

	alpha, err := s.ListOutcomes(ctx, "alpha", 0)
	if err != nil {
		t.Fatalf("ListOutcomes(alpha) failed: %v", err)
	}
	if len(alpha) != 2 {
		t.Errorf("alpha outcomes = %d, want 2", len(alpha))
	}

	limited, err := s.ListOutcomes(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListOutcomes(limit) failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited outcomes = %d, want 1", len(limited))
	}
}
