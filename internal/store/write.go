package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emberforge/furnace/internal/verdict"
)

// AppendVerdict appends one terminal verdict to the outcome log.
//
// Called exactly once per pipeline run. Uses ON CONFLICT(run_id) DO NOTHING
// for idempotency: a duplicate append of the same run is silently ignored,
// and an existing row is never mutated.
func (s *Store) AppendVerdict(ctx context.Context, v *verdict.Verdict) error {
	tiersJSON, err := json.Marshal(v.Tiers)
	if err != nil {
		return fmt.Errorf("append verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, artifact_id, verdict, reason, tiers, started_at, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		v.RunID,
		v.ArtifactID,
		string(v.Code),
		string(v.Reason),
		string(tiersJSON),
		v.StartedAt.UTC().Format(time.RFC3339Nano),
		int64(v.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("append verdict: %w", err)
	}
	return nil
}
