package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/emberforge/furnace/internal/verdict"
)

// ErrNotFound is returned when no outcome matches the requested run ID.
var ErrNotFound = errors.New("outcome not found")

// Outcome is one recorded verdict row.
type Outcome struct {
	Verdict    verdict.Verdict
	RecordedAt time.Time
}

// ListOutcomes returns recorded outcomes, newest first. A non-empty
// artifactID filters to that artifact.
func (s *Store) ListOutcomes(ctx context.Context, artifactID string, limit int) ([]Outcome, error) {
	query := `
		SELECT run_id, artifact_id, verdict, reason, tiers, started_at, elapsed_ns, recorded_at
		FROM outcomes
	`
	args := []any{}
	if artifactID != "" {
		query += " WHERE artifact_id = ?"
		args = append(args, artifactID)
	}
	query += " ORDER BY recorded_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("list outcomes: %w", err)
		}
		outcomes = append(outcomes, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return outcomes, nil
}

// GetOutcome returns the outcome for a single run.
func (s *Store) GetOutcome(ctx context.Context, runID string) (*Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, artifact_id, verdict, reason, tiers, started_at, elapsed_ns, recorded_at
		FROM outcomes WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get outcome: %w", err)
		}
		return nil, ErrNotFound
	}
	o, err := scanOutcome(rows)
	if err != nil {
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	return o, nil
}

func scanOutcome(rows *sql.Rows) (*Outcome, error) {
	var (
		o          Outcome
		code       string
		reason     string
		tiersJSON  string
		startedAt  string
		elapsedNS  int64
		recordedAt string
	)
	if err := rows.Scan(
		&o.Verdict.RunID,
		&o.Verdict.ArtifactID,
		&code,
		&reason,
		&tiersJSON,
		&startedAt,
		&elapsedNS,
		&recordedAt,
	); err != nil {
		return nil, err
	}

	o.Verdict.Code = verdict.Code(code)
	o.Verdict.Reason = verdict.Reason(reason)
	o.Verdict.Elapsed = time.Duration(elapsedNS)

	if err := json.Unmarshal([]byte(tiersJSON), &o.Verdict.Tiers); err != nil {
		return nil, fmt.Errorf("decode tiers: %w", err)
	}
	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("decode started_at: %w", err)
	}
	o.Verdict.StartedAt = started

	recorded, err := time.Parse("2006-01-02T15:04:05.999Z", recordedAt)
	if err != nil {
		// Fall back for drivers that return RFC 3339 directly.
		recorded, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("decode recorded_at: %w", err)
		}
	}
	o.RecordedAt = recorded
	return &o, nil
}
