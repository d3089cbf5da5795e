package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/furnace/internal/store"
	"github.com/emberforge/furnace/internal/verdict"
)

func seedOutcomes(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "outcomes.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	entries := []struct {
		run, artifact string
		code          verdict.Code
		reason        verdict.Reason
	}{
		{"run-a", "alpha@1.0.0", verdict.Survivor, verdict.ReasonNone},
		{"run-b", "alpha@1.0.0", verdict.Killed(verdict.TierDegradation), verdict.ReasonInvariantFail},
		{"run-c", "beta@2.0.0", verdict.Survivor, verdict.ReasonNone},
	}
	for _, e := range entries {
		v := &verdict.Verdict{
			RunID:      e.run,
			ArtifactID: e.artifact,
			Code:       e.code,
			Reason:     e.reason,
			StartedAt:  time.Now().UTC(),
			Elapsed:    time.Second,
		}
		require.NoError(t, st.AppendVerdict(ctx, v))
	}
	return dbPath
}

func executeOutcomes(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewOutcomesCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestOutcomesListAll(t *testing.T) {
	dbPath := seedOutcomes(t)

	out, err := executeOutcomes(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "run-c")
	assert.Contains(t, out, "KILLED_T2")
	assert.Contains(t, out, "INVARIANT_FAIL")
}

func TestOutcomesFilterByArtifact(t *testing.T) {
	dbPath := seedOutcomes(t)

	out, err := executeOutcomes(t, "text", "--db", dbPath, "--artifact", "beta@2.0.0")
	require.NoError(t, err)
	assert.Contains(t, out, "run-c")
	assert.NotContains(t, out, "run-a")
	assert.NotContains(t, out, "run-b")
}

func TestOutcomesGetByRunID(t *testing.T) {
	dbPath := seedOutcomes(t)

	out, err := executeOutcomes(t, "text", "--db", dbPath, "run-b")
	require.NoError(t, err)
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "KILLED_T2")
	assert.NotContains(t, out, "run-a")
}

func TestOutcomesGetMissingRunID(t *testing.T) {
	dbPath := seedOutcomes(t)

	out, err := executeOutcomes(t, "text", "--db", dbPath, "run-zzz")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "NOT_FOUND")
}

func TestOutcomesJSONList(t *testing.T) {
	dbPath := seedOutcomes(t)

	out, err := executeOutcomes(t, "json", "--db", dbPath, "--limit", "2")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   []store.Outcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, 2)
}

func TestOutcomesEmptyLog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := executeOutcomes(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no outcomes recorded")
}
