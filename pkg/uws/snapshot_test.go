package uws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	j, err := NewJob(JobConfig{ID: "job-xyz", RunID: "run-1"})
	require.NoError(t, err)
	require.NoError(t, j.SetPhase(QUEUED, false))
	require.NoError(t, j.SetPhase(EXECUTING, false))
	require.NoError(t, j.AddResult(Result{ID: "r1", Href: "http://x/r1", MimeType: "text/plain", Size: 10}))
	require.NoError(t, j.SetPhase(COMPLETED, false))

	before := j.Snapshot()

	restored, err := RestoreJob(before, nil, nil)
	require.NoError(t, err)
	after := restored.Snapshot()

	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.RunID, after.RunID)
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.Results, after.Results)
	assert.Equal(t, before.ErrorSummary, after.ErrorSummary)
	assert.True(t, before.CreationTime.Equal(after.CreationTime))
	assert.True(t, before.StartTime.Equal(after.StartTime))
	assert.True(t, before.EndTime.Equal(after.EndTime))
	assert.Equal(t, before.ExecutionDuration, after.ExecutionDuration)
	assert.True(t, before.DestructionTime.Equal(after.DestructionTime))
}

func TestRestoreJobForcesTerminalPhase(t *testing.T) {
	snap := JobSnapshot{ID: "job-restored", Phase: ARCHIVED, CreationTime: time.Now()}
	j, err := RestoreJob(snap, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ARCHIVED, j.Phase())
	// A force=false transition out of ARCHIVED is still illegal afterward.
	assert.Error(t, j.SetPhase(EXECUTING, false))
}
