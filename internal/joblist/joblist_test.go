package joblist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmantele/vollt-uws/internal/execution"
	"github.com/gmantele/vollt-uws/pkg/uws"
)

type fakeOwner struct {
	id, pseudonym string
	denyWrite     bool
}

func (o *fakeOwner) ID() string                                     { return o.id }
func (o *fakeOwner) Pseudonym() string                              { return o.pseudonym }
func (o *fakeOwner) HasReadPermission(uws.PermissionTarget) bool    { return true }
func (o *fakeOwner) HasWritePermission(uws.PermissionTarget) bool   { return !o.denyWrite }
func (o *fakeOwner) HasExecutePermission(uws.PermissionTarget) bool { return true }

func TestAddJobIndexesByOwner(t *testing.T) {
	l := New(Config{Name: "results", ExecutionMgr: execution.NewUnbounded()})
	owner := &fakeOwner{id: "u1", pseudonym: "alice"}
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1", Owner: owner})
	require.NoError(t, err)

	require.NoError(t, l.AddJob(j))
	assert.Equal(t, 1, l.GetNbJobs())
	assert.ElementsMatch(t, []string{"alice"}, l.GetUsers())

	got, err := l.GetJob("job-1", owner)
	require.NoError(t, err)
	assert.Equal(t, j, got)
}

func TestSearchJobsIsCaseInsensitive(t *testing.T) {
	l := New(Config{Name: "results", ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1", RunID: "Nightly-Run"})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	found := l.SearchJobs("nightly-run")
	require.Len(t, found, 1)
	assert.Equal(t, "job-1", found[0].ID())
}

func TestRequestDestroyAppliesAlwaysDeletePolicy(t *testing.T) {
	l := New(Config{Name: "results", Policy: AlwaysDelete, ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1"})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	require.NoError(t, j.SetParameter("ACTION", "DELETE"))
	assert.Eventually(t, func() bool { return l.GetNbJobs() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDestroyExpiredArchivesUnderArchivePolicy(t *testing.T) {
	l := New(Config{Name: "results", Policy: AlwaysArchive, ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1"})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	l.DestroyExpired("job-1")
	assert.Equal(t, uws.ARCHIVED, j.Phase())
	assert.Equal(t, 1, l.GetNbJobs(), "archived jobs remain listed, unlike deleted ones")
}

func TestArchiveOnDateDeletesBeforeDeadline(t *testing.T) {
	l := New(Config{Name: "results", Policy: ArchiveOnDate, ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{
		ID:         "job-1",
		Parameters: map[string]any{"destruction": time.Now().Add(time.Hour)},
	})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	require.NoError(t, l.DestroyJob("job-1", nil))
	assert.Equal(t, 0, l.GetNbJobs(), "a destroy request before destructionTime deletes, like ALWAYS_DELETE")
}

func TestArchiveOnDateArchivesAfterDeadline(t *testing.T) {
	l := New(Config{Name: "results", Policy: ArchiveOnDate, ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{
		ID:         "job-1",
		Parameters: map[string]any{"destruction": time.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	// AddJob schedules the already-past deadline, so the destruction manager
	// fires on its own; a second destroy would delete the archived job.
	require.Eventually(t, func() bool { return j.Phase() == uws.ARCHIVED }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uws.ARCHIVED, j.Phase())
	assert.Equal(t, 1, l.GetNbJobs())
}

func TestRedestroyingAnArchivedJobDeletesIt(t *testing.T) {
	l := New(Config{Name: "results", Policy: AlwaysArchive, ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1"})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	l.DestroyExpired("job-1")
	require.Equal(t, uws.ARCHIVED, j.Phase())

	require.NoError(t, l.DestroyJob("job-1", nil))
	assert.Equal(t, 0, l.GetNbJobs(), "a second destroy on an already-archived job falls through to delete")
}

func TestDestroyJobDeniesWriterWithoutPermission(t *testing.T) {
	l := New(Config{Name: "results", Policy: AlwaysDelete, ExecutionMgr: execution.NewUnbounded()})
	owner := &fakeOwner{id: "u1"}
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1", Owner: owner})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	attacker := &fakeOwner{id: "u2", denyWrite: true}
	err = l.DestroyJob("job-1", attacker)
	assert.ErrorIs(t, err, uws.ErrPermissionDenied)
	assert.Equal(t, 1, l.GetNbJobs(), "a denied destroy must leave the job in place")
	assert.NotEqual(t, uws.ARCHIVED, j.Phase())
}

func TestAddJobDeniesOwnerWithoutListWritePermission(t *testing.T) {
	l := New(Config{Name: "results", ExecutionMgr: execution.NewUnbounded()})
	owner := &fakeOwner{id: "u1", denyWrite: true}
	j, err := uws.NewJob(uws.JobConfig{ID: "job-1", Owner: owner})
	require.NoError(t, err)

	err = l.AddJob(j)
	assert.ErrorIs(t, err, uws.ErrPermissionDenied)
	assert.Equal(t, 0, l.GetNbJobs())
}

func TestAddJobSchedulesDestruction(t *testing.T) {
	l := New(Config{Name: "results", Policy: AlwaysDelete, ExecutionMgr: execution.NewUnbounded()})
	j, err := uws.NewJob(uws.JobConfig{
		ID:         "job-1",
		Parameters: map[string]any{"destruction": time.Now().Add(30 * time.Millisecond)},
	})
	require.NoError(t, err)
	require.NoError(t, l.AddJob(j))

	assert.Eventually(t, func() bool { return l.GetNbJobs() == 0 }, time.Second, 5*time.Millisecond)
}
