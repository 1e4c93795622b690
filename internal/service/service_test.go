package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmantele/vollt-uws/internal/execution"
	"github.com/gmantele/vollt-uws/internal/joblist"
	"github.com/gmantele/vollt-uws/pkg/uws"
)

type fakeBackupManager struct {
	saved    bool
	restored map[string][]uws.JobSnapshot
}

func (b *fakeBackupManager) SaveAll(ctx context.Context) error {
	b.saved = true
	return nil
}
func (b *fakeBackupManager) SaveOwner(ctx context.Context, ownerID string) error { return nil }
func (b *fakeBackupManager) RestoreAll(ctx context.Context) (map[string][]uws.JobSnapshot, error) {
	return b.restored, nil
}

func TestStartRestoresJobsIntoRegisteredList(t *testing.T) {
	backup := &fakeBackupManager{restored: map[string][]uws.JobSnapshot{
		"results": {
			{ID: "job-1", Phase: uws.COMPLETED, CreationTime: time.Now()},
		},
	}}
	svc := New(Config{BackupManager: backup})
	l := joblist.New(joblist.Config{Name: "results", ExecutionMgr: execution.NewUnbounded()})
	svc.RegisterList(l)

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, 1, l.GetNbJobs())

	job, err := l.GetJob("job-1", nil)
	require.NoError(t, err)
	assert.Equal(t, uws.COMPLETED, job.Phase())
}

func TestStopFlushesFinalBackup(t *testing.T) {
	backup := &fakeBackupManager{}
	svc := New(Config{BackupManager: backup})
	l := joblist.New(joblist.Config{Name: "results", ExecutionMgr: execution.NewUnbounded()})
	svc.RegisterList(l)

	require.NoError(t, svc.Stop(context.Background()))
	assert.True(t, backup.saved)
}
