package destruction

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDestroyer struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingDestroyer) DestroyExpired(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, jobID)
}

func (r *recordingDestroyer) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func TestManagerFiresInDeadlineOrder(t *testing.T) {
	d := &recordingDestroyer{}
	m := NewManager(d)
	defer m.Stop()

	now := time.Now()
	m.Schedule("late", now.Add(120*time.Millisecond))
	m.Schedule("early", now.Add(20*time.Millisecond))

	require.Eventually(t, func() bool { return len(d.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, d.snapshot())
}

func TestManagerRemovePreventsFiring(t *testing.T) {
	d := &recordingDestroyer{}
	m := NewManager(d)
	defer m.Stop()

	m.Schedule("job-1", time.Now().Add(30*time.Millisecond))
	m.Remove("job-1")

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, d.snapshot())
	assert.Equal(t, 0, m.Len())
}

func TestManagerRescheduleReplacesDeadline(t *testing.T) {
	d := &recordingDestroyer{}
	m := NewManager(d)
	defer m.Stop()

	m.Schedule("job-1", time.Now().Add(10*time.Millisecond))
	m.Schedule("job-1", time.Now().Add(100*time.Millisecond))

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, d.snapshot(), "earlier deadline must have been replaced, not kept")

	require.Eventually(t, func() bool { return len(d.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestManagerStopPreventsFurtherFiring(t *testing.T) {
	d := &recordingDestroyer{}
	m := NewManager(d)

	m.Schedule("job-1", time.Now().Add(20*time.Millisecond))
	m.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, d.snapshot())
}
