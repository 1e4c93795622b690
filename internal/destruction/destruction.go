// ============================================================================
// UWS Core — Destruction Manager (C5)
// ============================================================================
//
// Package: internal/destruction
// File: destruction.go
// Purpose: Reclaims jobs whose destructionTime has elapsed (§4.5).
//
// Grounding and redesign:
//   The teacher's timeoutLoop (internal/controller/controller.go) scans the
//   full job set on a fixed 1s ticker. The spec's REDESIGN FLAGS call that
//   out: a polling scan is wasted work once job counts grow, and it adds up
//   to a full tick of slop on every reclamation. This manager instead keeps
//   one container/heap.Interface min-heap ordered by destructionTime and a
//   single time.Timer armed for the earliest entry; every insert, removal,
//   or reschedule stops that timer and re-arms it (time.AfterFunc) for
//   whatever entry is earliest afterward.
//
// ============================================================================

package destruction

import (
	"container/heap"
	"sync"
	"time"

	"github.com/gmantele/vollt-uws/pkg/uws"
)

// Destroyer is called when a job's destructionTime elapses. JobList
// implements this to apply its destructionPolicy (delete vs archive).
type Destroyer interface {
	DestroyExpired(jobID string)
}

type entry struct {
	jobID string
	when  time.Time
	index int
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Manager is the single scheduler backing one JobList's reclamation (§4.5).
type Manager struct {
	mu      sync.Mutex
	heap    entryHeap
	byJob   map[string]*entry
	timer   *time.Timer
	destroy Destroyer
	stopped bool
}

// NewManager constructs a destruction manager that calls destroy.DestroyExpired
// when each scheduled job's deadline elapses.
func NewManager(destroy Destroyer) *Manager {
	return &Manager{
		byJob:   make(map[string]*entry),
		destroy: destroy,
	}
}

// Schedule (re)registers jobID's destruction deadline, replacing any prior
// entry for the same job (§4.5 "Refresh").
func (m *Manager) Schedule(jobID string, when time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if e, ok := m.byJob[jobID]; ok {
		e.when = when
		heap.Fix(&m.heap, e.index)
	} else {
		e := &entry{jobID: jobID, when: when}
		heap.Push(&m.heap, e)
		m.byJob[jobID] = e
	}
	m.rearmLocked()
}

// Remove withdraws jobID from the schedule (§4.5 "Remove", e.g. the job was
// destroyed by explicit client action before its deadline arrived).
func (m *Manager) Remove(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byJob[jobID]
	if !ok {
		return
	}
	heap.Remove(&m.heap, e.index)
	delete(m.byJob, jobID)
	m.rearmLocked()
}

// Stop halts the scheduler; no further deadlines fire afterward.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// rearmLocked re-arms the single timer for the earliest remaining deadline.
// Caller holds m.mu.
func (m *Manager) rearmLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if len(m.heap) == 0 {
		return
	}
	next := m.heap[0]
	delay := time.Until(next.when)
	if delay < 0 {
		delay = 0
	}
	m.timer = time.AfterFunc(delay, m.fire)
}

// fire pops every entry whose deadline has elapsed (there may be more than
// one if several jobs share a deadline) and invokes the destroyer for each,
// outside the lock, then re-arms for whatever remains.
func (m *Manager) fire() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	var due []string
	now := time.Now()
	for len(m.heap) > 0 && !m.heap[0].when.After(now) {
		e := heap.Pop(&m.heap).(*entry)
		delete(m.byJob, e.jobID)
		due = append(due, e.jobID)
	}
	m.rearmLocked()
	m.mu.Unlock()

	for _, id := range due {
		m.destroy.DestroyExpired(id)
	}
}

// Len reports how many jobs are currently scheduled.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.heap)
}
