// ============================================================================
// UWS Core — Execution Manager (C4)
// ============================================================================
//
// Package: internal/execution
// File: execution.go
// Purpose: Admits PENDING/QUEUED jobs into EXECUTING, either immediately
//          (Unbounded) or behind a fixed-size FIFO gate (Bounded), per §4.4.
//
// Grounding:
//   The Bounded variant generalizes the teacher's worker.Pool: instead of a
//   fixed goroutine count pulling off a shared task channel, a fixed
//   "admission budget" governs how many *uws.Job may be EXECUTING at once,
//   and each job still drives its own goroutine via Job.Start (job.go). The
//   queue is a plain FIFO slice rather than a channel because jobs must be
//   removable out of order (a client may cancel a QUEUED job), which a
//   channel cannot do.
//
// ============================================================================

package execution

import (
	"sync"

	"github.com/gmantele/vollt-uws/pkg/uws"
)

// Manager admits jobs for execution and tracks admission capacity (§4.4).
type Manager interface {
	// Execute requests that job begin running. An Unbounded manager starts
	// it immediately; a Bounded manager starts it immediately if capacity
	// allows, otherwise transitions it to QUEUED and starts it later.
	Execute(job *uws.Job) error
	// Remove withdraws a not-yet-started job from the queue, if present.
	Remove(job *uws.Job) error
	// Refresh re-evaluates the queue, starting as many head jobs as current
	// capacity allows. Called after any job finishes or capacity changes.
	Refresh()
	// RunningCount and QueuedCount report current admission state.
	RunningCount() int
	QueuedCount() int
	// StopAll aborts every running job and drains the queue, returning both
	// running and queued jobs to PENDING so they can be re-submitted after a
	// restart (§4.4, §5 restart semantics).
	StopAll()
}

// Unbounded starts every job immediately, with no admission limit (§4.4
// "default execution manager").
type Unbounded struct {
	mu      sync.Mutex
	running map[string]*uws.Job
}

// NewUnbounded constructs an execution manager with no concurrency limit.
func NewUnbounded() *Unbounded {
	return &Unbounded{running: make(map[string]*uws.Job)}
}

func (m *Unbounded) Execute(job *uws.Job) error {
	if err := job.SetPhase(uws.QUEUED, false); err != nil {
		return err
	}

	m.mu.Lock()
	m.running[job.ID()] = job
	m.mu.Unlock()

	obs := uws.ObserverFunc(func(j *uws.Job, _, newPhase uws.ExecutionPhase) {
		if newPhase.IsTerminal() {
			m.mu.Lock()
			delete(m.running, j.ID())
			m.mu.Unlock()
		}
	})
	job.AddObserver(obs)
	return job.Start()
}

func (m *Unbounded) Remove(job *uws.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, job.ID())
	return nil
}

func (m *Unbounded) Refresh() {}

func (m *Unbounded) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

func (m *Unbounded) QueuedCount() int { return 0 }

// StopAll aborts every running job and returns it to PENDING, so whatever
// is left in the list can be Execute()d again (§4.4, §5 restart semantics).
func (m *Unbounded) StopAll() {
	m.mu.Lock()
	jobs := make([]*uws.Job, 0, len(m.running))
	for _, j := range m.running {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()
	for _, j := range jobs {
		_ = j.Abort()
		_ = j.SetPhase(uws.PENDING, true)
	}
}

// Bounded admits at most MaxRunning jobs concurrently; any excess is held
// QUEUED in FIFO order until a running slot frees up (§4.4).
type Bounded struct {
	maxRunning int

	mu      sync.Mutex
	running map[string]*uws.Job
	queue   []*uws.Job
}

// NewBounded constructs a FIFO-admission execution manager. maxRunning <= 0
// is treated as 1, since a bounded manager with zero capacity can never
// make progress.
func NewBounded(maxRunning int) *Bounded {
	if maxRunning <= 0 {
		maxRunning = 1
	}
	return &Bounded{
		maxRunning: maxRunning,
		running:    make(map[string]*uws.Job),
	}
}

// Execute enqueues job, then immediately tries to admit as many queued jobs
// as capacity allows (§4.4: a newly submitted job may start right away if a
// slot is free, or may jump straight past an empty queue).
func (m *Bounded) Execute(job *uws.Job) error {
	if err := job.SetPhase(uws.QUEUED, false); err != nil {
		return err
	}

	m.mu.Lock()
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	obs := uws.ObserverFunc(func(j *uws.Job, _, newPhase uws.ExecutionPhase) {
		if newPhase.IsTerminal() {
			m.mu.Lock()
			delete(m.running, j.ID())
			m.mu.Unlock()
			m.Refresh()
		}
	})
	job.AddObserver(obs)

	m.Refresh()
	return nil
}

// Remove withdraws job from the queue if it has not yet been admitted. It
// is a no-op if job is already running or already gone.
func (m *Bounded) Remove(job *uws.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, queued := range m.queue {
		if queued.ID() == job.ID() {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

// Refresh admits queue-head jobs until RunningCount reaches maxRunning or
// the queue is empty.
func (m *Bounded) Refresh() {
	for {
		m.mu.Lock()
		if len(m.running) >= m.maxRunning || len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.running[next.ID()] = next
		m.mu.Unlock()

		if err := next.Start(); err != nil {
			m.mu.Lock()
			delete(m.running, next.ID())
			m.mu.Unlock()
		}
	}
}

func (m *Bounded) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

func (m *Bounded) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// StopAll aborts every running job and returns every running and queued job
// to PENDING without ever starting the queued ones, so whatever is left in
// the list can be Execute()d again (§4.4, §5 restart semantics: "jobs
// remaining in the list can be execute()d again").
func (m *Bounded) StopAll() {
	m.mu.Lock()
	running := make([]*uws.Job, 0, len(m.running))
	for _, j := range m.running {
		running = append(running, j)
	}
	queued := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, j := range running {
		_ = j.Abort()
		_ = j.SetPhase(uws.PENDING, true)
	}
	for _, j := range queued {
		_ = j.SetPhase(uws.PENDING, true)
	}
}
