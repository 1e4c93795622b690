// ============================================================================
// UWS Core — Job
// ============================================================================
//
// Package: pkg/uws
// File: job.go
// Purpose: A single unit of asynchronous work: parameters, results, errors,
//          phase, deadlines, observers, and its worker goroutine (§3, §4.3).
//
// Concurrency:
//   One sync.Mutex protects all mutable job state. Observer callbacks are
//   always invoked after the lock is released (§5: "no lock is held across
//   observer callbacks, worker start, or file-manager I/O"), mirroring the
//   teacher's pattern in internal/controller/controller.go of copying state
//   under lock and doing the slow/fallible part (WAL append, worker submit)
//   outside it.
//
// Worker contract (§4.3, §5):
//   1. Work begins only once the job is EXECUTING.
//   2. The worker must observe ctx.Done() and stop cooperatively.
//   3. Normal return -> EXECUTING -> COMPLETED.
//   4. ctx cancelled via Abort() -> EXECUTING -> ABORTED.
//   5. Returned error -> ErrorSummary recorded -> EXECUTING -> ERROR.
//   6. executionDuration elapses -> cancellation raised, ErrorType=FATAL,
//      reason "execution duration exceeded".
//
// ============================================================================

package uws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

var paramFold = cases.Fold()

// WorkFunc is the opaque unit of asynchronous work a Job executes. It must
// return promptly after ctx is cancelled.
type WorkFunc func(ctx context.Context) error

// ListHost is the minimal callback surface a Job needs from its owning
// JobList: a weak backreference populated once, at insertion, never by the
// constructor (per the spec's design notes on cyclic references).
type ListHost interface {
	// RequestDestroy routes a client ACTION=DELETE parameter update to the
	// JobList layer, which alone knows the list's destruction policy.
	RequestDestroy(jobID string)
}

// JobConfig constructs a new Job in PENDING phase.
type JobConfig struct {
	ID          string // generated via uuid if empty
	RunID       string
	Owner       JobOwner
	Parameters  map[string]any
	Controllers map[string]ParameterController
	Work        WorkFunc
	// AbortGrace bounds how long Abort() waits for cooperative shutdown
	// before completing the ABORTED transition anyway (§5, default 1s).
	AbortGrace time.Duration
}

// Job is a single unit of asynchronous work (§3).
type Job struct {
	mu sync.Mutex

	id    string
	runID string
	owner JobOwner

	parameters  map[string]any
	controllers map[string]ParameterController
	// paramNames maps a case-folded parameter name to its canonical
	// controller key, so a client-supplied "EXECUTIONDURATION" or
	// "executionduration" resolves to the same controller and storage slot
	// as "executionDuration" (§4.2: parameter names are compared
	// case-insensitively).
	paramNames map[string]string

	quote             *time.Duration
	executionDuration int64 // seconds, 0 = no limit
	destructionTime   time.Time

	creationTime time.Time
	startTime    time.Time
	endTime      time.Time

	results      []Result
	resultIndex  map[string]struct{}
	errorSummary *ErrorSummary

	phase      *PhaseMachine
	observers  []Observer
	jobInfo    JobInfo
	list       ListHost
	work       WorkFunc
	abortGrace time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	timer  *time.Timer

	log *slog.Logger
}

// NewJob creates a job in PENDING phase, applying defaults and validating
// initial parameters through any configured controllers.
func NewJob(cfg JobConfig) (*Job, error) {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	grace := cfg.AbortGrace
	if grace <= 0 {
		grace = time.Second
	}

	j := &Job{
		id:           id,
		runID:        cfg.RunID,
		owner:        cfg.Owner,
		parameters:   make(map[string]any),
		controllers:  cfg.Controllers,
		creationTime: now,
		resultIndex:  make(map[string]struct{}),
		phase:        NewPhaseMachine(),
		work:         cfg.Work,
		abortGrace:   grace,
		log:          slog.Default().With("jobID", id),
	}
	if j.controllers == nil {
		j.controllers = make(map[string]ParameterController)
	}
	j.paramNames = make(map[string]string, len(j.controllers))
	for name := range j.controllers {
		j.paramNames[paramFold.String(name)] = name
	}

	ctx := Context{CreationTime: now}
	for name, ctrl := range j.controllers {
		if _, supplied := j.lookupSupplied(cfg.Parameters, name); supplied {
			continue
		}
		if def, ok := ctrl.DefaultValue(ctx); ok {
			j.parameters[name] = def
		}
	}
	for name, value := range cfg.Parameters {
		canonical := j.canonicalName(name)
		accepted, err := j.checkParameter(ctx, canonical, value)
		if err != nil {
			return nil, err
		}
		j.parameters[canonical] = accepted
	}
	if dt, ok := j.parameters["destruction"].(time.Time); ok {
		j.destructionTime = dt
	}
	if ed, ok := j.parameters["executionDuration"].(int64); ok {
		j.executionDuration = ed
	}
	return j, nil
}

func (j *Job) checkParameter(ctx Context, name string, value any) (any, error) {
	ctrl, ok := j.controllers[name]
	if !ok {
		return value, nil
	}
	accepted, err := ctrl.Check(ctx, value)
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// canonicalName resolves a client-supplied parameter name to its registered
// controller's declared casing, case-insensitively. Names with no matching
// controller pass through unchanged (free-form/custom parameters).
func (j *Job) canonicalName(name string) string {
	if canonical, ok := j.paramNames[paramFold.String(name)]; ok {
		return canonical
	}
	return name
}

// lookupSupplied reports whether params contains an entry matching name,
// case-insensitively against the registered controller names.
func (j *Job) lookupSupplied(params map[string]any, name string) (any, bool) {
	for k, v := range params {
		if j.canonicalName(k) == name {
			return v, true
		}
	}
	return nil, false
}

func jobLoggerFor(id string) *slog.Logger {
	return slog.Default().With("jobID", id)
}

// ID returns the job's opaque, stable identifier.
func (j *Job) ID() string { return j.id }

// PermissionID satisfies uws.PermissionTarget.
func (j *Job) PermissionID() string { return j.id }

// RunID returns the optional client-supplied label.
func (j *Job) RunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runID
}

// Owner returns the job's owner, or nil if anonymous.
func (j *Job) Owner() JobOwner {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.owner
}

// Phase returns the job's current execution phase.
func (j *Job) Phase() ExecutionPhase {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase.Current()
}

// IsUpdatable reports whether clients may mutate this job's parameters.
func (j *Job) IsUpdatable() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase.IsUpdatable()
}

// IsFinished reports whether the job is in a terminal phase.
func (j *Job) IsFinished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase.IsFinished()
}

// CreationTime, StartTime, EndTime, DestructionTime return the job's
// wall-clock deadlines (zero Time if not yet set).
func (j *Job) CreationTime() time.Time { j.mu.Lock(); defer j.mu.Unlock(); return j.creationTime }
func (j *Job) StartTime() time.Time    { j.mu.Lock(); defer j.mu.Unlock(); return j.startTime }
func (j *Job) EndTime() time.Time      { j.mu.Lock(); defer j.mu.Unlock(); return j.endTime }
func (j *Job) DestructionTime() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.destructionTime
}

// SetDestructionTime is called by the DestructionManager/JobList layer once
// a controller has validated the new deadline.
func (j *Job) SetDestructionTime(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.destructionTime = t
}

// ExecutionDuration returns the job's current execution budget in seconds
// (0 = no limit).
func (j *Job) ExecutionDuration() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.executionDuration
}

// Quote returns the advisory completion estimate, if any.
func (j *Job) Quote() *time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.quote
}

// SetQuote lets an ExecutionManager re-estimate the advisory quote (e.g.
// when a job is queued behind others).
func (j *Job) SetQuote(q time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.quote = &q
}

// Parameter returns the named parameter's stored value, matching name
// against the registered controller names case-insensitively.
func (j *Job) Parameter(name string) (any, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.parameters[j.canonicalName(name)]
	return v, ok
}

// Parameters returns a snapshot copy of all stored parameters.
func (j *Job) Parameters() map[string]any {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]any, len(j.parameters))
	for k, v := range j.parameters {
		out[k] = v
	}
	return out
}

// AttachList sets the job's weak JobList backreference exactly once, at
// insertion. A second, different host is rejected.
func (j *Job) AttachList(host ListHost) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.list != nil && j.list != host {
		return errors.New("uws: job already belongs to a list")
	}
	j.list = host
	return nil
}

// SetParameter validates and stores a client-supplied parameter value. It
// is only permitted while the job is updatable (PENDING), except for the
// reserved ACTION parameter, which is never stored: ACTION=DELETE is routed
// to the owning JobList instead, per the spec's design note that destroy
// handling belongs at the list layer.
func (j *Job) SetParameter(name string, value any) error {
	if name == "ACTION" {
		if s, ok := value.(string); ok && s == "DELETE" {
			j.mu.Lock()
			host := j.list
			id := j.id
			j.mu.Unlock()
			if host != nil {
				host.RequestDestroy(id)
			}
			return nil
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.phase.IsUpdatable() {
		return ErrNotUpdatable
	}
	name = j.canonicalName(name)
	ctrl, hasCtrl := j.controllers[name]
	if hasCtrl {
		_, existed := j.parameters[name]
		if existed && !ctrl.AllowModification() {
			return &ParameterModificationForbiddenError{Name: name}
		}
	}
	accepted, err := j.checkParameter(Context{CreationTime: j.creationTime}, name, value)
	if err != nil {
		return err
	}
	j.parameters[name] = accepted
	switch name {
	case "destruction":
		if t, ok := accepted.(time.Time); ok {
			j.destructionTime = t
		}
	case "executionDuration":
		if ed, ok := accepted.(int64); ok {
			j.executionDuration = ed
		}
	}
	return nil
}

// AddObserver subscribes obs to this job's phase transitions.
func (j *Job) AddObserver(obs Observer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.observers = append(j.observers, obs)
}

// RemoveObserver unsubscribes obs, if present.
func (j *Job) RemoveObserver(obs Observer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, o := range j.observers {
		if o == obs {
			j.observers = append(j.observers[:i], j.observers[i+1:]...)
			return
		}
	}
}

// SetJobInfo attaches the optional opaque descriptor (§4.3).
func (j *Job) SetJobInfo(info JobInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobInfo = info
}

// JobInfo returns the attached descriptor, or nil.
func (j *Job) JobInfo() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jobInfo
}

// Results returns a snapshot copy of the job's results, in append order.
func (j *Job) Results() []Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Result, len(j.results))
	copy(out, j.results)
	return out
}

// AddResult appends a result while the job is EXECUTING (§4.3).
func (j *Job) AddResult(r Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.phase.IsExecuting() {
		return ErrNotUpdatable
	}
	if _, dup := j.resultIndex[r.ID]; dup {
		return ErrResultIDConflict
	}
	j.resultIndex[r.ID] = struct{}{}
	j.results = append(j.results, r)
	return nil
}

// ErrorSummary returns the job's recorded error, if any.
func (j *Job) ErrorSummary() *ErrorSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errorSummary
}

// SetPhase performs a (possibly forced) phase transition and notifies
// observers outside the lock (§4.1, §4.3).
func (j *Job) SetPhase(target ExecutionPhase, force bool) error {
	j.mu.Lock()
	old := j.phase.Current()
	if err := j.phase.Transition(target, force); err != nil {
		j.mu.Unlock()
		return err
	}
	j.applyPhaseEntryLocked(target)
	j.mu.Unlock()

	if old != target {
		j.notifyObservers(old, target)
	}
	return nil
}

// applyPhaseEntryLocked updates startTime/endTime bookkeeping. Caller holds j.mu.
func (j *Job) applyPhaseEntryLocked(target ExecutionPhase) {
	if target == EXECUTING && j.startTime.IsZero() {
		j.startTime = time.Now()
	}
	if target.IsTerminal() && j.endTime.IsZero() {
		j.endTime = time.Now()
	}
}

func (j *Job) notifyObservers(old, new ExecutionPhase) {
	j.mu.Lock()
	observers := make([]Observer, len(j.observers))
	copy(observers, j.observers)
	j.mu.Unlock()

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					j.log.Warn("observer panicked", "recover", r)
				}
			}()
			obs.Update(j, old, new)
		}()
	}
}

// Start admits the job into EXECUTING and spawns its worker. A PENDING job
// passes through QUEUED on the way, since PENDING -> EXECUTING is not a
// legal transition. Callers that want queueing/admission control should go
// through an ExecutionManager instead of calling Start directly — Start
// itself performs no admission check, only the phase transitions and
// worker lifecycle.
func (j *Job) Start() error {
	j.mu.Lock()
	if j.phase.IsFinished() {
		j.mu.Unlock()
		return ErrJobFinished
	}
	wasPending := j.phase.Current() == PENDING
	if wasPending {
		if err := j.phase.Transition(QUEUED, false); err != nil {
			j.mu.Unlock()
			return err
		}
	}
	old := j.phase.Current()
	if err := j.phase.Transition(EXECUTING, false); err != nil {
		j.mu.Unlock()
		return err
	}
	j.applyPhaseEntryLocked(EXECUTING)

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})
	work := j.work
	budgetSec := j.executionDuration
	done := j.done
	j.mu.Unlock()

	if wasPending {
		j.notifyObservers(PENDING, QUEUED)
	}
	if old != EXECUTING {
		j.notifyObservers(old, EXECUTING)
	}

	if budgetSec > 0 {
		j.mu.Lock()
		j.timer = time.AfterFunc(time.Duration(budgetSec)*time.Second, func() {
			j.timeoutExceeded()
		})
		j.mu.Unlock()
	}

	go j.runWorker(ctx, work, done)
	return nil
}

func (j *Job) timeoutExceeded() {
	j.finishOnTimeout()
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// finishOnTimeout marks the pending error as FATAL budget-exhaustion ahead
// of the worker goroutine's own completion handling; runWorker's own error
// path is a no-op once the phase is already terminal.
func (j *Job) finishOnTimeout() {
	j.mu.Lock()
	if j.phase.IsFinished() {
		j.mu.Unlock()
		return
	}
	j.errorSummary = &ErrorSummary{Message: "execution duration exceeded", Type: FATAL}
	old := j.phase.Current()
	_ = j.phase.Transition(ERROR, false)
	j.applyPhaseEntryLocked(ERROR)
	j.mu.Unlock()
	j.notifyObservers(old, ERROR)
}

// runWorker executes the attached WorkFunc and applies the final phase
// transition dictated by its outcome (§4.3 items 3-5).
func (j *Job) runWorker(ctx context.Context, work WorkFunc, done chan struct{}) {
	defer close(done)
	if work == nil {
		j.completeNormally()
		return
	}

	err := work(ctx)

	j.mu.Lock()
	alreadyFinished := j.phase.IsFinished()
	j.mu.Unlock()
	if alreadyFinished {
		// The execution-duration timer or Abort() already committed a
		// terminal phase; the worker's own outcome is superseded.
		return
	}

	switch {
	case err == nil:
		j.completeNormally()
	case errors.Is(err, context.Canceled):
		j.completeAborted()
	default:
		j.completeWithError(err)
	}
}

func (j *Job) completeNormally() {
	j.mu.Lock()
	if j.phase.IsFinished() {
		j.mu.Unlock()
		return
	}
	old := j.phase.Current()
	_ = j.phase.Transition(COMPLETED, false)
	j.applyPhaseEntryLocked(COMPLETED)
	j.stopTimerLocked()
	j.mu.Unlock()
	j.notifyObservers(old, COMPLETED)
}

func (j *Job) completeAborted() {
	j.mu.Lock()
	if j.phase.IsFinished() {
		j.mu.Unlock()
		return
	}
	old := j.phase.Current()
	_ = j.phase.Transition(ABORTED, false)
	j.applyPhaseEntryLocked(ABORTED)
	j.stopTimerLocked()
	j.mu.Unlock()
	j.notifyObservers(old, ABORTED)
}

func (j *Job) completeWithError(err error) {
	j.mu.Lock()
	if j.phase.IsFinished() {
		j.mu.Unlock()
		return
	}
	j.errorSummary = &ErrorSummary{Message: err.Error(), Type: TRANSIENT}
	old := j.phase.Current()
	_ = j.phase.Transition(ERROR, false)
	j.applyPhaseEntryLocked(ERROR)
	j.stopTimerLocked()
	j.mu.Unlock()
	j.notifyObservers(old, ERROR)
}

func (j *Job) stopTimerLocked() {
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
}

// Abort requests cooperative termination (§4.3, §5). It is idempotent on a
// finished job. If the worker does not exit within the abort grace period,
// the ABORTED transition still completes and a warning is logged.
func (j *Job) Abort() error {
	j.mu.Lock()
	if j.phase.IsFinished() {
		j.mu.Unlock()
		return nil
	}
	if !j.phase.IsExecuting() {
		old := j.phase.Current()
		err := j.phase.Transition(ABORTED, false)
		if err != nil {
			j.mu.Unlock()
			return err
		}
		j.applyPhaseEntryLocked(ABORTED)
		j.mu.Unlock()
		j.notifyObservers(old, ABORTED)
		return nil
	}
	cancel := j.cancel
	done := j.done
	grace := j.abortGrace
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(grace):
			j.log.Warn("worker did not exit within abort grace period; marking leaked")
		}
	}
	j.completeAborted()
	return nil
}

// ClearResources releases timers and observers at destruction time. It
// never touches on-disk result/error files — those are owned by the
// FileManager and released by the caller (JobList.destroyJob) before or
// after this call. Job metadata remains readable afterward.
func (j *Job) ClearResources() {
	j.mu.Lock()
	j.stopTimerLocked()
	j.observers = nil
	info := j.jobInfo
	j.mu.Unlock()

	if info != nil {
		if err := info.Destroy(); err != nil {
			j.log.Warn("jobInfo destroy failed", "error", err)
		}
	}
}
