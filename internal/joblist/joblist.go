// ============================================================================
// UWS Core — Job List (C6)
// ============================================================================
//
// Package: internal/joblist
// File: joblist.go
// Purpose: A named, owner-indexed collection of jobs, backed by one
//          execution manager and one destruction manager (§4.6).
//
// Grounding:
//   Generalizes the teacher's jobmanager.JobManager (unified map plus
//   secondary indexes under one RWMutex) from a single flat pending/
//   in-flight/completed/dead state machine to the UWS phase automaton, and
//   adds the owner index and destruction-policy routing the spec calls for.
//
// ============================================================================

package joblist

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/gmantele/vollt-uws/internal/contracts"
	"github.com/gmantele/vollt-uws/internal/destruction"
	"github.com/gmantele/vollt-uws/internal/execution"
	"github.com/gmantele/vollt-uws/pkg/uws"
)

// DestructionPolicy governs what happens to a job once its destructionTime
// elapses (§4.6).
type DestructionPolicy int

const (
	// AlwaysDelete removes the job and its files outright.
	AlwaysDelete DestructionPolicy = iota
	// ArchiveOnDate deletes a job destroyed before its destructionTime has
	// elapsed (same as AlwaysDelete); once destructionTime has elapsed it
	// archives instead, aborting first if the job hadn't already finished.
	ArchiveOnDate
	// AlwaysArchive always archives, regardless of destructionTime, aborting
	// first if the job hadn't already finished.
	AlwaysArchive
)

var fold = cases.Fold()

// JobList is a named collection of jobs sharing one execution and
// destruction policy (§4.6).
type JobList struct {
	name   string
	policy DestructionPolicy

	executionMgr execution.Manager
	destructionMgr *destruction.Manager
	fileMgr      contracts.FileManager
	logger       contracts.Logger
	controllers  map[string]uws.ParameterController

	mu         sync.RWMutex
	jobs       map[string]*uws.Job
	jobsByOwner map[string]map[string]*uws.Job
}

// Config collects a JobList's dependencies.
type Config struct {
	Name         string
	Policy       DestructionPolicy
	ExecutionMgr execution.Manager
	FileMgr      contracts.FileManager
	Logger       contracts.Logger
	// Controllers validates/defaults every job created for this list via
	// NewJob (§4.2, §6 per-list job_parameters/executionDuration/
	// destruction config). May be nil for a list with no validated
	// parameters.
	Controllers map[string]uws.ParameterController
}

// New constructs an empty JobList and its private destruction manager.
func New(cfg Config) *JobList {
	l := &JobList{
		name:         cfg.Name,
		policy:       cfg.Policy,
		executionMgr: cfg.ExecutionMgr,
		fileMgr:      cfg.FileMgr,
		logger:       cfg.Logger,
		controllers:  cfg.Controllers,
		jobs:         make(map[string]*uws.Job),
		jobsByOwner:  make(map[string]map[string]*uws.Job),
	}
	l.destructionMgr = destruction.NewManager(l)
	return l
}

// Controllers returns this list's configured parameter controllers, for
// restoring backed-up jobs with the same validation rules they were created
// under (§4.7 restore path).
func (l *JobList) Controllers() map[string]uws.ParameterController {
	return l.controllers
}

// NewJob constructs a job governed by this list's configured parameter
// controllers (§4.2, §6): cfg.Controllers is filled in from the list's own
// Controllers when the caller didn't supply its own. It does not add the
// job to the list — call AddJob or Submit next.
func (l *JobList) NewJob(cfg uws.JobConfig) (*uws.Job, error) {
	if cfg.Controllers == nil {
		cfg.Controllers = l.controllers
	}
	return uws.NewJob(cfg)
}

// Name returns the list's name, as used in job URLs (§4.6).
func (l *JobList) Name() string { return l.name }

// PermissionID satisfies uws.PermissionTarget, so a JobOwner's
// HasWritePermission can be asked about the list itself (§8 permission
// model).
func (l *JobList) PermissionID() string { return l.name }

// AddJob inserts a newly created job, attaches this list as its weak host,
// and schedules its destruction deadline if one is set (§4.3, §4.6). It
// requires the job's owner to have write permission on this list; an
// anonymous (nil-owner) job is never permission-checked.
func (l *JobList) AddJob(job *uws.Job) error {
	if owner := job.Owner(); owner != nil && !owner.HasWritePermission(l) {
		return uws.ErrPermissionDenied
	}
	if err := job.AttachList(l); err != nil {
		return err
	}

	l.mu.Lock()
	if _, exists := l.jobs[job.ID()]; exists {
		l.mu.Unlock()
		return uws.ErrDuplicateJob
	}
	l.jobs[job.ID()] = job
	ownerID := ""
	if owner := job.Owner(); owner != nil {
		ownerID = owner.ID()
		bucket, ok := l.jobsByOwner[ownerID]
		if !ok {
			bucket = make(map[string]*uws.Job)
			l.jobsByOwner[ownerID] = bucket
		}
		bucket[job.ID()] = job
	}
	l.mu.Unlock()

	if dt := job.DestructionTime(); !dt.IsZero() {
		l.destructionMgr.Schedule(job.ID(), dt)
	}
	return nil
}

// Submit adds job to the list and immediately hands it to the configured
// ExecutionManager, the path a fresh client-submitted job takes (as
// opposed to AddJob alone, which Service.Start uses for backup restoration
// without re-triggering execution).
func (l *JobList) Submit(job *uws.Job) error {
	if err := l.AddJob(job); err != nil {
		return err
	}
	if l.executionMgr == nil {
		return nil
	}
	return l.executionMgr.Execute(job)
}

// GetJob returns the job with the given id, enforcing a read-permission
// check against requester when requester is non-nil (§4.6, §8 permission
// model).
func (l *JobList) GetJob(id string, requester uws.JobOwner) (*uws.Job, error) {
	l.mu.RLock()
	job, ok := l.jobs[id]
	l.mu.RUnlock()
	if !ok {
		return nil, uws.ErrJobNotFound
	}
	if requester != nil && !requester.HasReadPermission(job) {
		return nil, uws.ErrPermissionDenied
	}
	return job, nil
}

// GetJobs returns every job visible to requester (jobs it has read
// permission on, or all jobs if requester is nil — an administrative/
// anonymous-list view).
func (l *JobList) GetJobs(requester uws.JobOwner) []*uws.Job {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*uws.Job, 0, len(l.jobs))
	for _, job := range l.jobs {
		if requester == nil || requester.HasReadPermission(job) {
			out = append(out, job)
		}
	}
	return out
}

// SearchJobs returns jobs in the list whose RunID matches query, compared
// case-insensitively via Unicode case folding rather than a naive
// strings.EqualFold byte comparison, since RunID is client-supplied free
// text (§4.6).
func (l *JobList) SearchJobs(runIDQuery string) []*uws.Job {
	needle := fold.String(runIDQuery)

	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*uws.Job
	for _, job := range l.jobs {
		if fold.String(job.RunID()) == needle {
			out = append(out, job)
		}
	}
	return out
}

// GetUsers returns the pseudonym of every distinct owner with at least one
// job in this list (§4.6, surfaces JobOwner.Pseudonym for listing UIs).
func (l *JobList) GetUsers() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]string, len(l.jobsByOwner))
	for ownerID, bucket := range l.jobsByOwner {
		for _, job := range bucket {
			if owner := job.Owner(); owner != nil {
				seen[ownerID] = owner.Pseudonym()
			}
			break
		}
	}
	out := make([]string, 0, len(seen))
	for _, pseudonym := range seen {
		out = append(out, pseudonym)
	}
	return out
}

// GetNbJobs returns the total number of jobs currently in the list.
func (l *JobList) GetNbJobs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.jobs)
}

// Snapshots returns a JobSnapshot of every job currently in the list, for a
// BackupManager to persist (§4.8).
func (l *JobList) Snapshots() []uws.JobSnapshot {
	l.mu.RLock()
	jobs := make([]*uws.Job, 0, len(l.jobs))
	for _, job := range l.jobs {
		jobs = append(jobs, job)
	}
	l.mu.RUnlock()

	out := make([]uws.JobSnapshot, len(jobs))
	for i, job := range jobs {
		out[i] = job.Snapshot()
	}
	return out
}

// Clear removes every job from the list, aborting any still-running ones
// and releasing their files via the configured FileManager (§4.6 shutdown
// / administrative reset).
func (l *JobList) Clear() {
	l.mu.Lock()
	jobs := make([]*uws.Job, 0, len(l.jobs))
	for _, job := range l.jobs {
		jobs = append(jobs, job)
	}
	l.jobs = make(map[string]*uws.Job)
	l.jobsByOwner = make(map[string]map[string]*uws.Job)
	l.mu.Unlock()

	for _, job := range jobs {
		l.destructionMgr.Remove(job.ID())
		l.destroyJob(job)
	}
}

// DestroyJob requests destruction of jobID on behalf of askingUser, enacting
// this list's DestructionPolicy (§4.6). It requires write permission on both
// the list and the job (§8 permission model, Scenario 5: permission denial
// must leave the job's phase unchanged). askingUser == nil skips the
// permission check, for internal/system-initiated destruction (deadline
// expiry, administrative reset).
func (l *JobList) DestroyJob(jobID string, askingUser uws.JobOwner) error {
	l.mu.RLock()
	job, ok := l.jobs[jobID]
	l.mu.RUnlock()
	if !ok {
		return uws.ErrJobNotFound
	}
	if askingUser != nil && (!askingUser.HasWritePermission(l) || !askingUser.HasWritePermission(job)) {
		return uws.ErrPermissionDenied
	}
	l.destructionMgr.Remove(jobID)
	l.applyPolicy(job)
	return nil
}

// RequestDestroy implements uws.ListHost: a client ACTION=DELETE parameter
// update routes here so the list's destruction policy governs the outcome,
// rather than Job deciding for itself (§4.3 design note). The permission
// check for that client request is expected to have already happened at
// whatever binding accepted the parameter update (it authenticated the PUT
// against this same job before calling Job.SetParameter), so this internal
// path carries no askingUser of its own.
func (l *JobList) RequestDestroy(jobID string) {
	_ = l.DestroyJob(jobID, nil)
}

// DestroyExpired implements destruction.Destroyer: called by the
// destruction manager once jobID's destructionTime elapses (§4.5).
func (l *JobList) DestroyExpired(jobID string) {
	l.mu.RLock()
	job, ok := l.jobs[jobID]
	l.mu.RUnlock()
	if !ok {
		return
	}
	l.applyPolicy(job)
}

// applyPolicy enacts this list's DestructionPolicy against job (§4.6). A job
// that has already been archived is destroyed outright on any further
// destroy request, regardless of policy — archiving happens at most once.
func (l *JobList) applyPolicy(job *uws.Job) {
	if job.Phase() == uws.ARCHIVED {
		l.destroyJob(job)
		return
	}

	switch l.policy {
	case AlwaysDelete:
		l.destroyJob(job)
	case ArchiveOnDate:
		// Only archive once destructionTime has actually elapsed; a destroy
		// requested earlier (e.g. a client ACTION=DELETE before the
		// deadline) behaves like ALWAYS_DELETE instead.
		if time.Now().Before(job.DestructionTime()) {
			l.destroyJob(job)
			return
		}
		if !job.IsFinished() {
			_ = job.Abort()
		}
		l.archiveJob(job)
	case AlwaysArchive:
		if !job.IsFinished() {
			_ = job.Abort()
		}
		l.archiveJob(job)
	}
}

func (l *JobList) archiveJob(job *uws.Job) {
	if err := job.SetPhase(uws.ARCHIVED, true); err != nil {
		l.logError(job, "archive", err)
	}
}

func (l *JobList) destroyJob(job *uws.Job) {
	if l.executionMgr != nil {
		_ = l.executionMgr.Remove(job)
	}
	if job.Phase() == uws.EXECUTING {
		_ = job.Abort()
	}
	if l.fileMgr != nil {
		if err := l.fileMgr.DeleteJobFiles(job); err != nil {
			l.logError(job, "delete-files", err)
		}
	}
	job.ClearResources()

	l.mu.Lock()
	delete(l.jobs, job.ID())
	if owner := job.Owner(); owner != nil {
		if bucket, ok := l.jobsByOwner[owner.ID()]; ok {
			delete(bucket, job.ID())
			if len(bucket) == 0 {
				delete(l.jobsByOwner, owner.ID())
			}
		}
	}
	l.mu.Unlock()
}

func (l *JobList) logError(job *uws.Job, event string, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Log(contracts.ERROR, event, fmt.Sprintf("job %s: %v", job.ID(), err), err)
}

// Stop halts the list's destruction manager and aborts every running job,
// without removing them from the list (§7, service shutdown path).
func (l *JobList) Stop() {
	l.destructionMgr.Stop()
	if l.executionMgr != nil {
		l.executionMgr.StopAll()
	}
}

// RefreshDestruction reschedules jobID's destruction deadline, used when a
// client PUT updates the destruction parameter after the job was already
// added to the list (§4.5 "Refresh").
func (l *JobList) RefreshDestruction(jobID string, when time.Time) {
	l.destructionMgr.Schedule(jobID, when)
}
