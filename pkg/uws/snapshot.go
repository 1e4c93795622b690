package uws

import "time"

// JobSnapshot is the round-trip DTO a BackupManager serializes and restores
// (§4.3 restoration form, §7 round-trip testable property). It carries
// every public attribute of a Job except its observer set and its JobInfo
// descriptor — observers are pure subscribers and must never be persisted
// (§9 design notes).
type JobSnapshot struct {
	ID                string
	RunID             string
	OwnerID           string
	OwnerPseudonym    string
	Parameters        map[string]any
	Quote             *time.Duration
	ExecutionDuration int64
	DestructionTime   time.Time
	CreationTime      time.Time
	StartTime         time.Time
	EndTime           time.Time
	Phase             ExecutionPhase
	Results           []Result
	ErrorSummary      *ErrorSummary
}

// Snapshot serializes the job's current public state for persistence.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	params := make(map[string]any, len(j.parameters))
	for k, v := range j.parameters {
		params[k] = v
	}
	results := make([]Result, len(j.results))
	copy(results, j.results)

	snap := JobSnapshot{
		ID:                j.id,
		RunID:             j.runID,
		Parameters:        params,
		Quote:             j.quote,
		ExecutionDuration: j.executionDuration,
		DestructionTime:   j.destructionTime,
		CreationTime:      j.creationTime,
		StartTime:         j.startTime,
		EndTime:           j.endTime,
		Phase:             j.phase.Current(),
		Results:           results,
		ErrorSummary:      j.errorSummary,
	}
	if j.owner != nil {
		snap.OwnerID = j.owner.ID()
		snap.OwnerPseudonym = j.owner.Pseudonym()
	}
	return snap
}

// RestoreJob reconstructs a Job from a snapshot, force-restoring its phase
// so a terminal or otherwise now-illegal-to-re-enter phase is preserved
// exactly as recorded (§4.7). The result has no attached worker and no
// observers; callers re-attach whichever apply (e.g. a JobList wiring
// RequestDestroy via AttachList).
func RestoreJob(snap JobSnapshot, owner JobOwner, controllers map[string]ParameterController) (*Job, error) {
	j := &Job{
		id:           snap.ID,
		runID:        snap.RunID,
		owner:        owner,
		parameters:   snap.Parameters,
		controllers:  controllers,
		quote:        snap.Quote,
		destructionTime: snap.DestructionTime,
		creationTime: snap.CreationTime,
		startTime:    snap.StartTime,
		endTime:      snap.EndTime,
		phase:        NewPhaseMachine(),
		resultIndex:  make(map[string]struct{}, len(snap.Results)),
		results:      append([]Result(nil), snap.Results...),
		errorSummary: snap.ErrorSummary,
		executionDuration: snap.ExecutionDuration,
		abortGrace:   time.Second,
		log:          jobLoggerFor(snap.ID),
	}
	if j.parameters == nil {
		j.parameters = make(map[string]any)
	}
	if j.controllers == nil {
		j.controllers = make(map[string]ParameterController)
	}
	j.paramNames = make(map[string]string, len(j.controllers))
	for name := range j.controllers {
		j.paramNames[paramFold.String(name)] = name
	}
	for _, r := range j.results {
		j.resultIndex[r.ID] = struct{}{}
	}
	if err := j.phase.Transition(snap.Phase, true); err != nil {
		return nil, err
	}
	return j, nil
}
