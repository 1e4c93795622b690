package uws

// Observer is a pure subscriber to a job's phase transitions (§4.3). A job
// owns its observer set only as a weak link: observers subscribe to a job
// but the job never owns them, and the BackupManager must skip observers
// entirely when serializing a job.
type Observer interface {
	// Update is invoked once per phase transition, after the job has
	// already committed to newPhase and outside any lock held on the job.
	// A panic or error inside Update must not affect the job's state; Job
	// recovers from observer panics (see job.go notifyObservers).
	Update(job *Job, oldPhase, newPhase ExecutionPhase)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(job *Job, oldPhase, newPhase ExecutionPhase)

func (f ObserverFunc) Update(job *Job, oldPhase, newPhase ExecutionPhase) {
	f(job, oldPhase, newPhase)
}
