package uws

// PermissionTarget is anything an owner's capability predicates can be
// asked about: a JobList or a Job. Both *JobList (internal/joblist) and
// *Job satisfy it trivially — the interface exists only to type the
// JobOwner methods without pkg/uws importing internal/joblist.
type PermissionTarget interface {
	// PermissionID returns a stable, loggable identifier for the target
	// (a job id or a job-list name), used only for diagnostics.
	PermissionID() string
}

// JobOwner is an identified principal capable of holding permissions on
// lists and jobs (§3, GLOSSARY). A Job never owns its JobOwner — it only
// holds a reference.
type JobOwner interface {
	ID() string
	// Pseudonym returns an anonymized display name, or "" if none is set.
	Pseudonym() string
	HasReadPermission(target PermissionTarget) bool
	HasWritePermission(target PermissionTarget) bool
	HasExecutePermission(job PermissionTarget) bool
}
