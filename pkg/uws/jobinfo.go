package uws

import "io"

// JobInfo is an opaque, optional additional descriptor attached to a job
// (§4.3). The core never interprets its content; it only calls Destroy() at
// job destruction so the descriptor can release whatever it is holding.
type JobInfo interface {
	// XMLFragment renders the descriptor as an XML fragment indented with
	// indentPrefix, for embedding in a job's summary representation.
	XMLFragment(indentPrefix string) (string, error)
	// WriteFullContent streams the descriptor's full content to sink.
	WriteFullContent(sink io.Writer) error
	// Destroy releases any resource the descriptor holds. Called exactly
	// once, when the owning job is destroyed.
	Destroy() error
}
