package model

import "time"

// EventKind identifies the type of a pipeline event.
type EventKind string

const (
	EventProbe            EventKind = "probe"
	EventFrontSelected    EventKind = "front-selected"
	EventSourceFetched    EventKind = "source-fetched"
	EventSourceFallback   EventKind = "source-fallback"
	EventReleaseAttempt   EventKind = "release-attempt"
	EventReleaseSkipped   EventKind = "release-skipped"
	EventReleaseFailed    EventKind = "release-failed"
	EventDownloadStart    EventKind = "download-start"
	EventDownloadProgress EventKind = "download-progress"
	EventDownloadDone     EventKind = "download-done"
	EventInstalled        EventKind = "installed"
	EventDone             EventKind = "done"
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	return string(k)
}

// Event is emitted by the pipeline worker for the presentation layer.
// Only the fields meaningful for Kind are set.
type Event struct {
	Kind      EventKind
	Time      time.Time
	SessionID string
	Message   string

	Front *Front
	URL   string
	Tag   string

	// Bytes and Total describe transfer progress. Total is -1 when the
	// server did not announce a length.
	Bytes int64
	Total int64

	Err error
}
