package mdbatch

// EventType discriminates progress event variants.
type EventType string

// Progress event types. A run emits exactly one EventStart first and
// exactly one EventComplete (or a terminal EventError) last;
// EventFileComplete events may arrive out of input order.
const (
	EventStart        EventType = "start"
	EventProgress     EventType = "progress"
	EventFileComplete EventType = "file-complete"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// ProgressEvent is a tagged variant emitted by the scheduler. Count
// fields are populated on every variant; per-file fields only on
// file-complete events.
type ProgressEvent struct {
	Type       EventType
	TotalFiles int
	Completed  int
	Succeeded  int
	Failed     int

	// Per-file fields (EventFileComplete only).
	InputPath  string
	OutputPath string
	Success    bool

	// Failure cause (EventFileComplete with Success=false, or EventError).
	Err error
}
