package datasource

import "github.com/sushant-115/infinitygrid/core/span"

// EventKind classifies a Coordinator state change.
type EventKind int

const (
	// EventIssued: a provider fetch was started.
	EventIssued EventKind = iota
	// EventMerged: a response was written into the buffer.
	EventMerged
	// EventReady: a range was applied, from the buffer or from the
	// response to the latest request.
	EventReady
	// EventFailed: a provider call failed or returned an invalid page.
	EventFailed
	// EventCleared: ClearAll ran.
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventIssued:
		return "issued"
	case EventMerged:
		return "merged"
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event describes one state change.
type Event struct {
	Kind      EventKind
	Range     span.Range
	Stale     bool
	CacheHit  bool
	Err       error
	RequestID string
}
