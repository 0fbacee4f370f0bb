package event

import "time"

// Event types published by the collector.
const (
	TypeCollectorStarted = "collector.started"
	TypeCollectorStopped = "collector.stopped"
	TypePassCompleted    = "pass.completed"
	TypeBodyCollected    = "body.collected"
	TypeBodyConflict     = "body.conflict"
	TypeBodyFailed       = "body.failed"
)

// Event is implemented by every event.
type Event interface {
	// EventType returns "category.action", e.g. "body.collected".
	EventType() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, at time.Time) baseEvent {
	return baseEvent{eventType: eventType, timestamp: at}
}

// CollectorStartedEvent is emitted when a collector enters Running.
type CollectorStartedEvent struct {
	baseEvent
	Owner       string
	CheckInDirs []string
	CentralDir  string
}

// NewCollectorStartedEvent creates a CollectorStartedEvent.
func NewCollectorStartedEvent(at time.Time, owner string, checkInDirs []string, centralDir string) CollectorStartedEvent {
	return CollectorStartedEvent{
		baseEvent:   newBaseEvent(TypeCollectorStarted, at),
		Owner:       owner,
		CheckInDirs: checkInDirs,
		CentralDir:  centralDir,
	}
}

// CollectorStoppedEvent is emitted once the last pass has drained.
type CollectorStoppedEvent struct {
	baseEvent
	Owner  string
	Passes int
}

// NewCollectorStoppedEvent creates a CollectorStoppedEvent.
func NewCollectorStoppedEvent(at time.Time, owner string, passes int) CollectorStoppedEvent {
	return CollectorStoppedEvent{
		baseEvent: newBaseEvent(TypeCollectorStopped, at),
		Owner:     owner,
		Passes:    passes,
	}
}

// PassCompletedEvent summarises one collection pass.
type PassCompletedEvent struct {
	baseEvent
	Pass      int
	Eligible  int
	Collected int
	Conflicts int
	Failures  int
	Duration  time.Duration
}

// NewPassCompletedEvent creates a PassCompletedEvent.
func NewPassCompletedEvent(at time.Time, pass, eligible, collected, conflicts, failures int, d time.Duration) PassCompletedEvent {
	return PassCompletedEvent{
		baseEvent: newBaseEvent(TypePassCompleted, at),
		Pass:      pass,
		Eligible:  eligible,
		Collected: collected,
		Conflicts: conflicts,
		Failures:  failures,
		Duration:  d,
	}
}

// BodyEvent reports the outcome of collecting one message body. Err is set
// for body.conflict and body.failed.
type BodyEvent struct {
	baseEvent
	Dir  string // check-in directory the body was found in
	File string // file name at enumeration time
	Kind string
	Err  error
}

// NewBodyCollectedEvent creates a body.collected event.
func NewBodyCollectedEvent(at time.Time, dir, file, kind string) BodyEvent {
	return BodyEvent{baseEvent: newBaseEvent(TypeBodyCollected, at), Dir: dir, File: file, Kind: kind}
}

// NewBodyConflictEvent creates a body.conflict event.
func NewBodyConflictEvent(at time.Time, dir, file, kind string, err error) BodyEvent {
	return BodyEvent{baseEvent: newBaseEvent(TypeBodyConflict, at), Dir: dir, File: file, Kind: kind, Err: err}
}

// NewBodyFailedEvent creates a body.failed event.
func NewBodyFailedEvent(at time.Time, dir, file, kind string, err error) BodyEvent {
	return BodyEvent{baseEvent: newBaseEvent(TypeBodyFailed, at), Dir: dir, File: file, Kind: kind, Err: err}
}
