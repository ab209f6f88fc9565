package launch

import "time"

// EventKind classifies sequence notifications.
type EventKind string

const (
	EventAccepted EventKind = "accepted"
	EventPhase    EventKind = "phase"
	EventFault    EventKind = "fault"
	EventComplete EventKind = "complete"
)

// Event is published as a sequence progresses.
type Event struct {
	Kind  EventKind
	Phase string        // set for phase and fault events
	Power int           // captured power, percent
	Hold  time.Duration // hold after the phase action
	Err   error         // set for fault events
}

// Observer receives sequence events. Accepted, spin down fault and complete
// events are delivered with the coordinator's gate held, so an Observer
// must not block or call back into Guard, IfIdle or Remaining.
type Observer interface {
	LaunchEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) LaunchEvent(e Event) { f(e) }

// Recorder receives launch metrics. The same locking rule as Observer applies.
type Recorder interface {
	LaunchRequested(result string)
	LaunchFault(phase string)
	LaunchRunning(running bool)
	LaunchFinished(d time.Duration, faulted bool)
}

type nopRecorder struct{}

func (nopRecorder) LaunchRequested(string)             {}
func (nopRecorder) LaunchFault(string)                 {}
func (nopRecorder) LaunchRunning(bool)                 {}
func (nopRecorder) LaunchFinished(time.Duration, bool) {}
