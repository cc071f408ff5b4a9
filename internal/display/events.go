package display

import (
	"time"

	"github.com/jmylchreest/callhud/internal/model"
)

// EventType identifies a display event.
type EventType int

const (
	// EventShown is emitted when a call gets a controller.
	EventShown EventType = iota
	// EventUpdated is emitted when a queued call's visible fields change.
	EventUpdated
	// EventExpired is emitted when a call left the queue through its own expiry.
	EventExpired
	// EventDismissed is emitted when a call was removed before expiring.
	EventDismissed
	// EventAttached is emitted when a call was removed by attaching to it.
	EventAttached
	// EventWaypoint is emitted when a waypoint was requested for a call.
	EventWaypoint
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventShown:
		return "shown"
	case EventUpdated:
		return "updated"
	case EventExpired:
		return "expired"
	case EventDismissed:
		return "dismissed"
	case EventAttached:
		return "attached"
	case EventWaypoint:
		return "waypoint"
	default:
		return "unknown"
	}
}

// Closed reports whether the event ends the call's time on screen.
func (t EventType) Closed() bool {
	return t == EventExpired || t == EventDismissed || t == EventAttached
}

// Event describes a change to a displayed call.
type Event struct {
	Type EventType
	Call model.Call
	At   time.Time
}

// Sink consumes display events. Sinks are called sequentially from Flush.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// HandleEvent calls f(ev).
func (f SinkFunc) HandleEvent(ev Event) {
	f(ev)
}

// ActionHandler performs the HUD's outward actions. Implementations are
// external collaborators; errors are logged and never block removal.
type ActionHandler interface {
	Attach(call model.Call) error
	Waypoint(call model.Call) error
}
