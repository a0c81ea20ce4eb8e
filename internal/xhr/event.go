package xhr

// EventType identifies one of the eight lifecycle events a request fires.
type EventType string

const (
	EventReadyStateChange EventType = "readystatechange"
	EventLoadStart        EventType = "loadstart"
	EventProgress         EventType = "progress"
	EventLoad             EventType = "load"
	EventError            EventType = "error"
	EventAbort            EventType = "abort"
	EventTimeout          EventType = "timeout"
	EventLoadEnd          EventType = "loadend"
)

// EventTypes returns all lifecycle event types in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventReadyStateChange,
		EventLoadStart,
		EventProgress,
		EventLoad,
		EventError,
		EventAbort,
		EventTimeout,
		EventLoadEnd,
	}
}

// Terminal reports whether t is one of load, error, abort or timeout.
// Exactly one terminal event fires per send cycle, always immediately
// followed by loadend.
func (t EventType) Terminal() bool {
	switch t {
	case EventLoad, EventError, EventAbort, EventTimeout:
		return true
	default:
		return false
	}
}

// Event is the snapshot delivered to handlers. Fields reflect the request
// state at the instant of dispatch, not at the time the transition was
// scheduled.
type Event struct {
	Type       EventType
	ReadyState ReadyState
	Status     int
	Async      bool
}

// Handler consumes a dispatched event.
type Handler func(Event)

// Listener wraps a Handler with a stable identity so duplicate
// registrations can be suppressed and individual listeners removed.
type Listener struct {
	fn Handler
}

// NewListener wraps fn in a removable listener handle.
func NewListener(fn Handler) *Listener {
	return &Listener{fn: fn}
}
