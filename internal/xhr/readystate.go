package xhr

import "strconv"

// ReadyState is the five-valued progress state of a request cycle.
type ReadyState int

const (
	Unsent          ReadyState = 0
	Opened          ReadyState = 1
	HeadersReceived ReadyState = 2
	Loading         ReadyState = 3
	Done            ReadyState = 4
)

func (s ReadyState) String() string {
	switch s {
	case Unsent:
		return "unsent"
	case Opened:
		return "opened"
	case HeadersReceived:
		return "headers-received"
	case Loading:
		return "loading"
	case Done:
		return "done"
	default:
		return "readystate(" + strconv.Itoa(int(s)) + ")"
	}
}

// validTransitions maps each readiness state to the states it may advance
// to within one cycle. Readiness never regresses; the only way back to
// Opened is an explicit Open, which starts a new cycle outside this
// table. Loading may re-enter itself: each transport progress tick after
// the first fires readystatechange again.
var validTransitions = map[ReadyState]map[ReadyState]bool{
	Opened: {
		HeadersReceived: true,
		Done:            true,
	},
	HeadersReceived: {
		Loading: true,
		Done:    true,
	},
	Loading: {
		Loading: true,
		Done:    true,
	},
}

// ValidTransition reports whether readiness may advance from one state to
// another within a cycle.
func ValidTransition(from, to ReadyState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
