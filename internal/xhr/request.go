package xhr

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tdewey/xhrsim/internal/transport"
)

// Options configures a Request.
type Options struct {
	// Profile selects the engine quirk variant. Empty means ProfileDefault.
	Profile Profile
	// Logger receives handler panic reports and transition warnings.
	// Nil discards them.
	Logger *slog.Logger
}

// Request models one XMLHttpRequest-style transfer object.
//
// A Request has a single logical owner: Open, Send, Abort, SetTimeout and
// all reads must come from that owner's context. Transport callbacks are
// re-serialized onto the same context internally, so the owner never
// observes a half-applied transition. A Request is reusable; each Open
// begins a new cycle, and listeners persist across cycles.
type Request struct {
	transport transport.Transport
	profile   Profile
	logger    *slog.Logger

	queue runQueue
	reg   *registry

	// mu guards the fields the public getters expose. All mutation
	// happens on the run queue's logical context, which during an async
	// cycle is the transport's callback goroutine; the owner may read
	// ReadyState, Status and Timeout concurrently with that drain.
	mu      sync.Mutex
	state   ReadyState
	status  int
	timeout time.Duration

	async   bool
	method  string
	target  string
	sent    bool
	aborted bool
	cycle   *transport.Cycle
}

// New creates a Request that transfers through t.
func New(t transport.Transport, opts Options) *Request {
	profile := opts.Profile
	if profile == "" {
		profile = ProfileDefault
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Request{
		transport: t,
		profile:   profile,
		logger:    logger,
		reg:       newRegistry(),
	}
}

// ReadyState returns the current readiness.
func (r *Request) ReadyState() ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns the HTTP status of the current cycle. It is zero until
// the cycle reaches Done through a completed transfer; failure, timeout
// and abort leave it zero.
func (r *Request) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Timeout returns the configured transfer deadline, zero when unset.
func (r *Request) Timeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeout
}

// Profile returns the quirk profile the request dispatches under.
func (r *Request) Profile() Profile { return r.profile }

// AddEventListener appends l to the explicit listener sequence for t.
// Registering the same listener twice for the same event type is a no-op.
func (r *Request) AddEventListener(t EventType, l *Listener) {
	r.queue.post(func() { r.reg.add(t, l) })
}

// RemoveEventListener drops l from the explicit sequence for t.
func (r *Request) RemoveEventListener(t EventType, l *Listener) {
	r.queue.post(func() { r.reg.remove(t, l) })
}

// SetHandler assigns the single keyword slot for t, replacing any
// previous handler. A nil handler clears the slot. The slot's dispatch
// position relative to explicit listeners is decided by the profile, not
// by when it was assigned.
func (r *Request) SetHandler(t EventType, h Handler) {
	r.queue.post(func() { r.reg.setKeyword(t, h) })
}

// Open begins a new cycle: readiness moves to Opened, status and the
// abort flag reset, and any outcome still in flight from a previous
// cycle is discarded. Listeners are preserved.
func (r *Request) Open(method, target string, async bool) {
	r.queue.post(func() {
		r.method = method
		r.target = target
		r.async = async
		r.sent = false
		r.aborted = false
		r.cycle = nil
		r.mu.Lock()
		r.status = 0
		prev := r.state
		// A new cycle starts here, outside the in-cycle transition table.
		r.state = Opened
		r.mu.Unlock()
		if prev != Opened {
			r.dispatch(EventReadyStateChange)
		}
	})
}

// SetTimeout sets the transfer deadline for the current cycle. It is
// legal only before Send. Setting a timeout on a synchronous request
// succeeds here but causes Send to reject.
func (r *Request) SetTimeout(d time.Duration) error {
	var err error
	r.queue.run(func() {
		if r.sent && r.state != Done {
			err = fmt.Errorf("timeout is settable only before send: %w", ErrInvalidState)
			return
		}
		r.mu.Lock()
		r.timeout = d
		r.mu.Unlock()
	})
	return err
}

// Send starts the transfer. The body is accepted for interface fidelity;
// the transport contract carries no payload. In synchronous mode Send
// blocks until the cycle reaches Done and all events have fired. In
// asynchronous mode it returns once loadstart has fired and the transport
// cycle is underway.
//
// Send returns ErrInvalidState when readiness is not Opened, when the
// cycle was already sent, or when a timeout is set in synchronous mode.
// All transfer outcomes are reported through events, never through the
// returned error.
func (r *Request) Send(body []byte) error {
	_ = body
	var err error
	r.queue.run(func() {
		if r.state != Opened || r.sent {
			err = fmt.Errorf("send in readiness %s: %w", r.state, ErrInvalidState)
			return
		}
		if !r.async && r.timeout > 0 {
			err = fmt.Errorf("timeout set on a synchronous request: %w", ErrInvalidState)
			return
		}
		r.sent = true
		if r.async {
			r.beginAsync()
		} else {
			r.beginSync()
		}
	})
	return err
}

// Abort cancels the in-flight cycle: readiness jumps to Done with status
// zero and readystatechange, abort and loadend fire in that order. Any
// transport outcome that lands afterwards for this cycle is discarded.
// Abort is a no-op before Send and after Done, and is safe to call from
// inside an event handler.
func (r *Request) Abort() {
	r.queue.post(func() {
		if !r.sent || r.state == Done {
			return
		}
		r.aborted = true
		r.setState(Done)
		r.dispatch(EventAbort)
		r.dispatch(EventLoadEnd)
	})
}

// beginAsync fires the pre-transfer events and hands the cycle to the
// transport. Callbacks are posted back onto the run queue, so they never
// interleave with owner calls or with each other.
func (r *Request) beginAsync() {
	if r.profile.echoesOpenedOnSend() {
		r.dispatch(EventReadyStateChange)
	}
	r.dispatch(EventLoadStart)

	cb := transport.Callbacks{
		Progress: func(c *transport.Cycle) {
			r.queue.post(func() { r.onProgress(c) })
		},
		Complete: func(c *transport.Cycle, status int) {
			r.queue.post(func() { r.onOutcome(c, outcomeCompleted, status) })
		},
		Failure: func(c *transport.Cycle) {
			r.queue.post(func() { r.onOutcome(c, outcomeFailed, 0) })
		},
		Timeout: func(c *transport.Cycle) {
			r.queue.post(func() { r.onOutcome(c, outcomeTimedOut, 0) })
		},
	}
	r.cycle = r.transport.Begin(r.target, true, r.timeout, cb)
}

// beginSync blocks on the transport and then finishes the cycle.
// HeadersReceived and Loading are not observable milestones here: only
// the Done readystatechange and the terminal/loadend pair fire before
// Send returns. loadstart and progress never fire in synchronous mode.
func (r *Request) beginSync() {
	oc, status := outcomeFailed, 0
	cb := transport.Callbacks{
		Complete: func(_ *transport.Cycle, s int) { oc, status = outcomeCompleted, s },
		Failure:  func(*transport.Cycle) { oc = outcomeFailed },
		Timeout:  func(*transport.Cycle) { oc = outcomeTimedOut },
	}
	r.cycle = r.transport.Begin(r.target, false, 0, cb)
	r.finish(oc, status)
}

// onProgress advances readiness for one transport progress tick. The
// first tick moves Opened to HeadersReceived and fires readystatechange
// only; every further tick re-enters Loading, firing readystatechange
// then progress.
func (r *Request) onProgress(c *transport.Cycle) {
	if r.stale(c) {
		return
	}
	if r.state == Opened {
		r.setState(HeadersReceived)
		return
	}
	r.setState(Loading)
	r.dispatch(EventProgress)
}

func (r *Request) onOutcome(c *transport.Cycle, oc outcome, status int) {
	if r.stale(c) {
		return
	}
	r.finish(oc, status)
}

// stale reports whether a transport callback belongs to a superseded or
// aborted cycle and must be discarded.
func (r *Request) stale(c *transport.Cycle) bool {
	return c != r.cycle || r.aborted || r.state == Done
}

// finish resolves the cycle: status is set only for a completed transfer
// (server error codes included), then the Done readystatechange, the
// terminal event and loadend fire.
func (r *Request) finish(oc outcome, status int) {
	if oc == outcomeCompleted {
		r.mu.Lock()
		r.status = status
		r.mu.Unlock()
	}
	r.setState(Done)
	r.dispatch(oc.terminalEvent())
	r.dispatch(EventLoadEnd)
}

// setState advances readiness within the cycle and fires
// readystatechange. Transitions outside the table indicate an internal
// sequencing bug and are dropped with a warning.
func (r *Request) setState(next ReadyState) {
	if !ValidTransition(r.state, next) {
		r.logger.Warn("readiness transition rejected",
			"from", r.state.String(),
			"to", next.String(),
		)
		return
	}
	r.mu.Lock()
	r.state = next
	r.mu.Unlock()
	r.dispatch(EventReadyStateChange)
}

// outcome is the transport-reported completion class for one cycle.
type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeTimedOut
)

// terminalEvent maps a transport outcome to its terminal event. Abort is
// resolved before outcomes are consulted and wins over all of them; a
// completed transfer maps to load regardless of the HTTP status code.
func (o outcome) terminalEvent() EventType {
	switch o {
	case outcomeFailed:
		return EventError
	case outcomeTimedOut:
		return EventTimeout
	default:
		return EventLoad
	}
}
