package engine

import (
	"sync"

	"github.com/tdewey/xhrsim/internal/model"
)

// subscriberBufferSize is the channel buffer for each trace subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// TraceBroker manages per-run event streaming to subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a run finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for
// the expected run volume.
type TraceBroker struct {
	mu     sync.Mutex
	topics map[string]*traceTopic
}

type traceTopic struct {
	subs   map[int]chan model.TraceEvent
	nextID int
	closed bool
}

// NewTraceBroker creates a new trace broker.
func NewTraceBroker() *TraceBroker {
	return &TraceBroker{
		topics: make(map[string]*traceTopic),
	}
}

// Subscribe returns a channel that receives trace events for the given
// run and an unsubscribe function. If the run has already finished
// (Close was called), the returned channel is immediately closed.
func (b *TraceBroker) Subscribe(runID string) (<-chan model.TraceEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &traceTopic{subs: make(map[int]chan model.TraceEvent)}
		b.topics[runID] = t
	}

	ch := make(chan model.TraceEvent, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a trace event to all subscribers of the given run.
// Events are dropped for subscribers whose buffers are full.
func (b *TraceBroker) Publish(runID string, ev model.TraceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Drop for slow subscribers to avoid blocking dispatch.
		}
	}
}

// Close signals that no more events will be published for the given run.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *TraceBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[runID] = &traceTopic{subs: make(map[int]chan model.TraceEvent), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
