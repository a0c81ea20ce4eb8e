// Package transport defines the outcome contract a request transfers
// through, plus a scripted implementation that replays configured
// outcomes. Wire-level concerns (sockets, HTTP parsing, TLS) live behind
// the contract and are never modeled here.
package transport

import "time"

// Transport begins transfer cycles and reports them through callbacks.
// Exactly one of Complete, Failure or Timeout fires per cycle. In
// synchronous mode every callback is delivered before Begin returns; in
// asynchronous mode callbacks arrive from a separate goroutine, possibly
// after the consumer has lost interest — consumers compare the Cycle
// handle to discard deliveries from superseded cycles.
type Transport interface {
	Begin(target string, async bool, timeout time.Duration, cb Callbacks) *Cycle
}

// Callbacks receive transfer progress and the final outcome for a cycle.
// Nil entries are skipped.
type Callbacks struct {
	Progress func(*Cycle)
	Complete func(*Cycle, int)
	Failure  func(*Cycle)
	Timeout  func(*Cycle)
}

// Cycle identifies one transfer started by Begin.
type Cycle struct {
	Target string
	Async  bool
}
