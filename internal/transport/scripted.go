package transport

import (
	"sync"
	"time"
)

// Script describes the simulated server behavior for one target.
type Script struct {
	// Status is the HTTP status code reported on completion. Server error
	// codes still complete the transfer; they are not failures.
	Status int
	// ProgressTicks is the number of progress callbacks delivered before
	// completion in asynchronous mode. Synchronous cycles report none.
	ProgressTicks int
	// TickInterval separates progress ticks and the final outcome.
	TickInterval time.Duration
	// Fail reports a transport-level failure instead of completing.
	Fail bool
	// Stall delays the response. An asynchronous cycle whose deadline is
	// shorter than the stall times out instead of completing.
	Stall time.Duration
}

// Scripted is a Transport that replays configured Scripts per target.
// Targets without a script fail, like an unreachable host. It is safe
// for concurrent use.
type Scripted struct {
	mu      sync.RWMutex
	scripts map[string]Script
}

// NewScripted creates an empty scripted transport.
func NewScripted() *Scripted {
	return &Scripted{scripts: make(map[string]Script)}
}

// Handle registers the script for target, replacing any previous one.
func (s *Scripted) Handle(target string, sc Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[target] = sc
}

// Begin starts one transfer cycle. Synchronous cycles are played to
// completion before Begin returns; asynchronous ones play out on their
// own goroutine.
func (s *Scripted) Begin(target string, async bool, timeout time.Duration, cb Callbacks) *Cycle {
	s.mu.RLock()
	sc, ok := s.scripts[target]
	s.mu.RUnlock()
	if !ok {
		sc = Script{Fail: true}
	}

	c := &Cycle{Target: target, Async: async}
	if async {
		go s.deliver(c, sc, timeout, cb)
	} else {
		s.deliver(c, sc, timeout, cb)
	}
	return c
}

// deliver plays one cycle to its single outcome.
func (s *Scripted) deliver(c *Cycle, sc Script, timeout time.Duration, cb Callbacks) {
	if sc.Fail {
		sleep(sc.TickInterval)
		fire(cb.Failure, c)
		return
	}

	// The deadline applies to asynchronous cycles only; synchronous
	// requests carry none.
	if c.Async && timeout > 0 && sc.Stall > timeout {
		sleep(timeout)
		fire(cb.Timeout, c)
		return
	}
	sleep(sc.Stall)

	if c.Async {
		for i := 0; i < sc.ProgressTicks; i++ {
			sleep(sc.TickInterval)
			fire(cb.Progress, c)
		}
	}
	sleep(sc.TickInterval)
	if cb.Complete != nil {
		cb.Complete(c, sc.Status)
	}
}

func fire(f func(*Cycle), c *Cycle) {
	if f != nil {
		f(c)
	}
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
