package xhr

import "sync"

// runQueue serializes all request mutation and event dispatch onto one
// logical execution context. Whichever goroutine makes the queue
// non-empty drains it to completion; jobs posted while a drain is in
// progress, including re-entrant posts from inside event handlers, run
// after the current job finishes, on the draining goroutine. Handler
// execution therefore never overlaps.
type runQueue struct {
	mu   sync.Mutex
	busy bool
	jobs []func()
}

// post enqueues fn. When the queue is idle the calling goroutine drains
// it inline before returning; otherwise fn runs later on the goroutine
// currently draining.
func (q *runQueue) post(fn func()) {
	q.mu.Lock()
	q.jobs = append(q.jobs, fn)
	if q.busy {
		q.mu.Unlock()
		return
	}
	q.busy = true
	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		job()
		q.mu.Lock()
	}
	q.busy = false
	q.mu.Unlock()
}

// run posts fn and waits for it to execute. In the common case the queue
// is idle and the calling goroutine drains it inline, so run never
// blocks. Must not be called from inside an event handler: a handler
// runs on the draining goroutine, and waiting there would deadlock.
// Handlers use post-style operations such as Abort instead.
func (q *runQueue) run(fn func()) {
	done := make(chan struct{})
	q.post(func() {
		defer close(done)
		fn()
	})
	<-done
}
