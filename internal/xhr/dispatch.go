package xhr

// dispatch fires one event type: the snapshot is captured at this instant
// and delivered to the keyword slot and the explicit listener sequence in
// the profile's interleaving order. Handlers run synchronously on the
// run queue's logical context and never overlap.
func (r *Request) dispatch(t EventType) {
	ev := Event{
		Type:       t,
		ReadyState: r.state,
		Status:     r.status,
		Async:      r.async,
	}
	for _, h := range r.reg.handlers(t, r.profile) {
		r.invoke(t, h, ev)
	}
}

// invoke runs a single handler. A panicking handler is reported through
// the request's logger and does not halt delivery to the remaining
// handlers or to subsequently scheduled event types.
func (r *Request) invoke(t EventType, h Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked",
				"event", string(t),
				"readiness", ev.ReadyState.String(),
				"panic", rec,
			)
		}
	}()
	h(ev)
}
