package xhr

// registry stores, per event type, the ordered explicit listener sequence
// plus the single keyword slot. The keyword slot holds no position within
// the explicit sequence; where it fires relative to the sequence is
// decided by the active profile at dispatch time, not by assignment order.
type registry struct {
	explicit map[EventType][]*Listener
	keyword  map[EventType]Handler
}

func newRegistry() *registry {
	return &registry{
		explicit: make(map[EventType][]*Listener),
		keyword:  make(map[EventType]Handler),
	}
}

// add appends l to the explicit sequence for t. A listener already
// registered for t is not re-added.
func (r *registry) add(t EventType, l *Listener) {
	if l == nil {
		return
	}
	for _, got := range r.explicit[t] {
		if got == l {
			return
		}
	}
	r.explicit[t] = append(r.explicit[t], l)
}

// remove drops l from the explicit sequence for t, if present.
func (r *registry) remove(t EventType, l *Listener) {
	seq := r.explicit[t]
	for i, got := range seq {
		if got == l {
			r.explicit[t] = append(seq[:i], seq[i+1:]...)
			return
		}
	}
}

// setKeyword replaces the keyword slot for t. A nil handler clears it.
func (r *registry) setKeyword(t EventType, h Handler) {
	if h == nil {
		delete(r.keyword, t)
		return
	}
	r.keyword[t] = h
}

// handlers returns the combined dispatch order for t under profile p.
func (r *registry) handlers(t EventType, p Profile) []Handler {
	seq := r.explicit[t]
	out := make([]Handler, 0, len(seq)+1)
	kw, ok := r.keyword[t]
	if ok && p.keywordFirst() {
		out = append(out, kw)
	}
	for _, l := range seq {
		out = append(out, l.fn)
	}
	if ok && !p.keywordFirst() {
		out = append(out, kw)
	}
	return out
}
