package xhr

import "errors"

// ErrInvalidState is returned when an operation is attempted in a
// readiness state that does not permit it, including Send on a
// synchronous request that has a timeout set. Transfer outcomes
// (failure, timeout, abort) are never returned as errors; they surface
// only through their terminal events.
var ErrInvalidState = errors.New("invalid state")
