package evcore

import (
	"errors"
	"fmt"
)

// ErrDispatcherClosed is returned by Enqueue/EnqueueAuto once Close has
// been called.
var ErrDispatcherClosed = errors.New("evcore: dispatcher is closed")

// ErrInvalidSubscription is returned by AppendListener/PrependListener/
// InsertListener when cb is nil.
var ErrInvalidSubscription = errors.New("evcore: listener callback must not be nil")

// ErrObserverPoolShutdownTimeout is returned by Close when the observer
// pool does not drain within five seconds.
var ErrObserverPoolShutdownTimeout = errors.New("evcore: observer pool shutdown timed out")

// CallbackFailureError wraps a recovered callback panic so that
// errors.As can distinguish it from other Process/Dispatch errors. Per
// the callback-failure error kind, this is never swallowed: it is logged
// via the Error event and then the original panic is re-raised.
type CallbackFailureError struct {
	Recovered any
}

func (e *CallbackFailureError) Error() string {
	return fmt.Sprintf("evcore: callback failure: %v", e.Recovered)
}
