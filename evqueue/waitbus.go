package evqueue

import (
	"context"
	"sync"
	"time"
)

// WaitBus is a condition gate for consumer wait/notify, with reentrant
// suppression of notifications for batched enqueues. It is implemented as
// a broadcast channel that gets closed and replaced on every wake, rather
// than sync.Cond, so WaitFor's timeout composes with context.Context
// without a background goroutine outliving the caller's deadline.
type WaitBus struct {
	mu               sync.Mutex
	wake             chan struct{}
	notEmpty         func() bool
	suppressionDepth int
}

// newWaitBus constructs a WaitBus whose emptiness predicate is notEmpty.
func newWaitBus(notEmpty func() bool) *WaitBus {
	return &WaitBus{
		wake:     make(chan struct{}),
		notEmpty: notEmpty,
	}
}

// NotifyOne wakes any goroutine blocked in Wait/WaitFor, unless
// suppression is currently active.
func (w *WaitBus) NotifyOne() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.suppressionDepth > 0 {
		return
	}
	w.broadcastLocked()
}

func (w *WaitBus) broadcastLocked() {
	close(w.wake)
	w.wake = make(chan struct{})
}

// Wait blocks until the emptiness predicate reports non-empty, or ctx is
// done. It re-checks the predicate after every wake, per standard
// condition-variable discipline (guards against spurious/targeted wakes
// racing a second consumer that already drained the queue).
func (w *WaitBus) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		if w.notEmpty() {
			w.mu.Unlock()
			return nil
		}
		ch := w.wake
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitFor blocks until the queue is non-empty or d elapses. It returns
// true iff satisfied by a real wake within the timeout, false on timeout
// with no side effect.
func (w *WaitBus) WaitFor(d time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return w.Wait(ctx) == nil
}

// EnterSuppression increases the suppression depth. While depth > 0,
// NotifyOne is a no-op. Reentrant: nested Enter/Leave pairs compose.
func (w *WaitBus) EnterSuppression() {
	w.mu.Lock()
	w.suppressionDepth++
	w.mu.Unlock()
}

// LeaveSuppression decreases the suppression depth. When it reaches zero,
// a single notification fires iff the queue is currently non-empty.
func (w *WaitBus) LeaveSuppression() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.suppressionDepth--
	if w.suppressionDepth == 0 && w.notEmpty() {
		w.broadcastLocked()
	}
}
