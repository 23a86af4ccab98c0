package evqueue

import (
	"context"
	"sync"
	"time"

	"github.com/trickstertwo/xclock"

	"github.com/trickstertwo/evcore/callbacklist"
)

// QueuePolicy customizes an EventQueue's behavior as a plain configuration
// record covering threading (SingleThreaded), CanContinueInvoking and
// GetEvent. Callback storage is always callbacklist.Callback[A], and
// listeners always receive only the argument value, never the event-id.
type QueuePolicy[K comparable, A any] struct {
	// CanContinueInvoking is forwarded to every per-key CallbackList.
	CanContinueInvoking callbacklist.CanContinueInvoking[A]

	// GetEvent extracts an event-id from a structured argument pack, for
	// callers that carry the event identity inside the payload itself.
	// Its second return reports whether extraction succeeded; a false
	// return is a policy-failure, treated identically to a callback
	// failure by EnqueueAuto's caller.
	GetEvent func(A) (K, bool)

	// SingleThreaded, when true, disables locking in every per-key
	// CallbackList. Only safe under external single-goroutine discipline.
	SingleThreaded bool
}

// EventQueue composes a lazily-created CallbackList per event-id with a
// FIFO of queued records and a WaitBus. Any number of goroutines may call
// Enqueue, Process, Wait/WaitFor, or mutate listeners, concurrently.
type EventQueue[K comparable, A any] struct {
	registryMu sync.RWMutex
	lists      map[K]*callbacklist.CallbackList[A]

	storage *storage[K, A]
	wait    *WaitBus

	clock  xclock.Clock
	policy QueuePolicy[K, A]
}

// Option configures an EventQueue at construction time.
type Option[K comparable, A any] func(*EventQueue[K, A])

// WithClock installs the clock used to timestamp records (default:
// xclock.Default()).
func WithClock[K comparable, A any](c xclock.Clock) Option[K, A] {
	return func(q *EventQueue[K, A]) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithPolicy installs a QueuePolicy wholesale.
func WithPolicy[K comparable, A any](p QueuePolicy[K, A]) Option[K, A] {
	return func(q *EventQueue[K, A]) { q.policy = p }
}

// New constructs an empty EventQueue.
func New[K comparable, A any](opts ...Option[K, A]) *EventQueue[K, A] {
	q := &EventQueue[K, A]{
		lists:   make(map[K]*callbacklist.CallbackList[A]),
		storage: &storage[K, A]{},
		clock:   xclock.Default(),
	}
	q.wait = newWaitBus(func() bool { return !q.storage.empty() })

	for _, o := range opts {
		o(q)
	}
	return q
}

// list returns (creating if necessary) the CallbackList for k.
func (q *EventQueue[K, A]) list(k K) *callbacklist.CallbackList[A] {
	q.registryMu.RLock()
	l, ok := q.lists[k]
	q.registryMu.RUnlock()
	if ok {
		return l
	}

	q.registryMu.Lock()
	defer q.registryMu.Unlock()
	if l, ok = q.lists[k]; ok {
		return l
	}

	var listOpts []callbacklist.Option[A]
	if q.policy.CanContinueInvoking != nil {
		listOpts = append(listOpts, callbacklist.WithCanContinueInvoking(q.policy.CanContinueInvoking))
	}
	if q.policy.SingleThreaded {
		listOpts = append(listOpts, callbacklist.WithSingleThreaded[A]())
	}

	l = callbacklist.New[A](listOpts...)
	q.lists[k] = l
	return l
}

// AppendListener registers cb at the end of the listener list for k,
// creating that list on first use.
func (q *EventQueue[K, A]) AppendListener(k K, cb callbacklist.Callback[A]) callbacklist.Handle[A] {
	return q.list(k).Append(cb)
}

// PrependListener registers cb at the front of the listener list for k.
func (q *EventQueue[K, A]) PrependListener(k K, cb callbacklist.Callback[A]) callbacklist.Handle[A] {
	return q.list(k).Prepend(cb)
}

// InsertListener registers cb immediately before the listener referenced
// by before, in the listener list for k.
func (q *EventQueue[K, A]) InsertListener(k K, cb callbacklist.Callback[A], before callbacklist.Handle[A]) callbacklist.Handle[A] {
	return q.list(k).Insert(cb, before)
}

// RemoveListener unregisters the listener referenced by h from k's list.
// It reports false if k has no list or h no longer references a live node.
func (q *EventQueue[K, A]) RemoveListener(k K, h callbacklist.Handle[A]) bool {
	q.registryMu.RLock()
	l, ok := q.lists[k]
	q.registryMu.RUnlock()
	if !ok {
		return false
	}
	return l.Remove(h)
}

// Enqueue stores a record for k and wakes a waiting consumer, unless
// notifications are currently suppressed. args is captured by value, so
// mutating or destroying the caller's copy afterward has no effect on
// what a later Process/Dispatch observes.
func (q *EventQueue[K, A]) Enqueue(k K, args A) {
	q.storage.push(Record[K, A]{EventID: k, Args: args, EnqueuedAt: q.clock.Now()})
	q.wait.NotifyOne()
}

// EnqueueAuto extracts the event-id from args via the configured
// QueuePolicy.GetEvent and enqueues under that id. It returns
// ErrNoGetEventPolicy if no extractor was configured, or
// ErrGetEventFailed if extraction failed.
func (q *EventQueue[K, A]) EnqueueAuto(args A) error {
	if q.policy.GetEvent == nil {
		return ErrNoGetEventPolicy
	}
	k, ok := q.policy.GetEvent(args)
	if !ok {
		return ErrGetEventFailed
	}
	q.Enqueue(k, args)
	return nil
}

// Dispatch synchronously invokes the CallbackList for r.EventID with
// r.Args. Unknown event-ids are a no-op: producers and consumers may race
// listener registration without losing enqueued records.
func (q *EventQueue[K, A]) Dispatch(r Record[K, A]) {
	q.registryMu.RLock()
	l, ok := q.lists[r.EventID]
	q.registryMu.RUnlock()
	if !ok {
		return
	}
	l.Invoke(r.Args)
}

// Process drains every record currently queued and dispatches each in
// turn, returning the number processed. Records enqueued by callbacks
// running during this Process are not drained by it: swapOut only sees
// the buffer as it stood at the moment Process began draining. Listener
// visibility is decided per record: each per-key CallbackList's own
// visibility counter excludes listeners appended during the in-flight
// Invoke, but a listener appended while one record is dispatched is
// invoked for later records of the same Process.
func (q *EventQueue[K, A]) Process() int {
	drained := q.storage.swapOut()
	for i := range drained {
		q.Dispatch(drained[i])
	}
	return len(drained)
}

// PeekEvent copies the front record without consuming it.
func (q *EventQueue[K, A]) PeekEvent() (Record[K, A], bool) {
	return q.storage.peekFront()
}

// TakeEvent removes and returns the front record.
func (q *EventQueue[K, A]) TakeEvent() (Record[K, A], bool) {
	return q.storage.takeFront()
}

// Empty reports whether the queue currently holds no records.
func (q *EventQueue[K, A]) Empty() bool {
	return q.storage.empty()
}

// Wait blocks until the queue is non-empty or ctx is done.
func (q *EventQueue[K, A]) Wait(ctx context.Context) error {
	return q.wait.Wait(ctx)
}

// WaitFor blocks until the queue is non-empty or d elapses, returning
// true iff woken by a real enqueue within the timeout.
func (q *EventQueue[K, A]) WaitFor(d time.Duration) bool {
	return q.wait.WaitFor(d)
}

// DisableQueueNotify is a scoped suppression guard: while held, Enqueue
// does not wake consumers. Release must be called exactly once; a second
// call is a no-op. Nested guards compose (suppression is a depth counter,
// not a boolean).
type DisableQueueNotify[K comparable, A any] struct {
	q        *EventQueue[K, A]
	released bool
}

// DisableNotify enters a suppression scope and returns a guard that must
// be released to leave it.
func (q *EventQueue[K, A]) DisableNotify() *DisableQueueNotify[K, A] {
	q.wait.EnterSuppression()
	return &DisableQueueNotify[K, A]{q: q}
}

// Release leaves the suppression scope. If this was the outermost scope
// and the queue is currently non-empty, exactly one notification fires.
func (d *DisableQueueNotify[K, A]) Release() {
	if d.released {
		return
	}
	d.released = true
	d.q.wait.LeaveSuppression()
}
