package callbacklist

import (
	"sync"
	"sync/atomic"
)

// Callback is a caller-supplied invocable stored in a CallbackList.
type Callback[A any] func(A)

// CanContinueInvoking is consulted after each callback runs during Invoke;
// returning false halts invocation of the remaining callbacks for that
// call. The zero value behaves as "always continue".
type CanContinueInvoking[A any] func(A) bool

// locker abstracts sync.Mutex so a SingleThreaded CallbackList can install
// a no-op in its place, matching the Threading policy described by the
// original design: single-thread mode disables locking entirely rather
// than merely uncontending it.
type locker interface {
	Lock()
	Unlock()
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// CallbackList is an ordered, mutation-safe list of callbacks with a
// monotonic visibility counter. The zero value is not usable; construct
// with New.
type CallbackList[A any] struct {
	mu   locker
	head *node[A]
	tail *node[A]

	currentCounter atomic.Uint64
	liveCount      atomic.Int64

	canContinueInvoking CanContinueInvoking[A]
}

// Option configures a CallbackList at construction time.
type Option[A any] func(*config[A])

type config[A any] struct {
	canContinueInvoking CanContinueInvoking[A]
	singleThreaded      bool
}

// WithCanContinueInvoking installs the predicate consulted by Invoke after
// each callback runs.
func WithCanContinueInvoking[A any](f CanContinueInvoking[A]) Option[A] {
	return func(c *config[A]) { c.canContinueInvoking = f }
}

// WithSingleThreaded disables internal locking. Only safe when the caller
// guarantees the list is never accessed from more than one goroutine at a
// time (including during callback execution).
func WithSingleThreaded[A any]() Option[A] {
	return func(c *config[A]) { c.singleThreaded = true }
}

// New constructs an empty CallbackList.
func New[A any](opts ...Option[A]) *CallbackList[A] {
	cfg := config[A]{canContinueInvoking: func(A) bool { return true }}
	for _, o := range opts {
		o(&cfg)
	}

	l := &CallbackList[A]{canContinueInvoking: cfg.canContinueInvoking}
	if cfg.singleThreaded {
		l.mu = noopLocker{}
	} else {
		l.mu = &sync.Mutex{}
	}
	return l
}

// Empty reports whether the list currently holds no live callbacks. This
// is a hint, not a synchronization point: it is backed by an atomic
// counter maintained alongside structural mutation, but a concurrent
// Append/Remove may still be mid-flight when Empty is read.
func (l *CallbackList[A]) Empty() bool {
	return l.liveCount.Load() == 0
}

// getNextCounter assigns the next visibility counter. It increments the
// shared atomic counter and then re-reads it, rather than trusting the
// increment's own return value: multiple goroutines racing here may all
// observe (and use) the same post-increment maximum, which is deliberate
// -- every node agrees on the same total order at the cost of the exact
// per-goroutine counter being merely "some value at or after this
// goroutine's increment". On overflow (wrap to the removed sentinel), every
// currently live node's counter is rewritten to 1 under the list mutex,
// which preserves ordering at a coarse scale: all pre-existing nodes
// compare as older than anything inserted afterward.
func (l *CallbackList[A]) getNextCounter() uint64 {
	l.currentCounter.Add(1)
	result := l.currentCounter.Load()
	if result == removedCounter {
		l.mu.Lock()
		for n := l.head; n != nil; n = n.next {
			n.counter.Store(1)
		}
		l.mu.Unlock()

		l.currentCounter.Add(1)
		result = l.currentCounter.Load()
	}
	return result
}

// Append adds cb to the end of the list.
func (l *CallbackList[A]) Append(cb Callback[A]) Handle[A] {
	n := newNode(cb, l.getNextCounter())

	l.mu.Lock()
	if l.head == nil {
		l.head, l.tail = n, n
	} else {
		n.previous = l.tail
		l.tail.next = n
		l.tail = n
	}
	l.mu.Unlock()

	l.liveCount.Add(1)
	return handleOf(n)
}

// Prepend adds cb to the front of the list.
func (l *CallbackList[A]) Prepend(cb Callback[A]) Handle[A] {
	n := newNode(cb, l.getNextCounter())

	l.mu.Lock()
	if l.head == nil {
		l.head, l.tail = n, n
	} else {
		n.next = l.head
		l.head.previous = n
		l.head = n
	}
	l.mu.Unlock()

	l.liveCount.Add(1)
	return handleOf(n)
}

// Insert adds cb immediately before the callback referenced by before. If
// before no longer references a live node -- either the node was already
// garbage collected, or (since Go's GC does not reclaim a node the instant
// it is unlinked) it is still reachable via the Handle but tombstoned by a
// prior Remove -- Insert falls back to Append.
func (l *CallbackList[A]) Insert(cb Callback[A], before Handle[A]) Handle[A] {
	beforeNode := before.ptr.Value()
	if beforeNode == nil || beforeNode.removed() {
		return l.Append(cb)
	}

	n := newNode(cb, l.getNextCounter())

	l.mu.Lock()
	if beforeNode.removed() {
		l.mu.Unlock()
		return l.Append(cb)
	}
	n.previous = beforeNode.previous
	n.next = beforeNode
	if beforeNode.previous != nil {
		beforeNode.previous.next = n
	}
	beforeNode.previous = n
	if l.head == beforeNode {
		l.head = n
	}
	l.mu.Unlock()

	l.liveCount.Add(1)
	return handleOf(n)
}

// Remove unlinks the callback referenced by h. It returns false, with no
// effect, if h no longer references a live node (already removed, or a
// zero-value Handle). Remove does not check that h came from this list.
func (l *CallbackList[A]) Remove(h Handle[A]) bool {
	n := h.ptr.Value()
	if n == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n.removed() {
		return false
	}

	if n.next != nil {
		n.next.previous = n.previous
	}
	if n.previous != nil {
		n.previous.next = n.next
	}
	if l.head == n {
		l.head = n.next
	}
	if l.tail == n {
		l.tail = n.previous
	}

	// Deliberately leave n.previous/n.next intact: a concurrent iterator
	// sitting on n must still be able to advance past it.
	n.counter.Store(removedCounter)

	l.liveCount.Add(-1)
	return true
}

// Iterate visits every callback eligible for this call, in list order,
// ignoring early-stop requests.
func (l *CallbackList[A]) Iterate(visit func(Callback[A])) {
	l.iterate(func(_ Handle[A], cb Callback[A]) bool {
		visit(cb)
		return true
	})
}

// IterateWithHandle visits every eligible callback's Handle, in list order.
func (l *CallbackList[A]) IterateWithHandle(visit func(Handle[A])) {
	l.iterate(func(h Handle[A], _ Callback[A]) bool {
		visit(h)
		return true
	})
}

// IterateDetailed visits (Handle, Callback) pairs in list order, stopping
// early when visit returns false. It reports whether it ran to completion.
func (l *CallbackList[A]) IterateDetailed(visit func(Handle[A], Callback[A]) bool) bool {
	return l.iterate(visit)
}

// iterate is the core mutation-safe traversal. It snapshots head and the
// current counter before walking, so:
//
//   - a node inserted after this call began has a counter strictly greater
//     than the snapshot and is skipped (visibility, P1);
//   - a node already removed has counter == removedCounter and is skipped
//     (tombstone, P2);
//   - advancing to node.next always re-acquires the mutex, because a
//     concurrent Remove may have relinked neighbors; a removed node's own
//     next still points to whatever followed it at removal time, so
//     traversal can always make forward progress.
func (l *CallbackList[A]) iterate(visit func(Handle[A], Callback[A]) bool) bool {
	l.mu.Lock()
	n := l.head
	l.mu.Unlock()

	snapshot := l.currentCounter.Load()

	for n != nil {
		counter := n.counter.Load()
		if counter != removedCounter && counter <= snapshot {
			if !visit(handleOf(n), n.callback) {
				return false
			}
		}

		l.mu.Lock()
		n = n.next
		l.mu.Unlock()
	}
	return true
}

// Invoke calls every eligible callback with args, in list order, stopping
// early if the configured CanContinueInvoking predicate returns false. A
// panicking callback propagates out of Invoke unmodified: this package
// never recovers or swallows callback failures.
func (l *CallbackList[A]) Invoke(args A) {
	l.iterate(func(_ Handle[A], cb Callback[A]) bool {
		cb(args)
		return l.canContinueInvoking(args)
	})
}
