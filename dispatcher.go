package evcore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/evcore/callbacklist"
	"github.com/trickstertwo/evcore/evqueue"
)

var _ HealthChecker = (*Dispatcher[string, any])(nil)

// HealthChecker is implemented by Dispatcher; kept as a named interface so
// callers building health-check registries can depend on the behavior
// without importing the concrete generic type.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// Dispatcher wraps an evqueue.EventQueue with structured logging, async
// lifecycle observers and lock-free metrics. Every method is safe for
// concurrent use by any number of producer and consumer goroutines.
//
// Observer delivery runs on a small fixed pool of goroutines owned
// directly by the Dispatcher rather than a separate reusable component:
// nothing outside a Dispatcher ever needs to fan events out to observers,
// so the worker loop, its backpressure counter and its shutdown all live
// alongside the metrics and close state they actually affect.
type Dispatcher[K comparable, A any] struct {
	queue  *evqueue.EventQueue[K, A]
	clock  xclock.Clock
	logger *xlog.Logger

	observersMu sync.RWMutex
	observers   []Observer

	notifyCh      chan *Event
	notifyCancel  context.CancelFunc
	notifyWG      sync.WaitGroup
	notifyWorkers int

	metrics   dispatcherMetrics
	closed    atomic.Bool
	closeOnce sync.Once
}

type dispatcherMetrics struct {
	enqueued       atomic.Uint64
	dispatched     atomic.Uint64
	processed      atomic.Uint64
	callbackPanics atomic.Uint64
	errors         atomic.Uint64
	eventsDropped  atomic.Uint64
	processingNs   atomic.Int64
}

// startNotifyPipeline spins up the observer-delivery worker pool. Called
// once, from Builder.Build.
func (d *Dispatcher[K, A]) startNotifyPipeline(ctx context.Context, workers, bufferSize int) {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1000
	}

	notifyCtx, cancel := context.WithCancel(ctx)
	d.notifyCh = make(chan *Event, bufferSize)
	d.notifyCancel = cancel
	d.notifyWorkers = workers

	for i := 0; i < workers; i++ {
		d.notifyWG.Add(1)
		go d.notifyWorker(notifyCtx)
	}
}

// notifyWorker drains notifyCh until ctx is cancelled, then drains
// whatever is left in the buffer before exiting, so a Close does not
// discard events that were already accepted.
func (d *Dispatcher[K, A]) notifyWorker(ctx context.Context) {
	defer d.notifyWG.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-d.notifyCh:
					if e != nil {
						d.deliver(e)
					}
				default:
					return
				}
			}
		case e := <-d.notifyCh:
			if e != nil {
				d.deliver(e)
			}
		}
	}
}

// deliver calls every observer attached to e. An observer that panics has
// that panic counted as a Dispatcher error rather than silently dropped:
// unlike a callback failure, an observer failure never re-panics (it runs
// on the shared notify workers, not the caller's goroutine, so there is
// nothing meaningful to propagate to), but it is not invisible either.
func (d *Dispatcher[K, A]) deliver(e *Event) {
	for _, obs := range e.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() {
				if recover() != nil {
					d.metrics.errors.Add(1)
				}
			}()
			obs.OnEvent(*e)
		}()
	}
}

// AppendListener registers cb at the end of the listener list for k. A
// panic escaping cb during Dispatch/Process is reported via an Error
// event and then re-raised: the Dispatcher never swallows a callback
// failure, it only makes it observable on the way out.
func (d *Dispatcher[K, A]) AppendListener(k K, cb callbacklist.Callback[A]) (callbacklist.Handle[A], error) {
	if cb == nil {
		return callbacklist.Handle[A]{}, ErrInvalidSubscription
	}
	h := d.queue.AppendListener(k, d.wrap(k, cb))
	d.notifyAsync(Event{Type: ListenerAdded, Key: fmt.Sprint(k)})
	return h, nil
}

// PrependListener registers cb at the front of the listener list for k.
func (d *Dispatcher[K, A]) PrependListener(k K, cb callbacklist.Callback[A]) (callbacklist.Handle[A], error) {
	if cb == nil {
		return callbacklist.Handle[A]{}, ErrInvalidSubscription
	}
	h := d.queue.PrependListener(k, d.wrap(k, cb))
	d.notifyAsync(Event{Type: ListenerAdded, Key: fmt.Sprint(k)})
	return h, nil
}

// InsertListener registers cb immediately before the listener referenced
// by before, in the listener list for k.
func (d *Dispatcher[K, A]) InsertListener(k K, cb callbacklist.Callback[A], before callbacklist.Handle[A]) (callbacklist.Handle[A], error) {
	if cb == nil {
		return callbacklist.Handle[A]{}, ErrInvalidSubscription
	}
	h := d.queue.InsertListener(k, d.wrap(k, cb), before)
	d.notifyAsync(Event{Type: ListenerAdded, Key: fmt.Sprint(k)})
	return h, nil
}

// RemoveListener unregisters the listener referenced by h from k's list.
func (d *Dispatcher[K, A]) RemoveListener(k K, h callbacklist.Handle[A]) bool {
	ok := d.queue.RemoveListener(k, h)
	if ok {
		d.notifyAsync(Event{Type: ListenerRemoved, Key: fmt.Sprint(k)})
	}
	return ok
}

// wrap adapts cb so a panic is reported to observers as an Error event
// whose Err is a CallbackFailureError (so errors.As can identify it),
// counted in metrics, and then re-panicked with the original value.
func (d *Dispatcher[K, A]) wrap(k K, cb callbacklist.Callback[A]) callbacklist.Callback[A] {
	return func(a A) {
		defer func() {
			if r := recover(); r != nil {
				d.metrics.callbackPanics.Add(1)
				err := &CallbackFailureError{Recovered: r}
				d.notifyAsync(Event{Type: Error, Key: fmt.Sprint(k), Err: err})
				panic(r)
			}
		}()
		cb(a)
	}
}

// Enqueue stores a record for k and wakes a waiting consumer. Returns
// ErrDispatcherClosed once Close has been called.
func (d *Dispatcher[K, A]) Enqueue(k K, args A) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	d.queue.Enqueue(k, args)
	d.metrics.enqueued.Add(1)
	d.notifyAsync(Event{Type: Enqueued, Key: fmt.Sprint(k)})
	return nil
}

// EnqueueAuto extracts the event-id from args via the QueuePolicy.GetEvent
// configured through Builder.WithPolicy.
func (d *Dispatcher[K, A]) EnqueueAuto(args A) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if err := d.queue.EnqueueAuto(args); err != nil {
		d.metrics.errors.Add(1)
		return err
	}
	d.metrics.enqueued.Add(1)
	d.notifyAsync(Event{Type: Enqueued})
	return nil
}

// Dispatch synchronously invokes the listeners for r.EventID with r.Args.
func (d *Dispatcher[K, A]) Dispatch(r evqueue.Record[K, A]) {
	start := d.clock.Now()
	d.queue.Dispatch(r)
	duration := d.clock.Since(start)
	d.recordProcessingTime(duration.Nanoseconds())
	d.metrics.dispatched.Add(1)
	d.notifyAsync(Event{Type: Dispatched, Key: fmt.Sprint(r.EventID), Duration: duration})
}

// Process drains every record currently queued and dispatches each in
// turn, returning the number processed.
func (d *Dispatcher[K, A]) Process() int {
	start := d.clock.Now()
	n := d.queue.Process()
	duration := d.clock.Since(start)
	if n > 0 {
		d.recordProcessingTime(duration.Nanoseconds())
	}
	d.metrics.processed.Add(uint64(n))
	d.notifyAsync(Event{Type: Processed, Count: n, Duration: duration})
	return n
}

// PeekEvent copies the front record without consuming it.
func (d *Dispatcher[K, A]) PeekEvent() (evqueue.Record[K, A], bool) {
	return d.queue.PeekEvent()
}

// TakeEvent removes and returns the front record.
func (d *Dispatcher[K, A]) TakeEvent() (evqueue.Record[K, A], bool) {
	return d.queue.TakeEvent()
}

// Empty reports whether the queue currently holds no records.
func (d *Dispatcher[K, A]) Empty() bool {
	return d.queue.Empty()
}

// Wait blocks until the queue is non-empty or ctx is done.
func (d *Dispatcher[K, A]) Wait(ctx context.Context) error {
	return d.queue.Wait(ctx)
}

// WaitFor blocks until the queue is non-empty or timeout elapses.
func (d *Dispatcher[K, A]) WaitFor(timeout time.Duration) bool {
	woke := d.queue.WaitFor(timeout)
	if !woke {
		d.notifyAsync(Event{Type: WaitTimedOut})
	}
	return woke
}

// DisableNotify enters a suppression scope for batched enqueues; see
// evqueue.EventQueue.DisableNotify.
func (d *Dispatcher[K, A]) DisableNotify() *evqueue.DisableQueueNotify[K, A] {
	return d.queue.DisableNotify()
}

// AddObserver registers an observer for Dispatcher lifecycle events.
func (d *Dispatcher[K, A]) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	d.observers = append(d.observers, obs)
	d.observersMu.Unlock()
}

// RemoveObserver removes a previously registered observer.
func (d *Dispatcher[K, A]) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	defer d.observersMu.Unlock()
	for i, o := range d.observers {
		if o == obs {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			break
		}
	}
}

// notifyAsync hands e to the notify pipeline for delivery, dropping it if
// the buffer is full rather than blocking the Enqueue/Process call that
// triggered it.
func (d *Dispatcher[K, A]) notifyAsync(e Event) {
	if d.notifyCh == nil || d.closed.Load() {
		return
	}
	d.observersMu.RLock()
	n := len(d.observers)
	if n == 0 {
		d.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, n)
	copy(observers, d.observers)
	d.observersMu.RUnlock()

	e.observers = observers
	select {
	case d.notifyCh <- &e:
	default:
		d.metrics.eventsDropped.Add(1)
	}
}

func (d *Dispatcher[K, A]) recordProcessingTime(ns int64) {
	const alpha = 0.2
	current := d.metrics.processingNs.Load()
	if current == 0 {
		d.metrics.processingNs.Store(ns)
		return
	}
	newAvg := int64(float64(ns)*alpha + float64(current)*(1-alpha))
	d.metrics.processingNs.Store(newAvg)
}

// GetMetrics returns current Dispatcher metrics.
func (d *Dispatcher[K, A]) GetMetrics() Metrics {
	return Metrics{
		Enqueued:            d.metrics.enqueued.Load(),
		Dispatched:          d.metrics.dispatched.Load(),
		Processed:           d.metrics.processed.Load(),
		CallbackPanics:      d.metrics.callbackPanics.Load(),
		Errors:              d.metrics.errors.Load(),
		EventsDropped:       d.metrics.eventsDropped.Load(),
		AvgProcessingTimeMs: float64(d.metrics.processingNs.Load()) / 1e6,
	}
}

// Health reports Dispatcher health for liveness probes.
func (d *Dispatcher[K, A]) Health(ctx context.Context) HealthStatus {
	if d.closed.Load() {
		return HealthStatus{Status: "closed", Timestamp: d.clock.Now(), Message: "dispatcher is closed"}
	}

	metrics := d.GetMetrics()
	status := "healthy"
	if metrics.CallbackPanics > 0 || metrics.Errors > 0 {
		total := metrics.Enqueued
		if total == 0 {
			total = 1
		}
		if float64(metrics.CallbackPanics+metrics.Errors)/float64(total) > 0.05 {
			status = "degraded"
		}
	}

	return HealthStatus{Status: status, Metrics: metrics, Timestamp: d.clock.Now()}
}

// Close stops the notify pipeline, waiting up to five seconds for queued
// events to drain. It is idempotent and safe to call concurrently with
// in-flight Enqueue/Process calls, though those may still complete after
// Close returns; new Enqueue calls after Close return ErrDispatcherClosed.
func (d *Dispatcher[K, A]) Close() error {
	var closeErr error
	d.closeOnce.Do(func() {
		d.notifyAsync(Event{Type: Closed})
		d.closed.Store(true)

		if d.notifyCancel == nil {
			return
		}
		d.notifyCancel()

		done := make(chan struct{})
		go func() {
			d.notifyWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			d.logger.Warn().Msg("evcore: observer notification pipeline shutdown timeout")
			closeErr = ErrObserverPoolShutdownTimeout
		}
	})
	return closeErr
}
