package evcore

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/evcore/evqueue"
)

// Builder constructs Dispatchers.
type Builder[K comparable, A any] struct {
	clock  xclock.Clock
	logger *xlog.Logger
	policy evqueue.QueuePolicy[K, A]

	observers []Observer

	poolWorkers int
	poolBuffer  int
	poolCtx     context.Context
}

// NewBuilder returns a Builder with production defaults: 4 observer-pool
// workers, a 1000-event buffer, and xclock.Default()/xlog.Default().
func NewBuilder[K comparable, A any]() *Builder[K, A] {
	return &Builder[K, A]{
		poolWorkers: 4,
		poolBuffer:  1000,
	}
}

func (b *Builder[K, A]) WithClock(c xclock.Clock) *Builder[K, A] {
	b.clock = c
	return b
}

func (b *Builder[K, A]) WithLogger(l *xlog.Logger) *Builder[K, A] {
	b.logger = l
	return b
}

// WithPolicy installs the evqueue.QueuePolicy governing per-key
// CallbackList behavior (CanContinueInvoking, GetEvent, SingleThreaded).
func (b *Builder[K, A]) WithPolicy(p evqueue.QueuePolicy[K, A]) *Builder[K, A] {
	b.policy = p
	return b
}

func (b *Builder[K, A]) WithObserver(obs ...Observer) *Builder[K, A] {
	for _, o := range obs {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
	return b
}

// WithObserverPool overrides the sizing of the Dispatcher's async
// observer-notification workers. ctx bounds the workers' own lifetime
// independent of the caller cancelling any single Enqueue/Process call;
// it is typically context.Background().
func (b *Builder[K, A]) WithObserverPool(ctx context.Context, workers, bufferSize int) *Builder[K, A] {
	b.poolCtx = ctx
	b.poolWorkers = workers
	b.poolBuffer = bufferSize
	return b
}

// Build assembles a Dispatcher. It never fails today (no fallible steps
// like transport dialing exist for an in-process dispatcher) but returns
// an error to keep the constructor signature stable if that changes.
func (b *Builder[K, A]) Build() (*Dispatcher[K, A], error) {
	clk := b.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := b.logger
	if lg == nil {
		lg = xlog.Default()
	}
	poolCtx := b.poolCtx
	if poolCtx == nil {
		poolCtx = context.Background()
	}

	d := &Dispatcher[K, A]{
		queue:  evqueue.New[K, A](evqueue.WithClock[K, A](clk), evqueue.WithPolicy(b.policy)),
		clock:  clk,
		logger: lg,
	}
	d.startNotifyPipeline(poolCtx, b.poolWorkers, b.poolBuffer)

	hasLoggingObserver := false
	for _, o := range b.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver && lg != nil {
		d.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range b.observers {
		d.AddObserver(o)
	}

	return d, nil
}
