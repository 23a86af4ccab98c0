package evcore

import (
	"fmt"

	"github.com/trickstertwo/xlog"
)

// Observer receives lifecycle telemetry from a Dispatcher. Implementations
// must not block: a slow OnEvent only delays that one notify worker, but a
// permanently blocked OnEvent will eventually starve the pool.
type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver emits Events via xlog. Unlike a bus that only ever logs
// a publish/consume pair plus ack/nack, a Dispatcher's event vocabulary
// spans registration, enqueue, dispatch, batch processing, idle timeouts
// and shutdown, so each EventType gets its own message and level rather
// than a single generic "event" line.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(xlog.Str("key", e.Key))

	switch e.Type {
	case ListenerAdded:
		ev.Debug().Msg("listener added")
	case ListenerRemoved:
		ev.Debug().Msg("listener removed")
	case Enqueued:
		ev.Debug().Msg("event enqueued")
	case Dispatched:
		ev.With(xlog.Dur("duration", e.Duration)).Debug().Msg("event dispatched")
	case Processed:
		ev.With(
			xlog.Str("count", fmt.Sprint(e.Count)),
			xlog.Dur("duration", e.Duration),
		).Info().Msg("batch processed")
	case WaitTimedOut:
		ev.Debug().Msg("wait timed out")
	case Closed:
		ev.Info().Msg("dispatcher closed")
	case Error:
		ev.Warn().Err(e.Err).Msg("dispatcher error")
	default:
		ev.Debug().Msg("dispatcher event")
	}
}
