package evcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPipelineDeliversToAllObservers(t *testing.T) {
	d, err := NewBuilder[string, int]().WithObserverPool(context.Background(), 2, 16).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	done := make(chan struct{}, 2)
	d.AddObserver(ObserverFunc(func(e Event) {
		if e.Type == Processed && e.Count == 3 {
			done <- struct{}{}
		}
	}))
	d.AddObserver(ObserverFunc(func(e Event) {
		if e.Type == Processed && e.Count == 3 {
			done <- struct{}{}
		}
	}))

	d.notifyAsync(Event{Type: Processed, Count: 3})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("observer never notified")
		}
	}
}

func TestNotifyPipelineDropsWhenBufferFull(t *testing.T) {
	block := make(chan struct{})
	d, err := NewBuilder[string, int]().WithObserverPool(context.Background(), 1, 1).Build()
	require.NoError(t, err)
	defer func() {
		close(block)
		_ = d.Close()
	}()

	d.AddObserver(ObserverFunc(func(Event) { <-block }))

	d.notifyAsync(Event{Type: Enqueued})
	time.Sleep(20 * time.Millisecond) // ensure the single worker is busy

	d.notifyAsync(Event{Type: Enqueued})
	d.notifyAsync(Event{Type: Enqueued})

	assert.GreaterOrEqual(t, d.GetMetrics().EventsDropped, uint64(1))
}

func TestNotifyPipelineCountsObserverPanicAsError(t *testing.T) {
	d, err := NewBuilder[string, int]().WithObserverPool(context.Background(), 1, 4).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	done := make(chan struct{})
	d.AddObserver(ObserverFunc(func(Event) { panic("boom") }))
	d.AddObserver(ObserverFunc(func(Event) { close(done) }))

	d.notifyAsync(Event{Type: Enqueued})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after observer panic")
	}

	// Give the metrics increment (recorded before the second observer
	// runs, in the same delivery loop) a moment to be visible.
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, d.GetMetrics().Errors, uint64(1))
}

func TestNotifyPipelineCloseIsIdempotent(t *testing.T) {
	d, err := NewBuilder[string, int]().WithObserverPool(context.Background(), 1, 4).Build()
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}
