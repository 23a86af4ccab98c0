package evqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitBusWaitForTimesOutWhenEmpty(t *testing.T) {
	var full int32
	wb := newWaitBus(func() bool { return atomic.LoadInt32(&full) != 0 })

	ok := wb.WaitFor(30 * time.Millisecond)
	assert.False(t, ok)
}

func TestWaitBusWakesOnNotify(t *testing.T) {
	var full int32
	wb := newWaitBus(func() bool { return atomic.LoadInt32(&full) != 0 })

	done := make(chan bool, 1)
	go func() {
		done <- wb.WaitFor(2 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	atomic.StoreInt32(&full, 1)
	wb.NotifyOne()

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

// TestP7WakeDiscipline: suppressed enqueues cause no wake; leaving
// suppression wakes exactly once iff non-empty.
func TestP7WakeDiscipline(t *testing.T) {
	var full int32
	wb := newWaitBus(func() bool { return atomic.LoadInt32(&full) != 0 })

	wb.EnterSuppression()
	wb.EnterSuppression() // reentrant
	atomic.StoreInt32(&full, 1)
	wb.NotifyOne()

	select {
	case <-wb.wake:
		t.Fatal("wake fired while suppression depth > 0")
	case <-time.After(30 * time.Millisecond):
	}

	wb.LeaveSuppression() // depth 1, still suppressed
	select {
	case <-wb.wake:
		t.Fatal("wake fired before outermost suppression released")
	case <-time.After(30 * time.Millisecond):
	}

	woke := make(chan struct{})
	go func() {
		_ = wb.Wait(context.Background())
		close(woke)
	}()
	time.Sleep(20 * time.Millisecond)

	wb.mu.Lock()
	wakeCh := wb.wake
	wb.mu.Unlock()

	wb.LeaveSuppression() // depth 0, non-empty -> wakes

	select {
	case <-wakeCh:
	case <-time.After(time.Second):
		t.Fatal("outermost release did not broadcast a wake")
	}

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("consumer never woke after outermost release")
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	wb := newWaitBus(func() bool { return false })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- wb.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait did not observe cancellation")
	}
}
