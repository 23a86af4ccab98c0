package callbacklist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdering(t *testing.T) {
	l := New[int]()
	var order []string
	var mu sync.Mutex
	record := func(name string) Callback[int] {
		return func(int) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	l.Append(record("a"))
	l.Append(record("b"))
	l.Append(record("c"))

	l.Invoke(1)
	assert.Equal(t, []string{"a", "b", "c"}, order)

	order = nil
	l.Invoke(2)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPrependAndInsert(t *testing.T) {
	l := New[int]()
	var order []string

	hb := l.Append(func(int) { order = append(order, "b") })
	l.Prepend(func(int) { order = append(order, "a") })
	l.Insert(func(int) { order = append(order, "b.5") }, hb)
	l.Append(func(int) { order = append(order, "c") })

	l.Invoke(0)
	assert.Equal(t, []string{"a", "b.5", "b", "c"}, order)
}

func TestInsertFallsBackToAppendOnStaleHandle(t *testing.T) {
	l := New[int]()
	var order []string

	h := l.Append(func(int) { order = append(order, "a") })
	require.True(t, l.Remove(h))

	l.Insert(func(int) { order = append(order, "b") }, h)
	l.Invoke(0)
	assert.Equal(t, []string{"b"}, order)
}

func TestRemoveIsIdempotentAndReportsResult(t *testing.T) {
	l := New[int]()
	h := l.Append(func(int) {})

	assert.True(t, l.Remove(h))
	assert.False(t, l.Remove(h))

	var zero Handle[int]
	assert.False(t, l.Remove(zero))
}

func TestRemovedCallbackIsNotInvoked(t *testing.T) {
	l := New[int]()
	called := false
	h := l.Append(func(int) { called = true })
	l.Remove(h)

	l.Invoke(1)
	assert.False(t, called)
}

// TestP1Visibility: a callback appended after iteration has begun is not
// observed by that iteration.
func TestP1Visibility(t *testing.T) {
	l := New[int]()

	var seenSecond, seenLate bool
	started := make(chan struct{})
	release := make(chan struct{})

	l.Append(func(int) {
		close(started)
		<-release // block until the late callback is appended mid-dispatch
	})
	l.Append(func(int) {
		seenSecond = true
	})

	done := make(chan struct{})
	go func() {
		l.Invoke(0)
		close(done)
	}()

	<-started
	l.Append(func(int) { seenLate = true }) // appended mid-dispatch
	close(release)
	<-done

	assert.True(t, seenSecond, "the originally-registered second listener must still fire")
	assert.False(t, seenLate, "a listener appended mid-dispatch must not fire in that dispatch")
}

// TestP2Tombstone: removing a node before the iterator reaches it prevents
// its invocation while its neighbours still fire.
func TestP2Tombstone(t *testing.T) {
	l := New[int]()

	var aCalled, bCalled, cCalled bool
	l.Append(func(int) { aCalled = true })
	hb := l.Append(func(int) { bCalled = true })
	l.Append(func(int) { cCalled = true })

	l.Remove(hb)
	l.Invoke(0)

	assert.True(t, aCalled)
	assert.False(t, bCalled)
	assert.True(t, cCalled)
}

// TestP3Ordering is the literal end-to-end ordering scenario.
func TestP3Ordering(t *testing.T) {
	l := New[int]()
	var order []rune
	l.Append(func(int) { order = append(order, 'a') })
	l.Append(func(int) { order = append(order, 'b') })
	l.Append(func(int) { order = append(order, 'c') })

	for i := 0; i < 3; i++ {
		order = nil
		l.Invoke(0)
		assert.Equal(t, []rune{'a', 'b', 'c'}, order)
	}
}

// TestP4Overflow forces currentCounter to wrap and checks that previously
// live nodes remain visible while nodes inserted after a dispatch began
// remain invisible to that dispatch.
func TestP4Overflow(t *testing.T) {
	l := New[int]()
	l.currentCounter.Store(^uint64(0) - 1) // one increment away from wrapping to 0

	var aCalled, bCalled, lateCalled bool
	l.Append(func(int) {
		aCalled = true
		l.Append(func(int) { lateCalled = true }) // inserted after the dispatch began
	})
	l.Append(func(int) { bCalled = true }) // triggers overflow reset internally

	l.Invoke(0)
	assert.True(t, aCalled)
	assert.True(t, bCalled)
	assert.False(t, lateCalled)
}

func TestEmptyHint(t *testing.T) {
	l := New[int]()
	assert.True(t, l.Empty())

	h := l.Append(func(int) {})
	assert.False(t, l.Empty())

	l.Remove(h)
	assert.True(t, l.Empty())
}

func TestIterateDetailedStopsEarly(t *testing.T) {
	l := New[int]()
	var visited []int
	l.Append(func(int) {})
	l.Append(func(int) {})
	l.Append(func(int) {})

	i := 0
	ranToCompletion := l.IterateDetailed(func(h Handle[int], cb Callback[int]) bool {
		visited = append(visited, i)
		i++
		return i < 2
	})

	assert.False(t, ranToCompletion)
	assert.Equal(t, []int{0, 1}, visited)
}

func TestCanContinueInvokingHaltsInvocation(t *testing.T) {
	l := New[int](WithCanContinueInvoking(func(v int) bool { return v != 0 }))

	var calls []int
	l.Append(func(v int) { calls = append(calls, v) })
	l.Append(func(v int) { calls = append(calls, v*10) })
	l.Append(func(v int) { calls = append(calls, v*100) })

	l.Invoke(0)
	assert.Equal(t, []int{0}, calls)
}

func TestSingleThreadedSkipsLocking(t *testing.T) {
	l := New[int](WithSingleThreaded[int]())
	var calls int
	l.Append(func(int) { calls++ })
	l.Invoke(0)
	assert.Equal(t, 1, calls)
}

// TestManyProducersManyConsumers exercises P1/P2 under real contention:
// concurrent Append/Remove/Invoke must never crash and must preserve the
// counts implied by the invariants.
func TestManyProducersManyConsumers(t *testing.T) {
	l := New[int]()
	const workers = 32
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				h := l.Append(func(int) {})
				l.Invoke(0)
				l.Remove(h)
			}
		}()
	}
	wg.Wait()

	assert.True(t, l.Empty())
}
