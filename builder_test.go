package evcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaultsProduceUsableDispatcher(t *testing.T) {
	d, err := NewBuilder[string, int]().Build()
	require.NoError(t, err)
	require.NotNil(t, d)
	t.Cleanup(func() { _ = d.Close() })

	var got int
	_, err = d.AppendListener("k", func(v int) { got = v })
	require.NoError(t, err)

	require.NoError(t, d.Enqueue("k", 7))
	d.Process()
	assert.Equal(t, 7, got)
}

func TestBuilderInstallsLoggingObserverByDefault(t *testing.T) {
	d, err := NewBuilder[string, int]().Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	d.observersMu.RLock()
	defer d.observersMu.RUnlock()
	found := false
	for _, o := range d.observers {
		if _, ok := o.(LoggingObserver); ok {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuilderCustomObserverPoolSizing(t *testing.T) {
	d, err := NewBuilder[string, int]().
		WithObserverPool(context.Background(), 1, 8).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.Equal(t, 1, d.notifyWorkers)
	assert.Equal(t, 8, cap(d.notifyCh))
}
