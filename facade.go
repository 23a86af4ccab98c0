package evcore

import (
	"fmt"
	"sync"
)

var (
	defaultDispatcher *Dispatcher[string, any]
	defaultMu         sync.Mutex
)

// Default returns the process-wide singleton Dispatcher[string, any],
// building it with production defaults on first use.
func Default() *Dispatcher[string, any] {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultDispatcher != nil {
		return defaultDispatcher
	}

	d, err := NewBuilder[string, any]().Build()
	if err != nil {
		panic(fmt.Sprintf("evcore: failed to initialize default dispatcher: %v", err))
	}
	defaultDispatcher = d
	return defaultDispatcher
}

// SetDefault replaces the process-wide default Dispatcher.
func SetDefault(d *Dispatcher[string, any]) {
	if d == nil {
		panic("evcore: SetDefault called with nil Dispatcher")
	}
	defaultMu.Lock()
	defaultDispatcher = d
	defaultMu.Unlock()
}

// Enqueue is the Facade over the default Dispatcher.
func Enqueue(key string, args any) error {
	return Default().Enqueue(key, args)
}

// Process is the Facade over the default Dispatcher.
func Process() int {
	return Default().Process()
}
