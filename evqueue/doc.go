// Package evqueue implements a multi-producer/multi-consumer FIFO of
// (event-id, arguments) records layered on top of a per-key
// callbacklist.CallbackList. Producers Enqueue records; consumers either
// Process (drain once) or Wait/WaitFor and then Process.
package evqueue
