// Package evcore is a thread-safe, in-process callback registry
// (callbacklist.CallbackList) and queued event dispatcher (evqueue.EventQueue),
// wired together as a Dispatcher with structured logging, lifecycle
// observers and production metrics.
//
// The hard concurrency guarantees live in the callbacklist and evqueue
// subpackages: a callback appended during a dispatch is never observed by
// that dispatch, a callback removed before an iterator reaches it is never
// invoked, and enqueued arguments outlive both the producer's stack frame
// and any later mutation of the producer's local variables.
package evcore
