package evqueue

import "errors"

// ErrNoGetEventPolicy is returned by EnqueueAuto when no GetEvent
// extractor was configured on the QueuePolicy.
var ErrNoGetEventPolicy = errors.New("evqueue: no GetEvent policy configured")

// ErrGetEventFailed is returned by EnqueueAuto when the configured
// GetEvent extractor could not determine an event-id for the given
// arguments. Per the policy-failure error kind, this is treated the same
// as a callback failure by callers that route it onward.
var ErrGetEventFailed = errors.New("evqueue: GetEvent could not extract an event id")
