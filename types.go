package evcore

import "time"

// Metrics is observable telemetry for a Dispatcher.
type Metrics struct {
	Enqueued            uint64
	Dispatched          uint64
	Processed           uint64
	CallbackPanics      uint64
	Errors              uint64
	EventsDropped       uint64
	AvgProcessingTimeMs float64
}

// HealthStatus summarizes a Dispatcher's health for liveness probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "closed"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
