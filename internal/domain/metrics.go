package domain

import "time"

// InvocationStatus labels the outcome of a dispatched tool call.
type InvocationStatus string

const (
	InvocationStatusSuccess InvocationStatus = "success"
	InvocationStatusError   InvocationStatus = "error"
)

// CacheEvent labels cache interactions in the cached strategy.
type CacheEvent string

const (
	CacheEventHit   CacheEvent = "hit"
	CacheEventMiss  CacheEvent = "miss"
	CacheEventStore CacheEvent = "store"
)

// InvocationMetric records one dispatched tool call.
type InvocationMetric struct {
	Tool     string
	Status   InvocationStatus
	Type     ErrorType
	Duration time.Duration
}

// Metrics is the telemetry sink consumed by the dispatch core. A nil Metrics
// is always legal.
type Metrics interface {
	RecordInvocation(m InvocationMetric)
	RecordCacheEvent(tool string, event CacheEvent)
	RecordBatchFlush(tool string, size int)
	RecordRegistration(outcome string)
}
