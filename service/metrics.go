package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks accepted and rejected submissions and how
// long the submit-and-seal path takes.
type MetricsCollector struct {
	mu                  sync.RWMutex
	acceptedCount       int
	rejectedCount       int
	submissionTotalTime time.Duration
	firstSubmission     time.Time
	lastSubmission      time.Time
}

// MetricsSnapshot is the serializable view of collected metrics.
type MetricsSnapshot struct {
	Accepted         int       `json:"accepted"`
	Rejected         int       `json:"rejected"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	FirstSubmission  time.Time `json:"first_submission,omitempty"`
	LastSubmission   time.Time `json:"last_submission,omitempty"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordSubmission marks one accepted, sealed submission.
func (mc *MetricsCollector) RecordSubmission(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.acceptedCount == 0 {
		mc.firstSubmission = time.Now()
	}
	mc.acceptedCount++
	mc.lastSubmission = time.Now()
	mc.submissionTotalTime += duration
}

// RecordRejection marks one rejected submission.
func (mc *MetricsCollector) RecordRejection() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rejectedCount++
}

// Snapshot returns the current metrics.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsSnapshot{
		Accepted:         mc.acceptedCount,
		Rejected:         mc.rejectedCount,
		ProcessingTimeMs: mc.submissionTotalTime.Milliseconds(),
		FirstSubmission:  mc.firstSubmission,
		LastSubmission:   mc.lastSubmission,
	}
}

// Reset clears all metrics.
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.acceptedCount = 0
	mc.rejectedCount = 0
	mc.submissionTotalTime = 0
	mc.firstSubmission = time.Time{}
	mc.lastSubmission = time.Time{}
}
