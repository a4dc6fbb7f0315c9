package obs

import (
	"sync/atomic"
	"time"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

const maxEventType = int(schema.MaxEventType)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	successCounts [maxEventType + 1]uint64
	failureCounts [maxEventType + 1]uint64
	errorCounts   map[string]*uint64
	sinkFailures  uint64
	queueDrops    uint64
	queueClosed   uint64

	opLatency   LatencyStats
	sinkLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Successes    map[schema.EventType]uint64
	Failures     map[schema.EventType]uint64
	ErrorCodes   map[string]uint64
	SinkFailures uint64
	QueueDrops   uint64
	QueueClosed  uint64
	OpLatency    LatencySnapshot
	SinkLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	m := &Metrics{errorCounts: make(map[string]*uint64)}
	for _, code := range exception.Codes() {
		m.errorCounts[code] = new(uint64)
	}
	m.errorCounts[exception.CodeInternal] = new(uint64)
	return m
}

// ObserveOperation records the outcome and duration of one ledger operation.
func (m *Metrics) ObserveOperation(eventType schema.EventType, d time.Duration, err error) {
	if m == nil {
		return
	}
	idx := int(eventType)
	if idx >= 0 && idx < len(m.successCounts) {
		if err == nil {
			atomic.AddUint64(&m.successCounts[idx], 1)
		} else {
			atomic.AddUint64(&m.failureCounts[idx], 1)
		}
	}
	if err != nil {
		if c, ok := m.errorCounts[exception.Code(err)]; ok {
			atomic.AddUint64(c, 1)
		}
	}
	m.opLatency.Observe(d)
}

// ObserveSink records one notification delivery.
func (m *Metrics) ObserveSink(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		atomic.AddUint64(&m.sinkFailures, 1)
	}
	m.sinkLatency.Observe(d)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	successes := make(map[schema.EventType]uint64)
	failures := make(map[schema.EventType]uint64)
	for i := range m.successCounts {
		if v := atomic.LoadUint64(&m.successCounts[i]); v > 0 {
			successes[schema.EventType(i)] = v
		}
		if v := atomic.LoadUint64(&m.failureCounts[i]); v > 0 {
			failures[schema.EventType(i)] = v
		}
	}
	codes := make(map[string]uint64)
	for code, c := range m.errorCounts {
		if v := atomic.LoadUint64(c); v > 0 {
			codes[code] = v
		}
	}
	return Snapshot{
		Successes:    successes,
		Failures:     failures,
		ErrorCodes:   codes,
		SinkFailures: atomic.LoadUint64(&m.sinkFailures),
		QueueDrops:   atomic.LoadUint64(&m.queueDrops),
		QueueClosed:  atomic.LoadUint64(&m.queueClosed),
		OpLatency:    m.opLatency.Snapshot(),
		SinkLatency:  m.sinkLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
