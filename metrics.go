package goForwarder

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricPermissionModified MetricID = iota
	MetricPermissionDenied
	MetricSwapDirect
	MetricSwapElevated
	MetricSwapFailed
	MetricSwapUnauthorized
	MetricSwapRateLimited
	MetricForwardFailed
	MetricBreakerOpen
	MetricOwnershipPreconditionFailed
	// MetricElevationRestoreFailed counts state invariant violations, each of
	// which quarantines one account.
	MetricElevationRestoreFailed
	MetricAccountReconciled
	// MetricSwapLatency and MetricForwardLatency carry histograms only.
	MetricSwapLatency
	MetricForwardLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricPermissionModified:          "permission_modified",
	MetricPermissionDenied:            "permission_denied",
	MetricSwapDirect:                  "swap_direct",
	MetricSwapElevated:                "swap_elevated",
	MetricSwapFailed:                  "swap_failed",
	MetricSwapUnauthorized:            "swap_unauthorized",
	MetricSwapRateLimited:             "swap_rate_limited",
	MetricForwardFailed:               "forward_failed",
	MetricBreakerOpen:                 "venue_breaker_open",
	MetricOwnershipPreconditionFailed: "ownership_precondition_failed",
	MetricElevationRestoreFailed:      "elevation_restore_failed",
	MetricAccountReconciled:           "account_reconciled",
	MetricSwapLatency:                 "swap_latency",
	MetricForwardLatency:              "forward_latency",
}

// String returns the snake_case name exporters use for id.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric id in order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// IsHistogram reports whether id records latency buckets rather than a count.
func (id MetricID) IsHistogram() bool {
	return id == MetricSwapLatency || id == MetricForwardLatency
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the inclusive upper bounds, in milliseconds, of the
// first seven latency buckets. The last bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]float64{5, 10, 25, 50, 100, 250, 500}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters and latency histograms. A nil or
// disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and, when latency
// is enabled, the histogram buckets.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount || id.IsHistogram() {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !id.IsHistogram() {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id.IsHistogram() {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricSwapLatency, MetricForwardLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := float64(d.Milliseconds())
	for i, bound := range HistogramBounds {
		if ms <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
