package goForwarder

import (
	"context"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricSwapDirect)
	}
}

func BenchmarkMetricsIncDisabledParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricSwapDirect)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricSwapLatency, d)
		}
	})
}

var swapPathMetricIDs = [...]MetricID{
	MetricSwapDirect,
	MetricSwapElevated,
	MetricSwapFailed,
	MetricSwapUnauthorized,
	MetricPermissionModified,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(swapPathMetricIDs[idx])
			idx++
			if idx == len(swapPathMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkGuardedSwapElevated(b *testing.B) {
	te := newTestEngine(b, nil)
	ctx := context.Background()
	value := wei(1)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := te.GuardedSwap(ctx, poolAddr, value); err != nil {
			b.Fatal(err)
		}
	}
}
