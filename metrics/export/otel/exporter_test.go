package otel

import (
	"context"
	"sync"
	"testing"

	goForwarder "github.com/MrEthical07/goForwarder"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goForwarder.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goForwarder.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goForwarder.MetricsSnapshot{
		Counters:   make(map[goForwarder.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goForwarder.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goforwarder-test")

	src := &fakeSource{
		snapshot: goForwarder.MetricsSnapshot{
			Counters: map[goForwarder.MetricID]uint64{
				goForwarder.MetricSwapElevated:           3,
				goForwarder.MetricSwapDirect:             2,
				goForwarder.MetricPermissionDenied:       4,
				goForwarder.MetricElevationRestoreFailed: 1,
			},
			Histograms: map[goForwarder.MetricID][]uint64{
				goForwarder.MetricSwapLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	checks := []struct {
		name  string
		attrs map[string]string
		want  int64
	}{
		{SwapsName, map[string]string{"path": "elevated"}, 3},
		{SwapsName, map[string]string{"path": "direct"}, 2},
		{SwapsName, map[string]string{"path": "unauthorized"}, 0},
		{PermissionEventsName, map[string]string{"outcome": "denied"}, 4},
		{LedgerEventsName, map[string]string{"event": "restore_failed"}, 1},
		{LatencyBucketName, map[string]string{"call": "venue_swap", "le": "0.005"}, 1},
		{LatencyBucketName, map[string]string{"call": "venue_swap", "le": "+Inf"}, 8},
		{LatencyCountName, map[string]string{"call": "venue_swap"}, 8},
		{AuditDroppedName, nil, 1},
	}
	for _, c := range checks {
		got, ok := int64Point(rm, c.name, c.attrs)
		if !ok || got != c.want {
			t.Fatalf("%s%v: expected %d, got %d (found=%v)", c.name, c.attrs, c.want, got, ok)
		}
	}

	if _, ok := int64Point(rm, LatencyCountName, map[string]string{"call": "ledger_write"}); ok {
		t.Fatal("ledger_write latency reported without a histogram in the snapshot")
	}
}

func TestEveryCounterHasALabel(t *testing.T) {
	for _, id := range goForwarder.MetricIDs() {
		if id.IsHistogram() {
			if _, ok := latencyCalls[id]; !ok {
				t.Fatalf("histogram %s has no call label", id)
			}
			continue
		}
		if _, ok := counterLabels[id]; !ok {
			t.Fatalf("counter %s has no family label", id)
		}
	}
}

// int64Point returns the value of the data point of name whose attributes
// include every entry of attrs.
func int64Point(rm metricdata.ResourceMetrics, name string, attrs map[string]string) (int64, bool) {
	matches := func(set attribute.Set) bool {
		for k, v := range attrs {
			got, ok := set.Value(attribute.Key(k))
			if !ok || got.AsString() != v {
				return false
			}
		}
		return true
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if matches(dp.Attributes) {
						return dp.Value, true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if matches(dp.Attributes) {
						return dp.Value, true
					}
				}
			}
		}
	}
	return 0, false
}

func TestStartPipelineValidates(t *testing.T) {
	if _, err := StartPipeline(context.Background(), PipelineConfig{}, &fakeSource{}, nil); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := StartPipeline(context.Background(), PipelineConfig{Endpoint: "localhost:4317"}, nil, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := StartEnginePipeline(context.Background(), PipelineConfig{Endpoint: "localhost:4317"}, nil, nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
	var p *Pipeline
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil pipeline shutdown: %v", err)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goforwarder-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goforwarder-test")

	src := &fakeSource{
		snapshot: goForwarder.MetricsSnapshot{
			Counters: map[goForwarder.MetricID]uint64{
				goForwarder.MetricSwapElevated: 1,
			},
			Histograms: map[goForwarder.MetricID][]uint64{
				goForwarder.MetricSwapLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goForwarder.MetricSwapElevated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
