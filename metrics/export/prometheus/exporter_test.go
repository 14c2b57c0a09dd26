package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goForwarder.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goForwarder.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: goForwarder.MetricsSnapshot{
			Counters: map[goForwarder.MetricID]uint64{
				goForwarder.MetricSwapElevated: 7,
			},
			Histograms: map[goForwarder.MetricID][]uint64{
				goForwarder.MetricSwapLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestCollectorCounters(t *testing.T) {
	exp := NewExporterFromSource(sampleSource())

	expected := `
# HELP goforwarder_swap_elevated_total Swaps run inside an elevation bracket.
# TYPE goforwarder_swap_elevated_total counter
goforwarder_swap_elevated_total 7
# HELP goforwarder_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE goforwarder_audit_dropped_total counter
goforwarder_audit_dropped_total 2
`
	if err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"goforwarder_swap_elevated_total", "goforwarder_audit_dropped_total"); err != nil {
		t.Fatal(err)
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	exp := NewExporterFromSource(sampleSource())

	expected := `
# HELP goforwarder_swap_latency_seconds Venue swap latency.
# TYPE goforwarder_swap_latency_seconds histogram
goforwarder_swap_latency_seconds_bucket{le="0.005"} 1
goforwarder_swap_latency_seconds_bucket{le="0.01"} 3
goforwarder_swap_latency_seconds_bucket{le="0.025"} 6
goforwarder_swap_latency_seconds_bucket{le="0.05"} 10
goforwarder_swap_latency_seconds_bucket{le="0.1"} 15
goforwarder_swap_latency_seconds_bucket{le="0.25"} 21
goforwarder_swap_latency_seconds_bucket{le="0.5"} 28
goforwarder_swap_latency_seconds_bucket{le="+Inf"} 36
goforwarder_swap_latency_seconds_sum 0
goforwarder_swap_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(exp, strings.NewReader(expected), "goforwarder_swap_latency_seconds"); err != nil {
		t.Fatal(err)
	}
}

func TestCollectorSkipsDisabledHistograms(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{snapshot: goForwarder.MetricsSnapshot{
		Counters: map[goForwarder.MetricID]uint64{},
	}})
	if n := testutil.CollectAndCount(exp, "goforwarder_swap_latency_seconds"); n != 0 {
		t.Fatalf("expected no histogram series, got %d", n)
	}
}

func TestExporterPassesLint(t *testing.T) {
	problems, err := testutil.CollectAndLint(NewExporterFromSource(sampleSource()))
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("lint problems: %v", problems)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	srv := httptest.NewServer(NewExporterFromSource(sampleSource()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{"goforwarder_swap_elevated_total 7", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in output", want)
		}
	}
}

func TestExporterWithEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewExporter(nil)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}
