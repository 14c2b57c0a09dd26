package internaldefs

import (
	"strings"
	"testing"

	goForwarder "github.com/MrEthical07/goForwarder"
)

func TestDefsCoverEveryMetric(t *testing.T) {
	if got, want := len(CounterDefs)+len(HistogramDefs), len(goForwarder.MetricIDs()); got != want {
		t.Fatalf("expected %d defs, got %d", want, got)
	}
	seen := map[string]bool{}
	for _, d := range CounterDefs {
		if !strings.HasSuffix(d.Name, "_total") || d.Help == "" || seen[d.Name] {
			t.Fatalf("bad counter def %+v", d)
		}
		seen[d.Name] = true
	}
	for _, d := range HistogramDefs {
		if !strings.HasSuffix(d.Name, "_seconds") || d.Help == "" || seen[d.Name] {
			t.Fatalf("bad histogram def %+v", d)
		}
		seen[d.Name] = true
	}
}

func TestHistogramBounds(t *testing.T) {
	want := []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}
	if len(HistogramBounds) != len(want) {
		t.Fatalf("expected %d bounds, got %v", len(want), HistogramBounds)
	}
	for i := range want {
		if HistogramBounds[i] != want[i] {
			t.Fatalf("bound %d: expected %s, got %s", i, want[i], HistogramBounds[i])
		}
	}
	if HistogramBoundSuffix[0] != "0_005" || HistogramBoundSuffix[7] != "inf" {
		t.Fatalf("unexpected suffixes %v", HistogramBoundSuffix)
	}
	if len(HistogramUpperSeconds) != 7 || HistogramUpperSeconds[6] != 0.5 {
		t.Fatalf("unexpected upper bounds %v", HistogramUpperSeconds)
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
