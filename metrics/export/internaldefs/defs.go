package internaldefs

import (
	"strconv"
	"strings"

	goForwarder "github.com/MrEthical07/goForwarder"
)

const namespace = "goforwarder"

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goForwarder.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   goForwarder.MetricID
	Name string
	Help string
}

var help = map[goForwarder.MetricID]string{
	goForwarder.MetricPermissionModified:          "Successful permission mask changes.",
	goForwarder.MetricPermissionDenied:            "Administrator-only calls rejected for the caller.",
	goForwarder.MetricSwapDirect:                  "Swaps by callers holding EXTERNAL_PERMISSION.",
	goForwarder.MetricSwapElevated:                "Swaps run inside an elevation bracket.",
	goForwarder.MetricSwapFailed:                  "Swaps that reached the venue and failed.",
	goForwarder.MetricSwapUnauthorized:            "Swaps rejected for an unauthorized caller.",
	goForwarder.MetricSwapRateLimited:             "Swaps rejected by the per-caller swap budget.",
	goForwarder.MetricForwardFailed:               "Failed fee-exemption writes to the ledger.",
	goForwarder.MetricBreakerOpen:                 "Times the venue circuit breaker opened.",
	goForwarder.MetricOwnershipPreconditionFailed: "Elevations refused because the forwarder does not own the ledger.",
	goForwarder.MetricElevationRestoreFailed:      "Elevation restores that failed and quarantined an account.",
	goForwarder.MetricAccountReconciled:           "Accounts reconciled with the ledger.",
	goForwarder.MetricSwapLatency:                 "Venue swap latency.",
	goForwarder.MetricForwardLatency:              "Ledger fee-exemption write latency.",
}

// CounterDefs lists every counter in MetricID order.
var CounterDefs = buildCounterDefs()

// HistogramDefs lists every latency histogram in MetricID order.
var HistogramDefs = buildHistogramDefs()

// HistogramBounds are the bucket upper bounds in seconds, as Prometheus
// label values, ending with +Inf.
var HistogramBounds = buildBounds(func(ms float64) string {
	return strconv.FormatFloat(ms/1000, 'f', -1, 64)
}, "+Inf")

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = buildBounds(func(ms float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(ms/1000, 'f', -1, 64), ".", "_")
}, "inf")

// HistogramUpperSeconds are the finite bucket bounds in seconds.
var HistogramUpperSeconds = func() []float64 {
	out := make([]float64, 0, len(goForwarder.HistogramBounds))
	for _, ms := range goForwarder.HistogramBounds {
		out = append(out, ms/1000)
	}
	return out
}()

// AuditDroppedName is the counter exported for dropped audit events.
const AuditDroppedName = namespace + "_audit_dropped_total"

func buildCounterDefs() []CounterDef {
	var out []CounterDef
	for _, id := range goForwarder.MetricIDs() {
		if id.IsHistogram() {
			continue
		}
		out = append(out, CounterDef{ID: id, Name: namespace + "_" + id.String() + "_total", Help: help[id]})
	}
	return out
}

func buildHistogramDefs() []HistogramDef {
	var out []HistogramDef
	for _, id := range goForwarder.MetricIDs() {
		if !id.IsHistogram() {
			continue
		}
		out = append(out, HistogramDef{ID: id, Name: namespace + "_" + id.String() + "_seconds", Help: help[id]})
	}
	return out
}

func buildBounds(format func(ms float64) string, last string) []string {
	out := make([]string, 0, len(goForwarder.HistogramBounds)+1)
	for _, ms := range goForwarder.HistogramBounds {
		out = append(out, format(ms))
	}
	return append(out, last)
}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
