package otel

import (
	"context"
	"errors"
	"fmt"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/MrEthical07/goForwarder/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Instrument names. Engine counters are folded into three labelled families
// so dashboards can group by outcome instead of by metric name.
const (
	SwapsName            = "goforwarder.swaps"
	PermissionEventsName = "goforwarder.permission.events"
	LedgerEventsName     = "goforwarder.ledger.events"
	LatencyBucketName    = "goforwarder.call.latency.bucket"
	LatencyCountName     = "goforwarder.call.latency.count"
	AuditDroppedName     = "goforwarder.audit.dropped"
)

type family int

const (
	familySwaps family = iota
	familyPermission
	familyLedger
)

// counterLabel places one engine counter in its family and names the
// attribute value it is reported under.
type counterLabel struct {
	family family
	key    string
	value  string
}

var counterLabels = map[goForwarder.MetricID]counterLabel{
	goForwarder.MetricSwapDirect:                  {familySwaps, "path", "direct"},
	goForwarder.MetricSwapElevated:                {familySwaps, "path", "elevated"},
	goForwarder.MetricSwapFailed:                  {familySwaps, "path", "failed"},
	goForwarder.MetricSwapUnauthorized:            {familySwaps, "path", "unauthorized"},
	goForwarder.MetricSwapRateLimited:             {familySwaps, "path", "rate_limited"},
	goForwarder.MetricPermissionModified:          {familyPermission, "outcome", "modified"},
	goForwarder.MetricPermissionDenied:            {familyPermission, "outcome", "denied"},
	goForwarder.MetricForwardFailed:               {familyLedger, "event", "forward_failed"},
	goForwarder.MetricBreakerOpen:                 {familyLedger, "event", "venue_breaker_open"},
	goForwarder.MetricOwnershipPreconditionFailed: {familyLedger, "event", "ownership_precondition_failed"},
	goForwarder.MetricElevationRestoreFailed:      {familyLedger, "event", "restore_failed"},
	goForwarder.MetricAccountReconciled:           {familyLedger, "event", "reconciled"},
}

var latencyCalls = map[goForwarder.MetricID]string{
	goForwarder.MetricSwapLatency:    "venue_swap",
	goForwarder.MetricForwardLatency: "ledger_write",
}

type observedCounter struct {
	id         goForwarder.MetricID
	instrument metric.Int64ObservableCounter
	attrs      metric.MeasurementOption
}

type observedLatency struct {
	id      goForwarder.MetricID
	buckets [8]metric.MeasurementOption
	total   metric.MeasurementOption
}

// OTelExporter publishes the engine's metrics as observable instruments. One
// callback reads a single snapshot per collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	latencies    []observedLatency
	bucketGauge  metric.Int64ObservableGauge
	countGauge   metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

type metricsSource interface {
	MetricsSnapshot() goForwarder.MetricsSnapshot
	AuditDropped() uint64
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goForwarder.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	families := map[family]metric.Int64ObservableCounter{}
	for f, spec := range map[family][2]string{
		familySwaps:      {SwapsName, "Swap requests by the path they took."},
		familyPermission: {PermissionEventsName, "Administrator permission calls by outcome."},
		familyLedger:     {LedgerEventsName, "Ledger and venue events that affect fee exemption."},
	} {
		ins, err := meter.Int64ObservableCounter(spec[0], metric.WithDescription(spec[1]))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", spec[0], err)
		}
		families[f] = ins
	}

	bucketGauge, err := meter.Int64ObservableGauge(LatencyBucketName,
		metric.WithDescription("Cumulative count of external calls at or below the le bound, in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", LatencyBucketName, err)
	}
	countGauge, err := meter.Int64ObservableGauge(LatencyCountName,
		metric.WithDescription("Total external calls timed."))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", LatencyCountName, err)
	}
	auditDropped, err := meter.Int64ObservableCounter(AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", AuditDroppedName, err)
	}

	exporter := &OTelExporter{
		source:       source,
		bucketGauge:  bucketGauge,
		countGauge:   countGauge,
		auditDropped: auditDropped,
	}

	for _, def := range internaldefs.CounterDefs {
		label, ok := counterLabels[def.ID]
		if !ok {
			label = counterLabel{family: familyLedger, key: "event", value: def.ID.String()}
		}
		exporter.counters = append(exporter.counters, observedCounter{
			id:         def.ID,
			instrument: families[label.family],
			attrs:      metric.WithAttributes(attribute.String(label.key, label.value)),
		})
	}

	for _, def := range internaldefs.HistogramDefs {
		call := latencyCalls[def.ID]
		if call == "" {
			call = def.ID.String()
		}
		l := observedLatency{
			id:    def.ID,
			total: metric.WithAttributes(attribute.String("call", call)),
		}
		for i, le := range internaldefs.HistogramBounds {
			l.buckets[i] = metric.WithAttributes(attribute.String("call", call), attribute.String("le", le))
		}
		exporter.latencies = append(exporter.latencies, l)
	}

	observables := []metric.Observable{bucketGauge, countGauge, auditDropped}
	for _, ins := range families {
		observables = append(observables, ins)
	}

	exporter.registration, err = meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]), c.attrs)
	}
	for _, l := range e.latencies {
		raw, ok := snapshot.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i := range cumulative {
			observer.ObserveInt64(e.bucketGauge, int64(cumulative[i]), l.buckets[i])
		}
		observer.ObserveInt64(e.countGauge, int64(cumulative[len(cumulative)-1]), l.total)
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
