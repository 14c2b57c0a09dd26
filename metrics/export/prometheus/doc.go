// Package prometheus exposes the forwarding engine's metrics as a
// prometheus.Collector.
//
// [NewExporter] reads [goForwarder.Engine.MetricsSnapshot] on each scrape.
// Counter names are goforwarder_*_total; the latency histograms are
// goforwarder_swap_latency_seconds and goforwarder_forward_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers mount Handler or
//     register the Exporter themselves.
//   - Mutate engine state.
package prometheus
