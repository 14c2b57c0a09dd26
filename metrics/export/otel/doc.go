// Package otel provides OpenTelemetry metric bindings for the forwarding
// engine's counters and latency histograms.
//
// [NewOTelExporter] registers labelled observable instruments on a caller's
// Meter: swaps by path, permission calls by outcome, ledger events by kind,
// and cumulative latency buckets per external call. A single callback reads
// [goForwarder.Engine.MetricsSnapshot] on each collection cycle.
//
// [StartPipeline] is the batteries-included form used by the daemon: it owns
// a MeterProvider that pushes to an OTLP/gRPC collector.
//
// # What this package must NOT do
//
//   - Mutate engine state.
package otel
