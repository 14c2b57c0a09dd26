// Package internaldefs holds the metric names, help text and bucket bounds
// shared by the Prometheus and OTel exporters, so both publish identical
// series for the forwarding engine's counters and histograms.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
