// Package metrics keeps the Engine's recovery counters and the provider
// latency histogram.
//
// Every MetricID owns one cache-line-padded uint64 slot, bumped with
// atomic adds; the histogram has eight fixed buckets ending in +Inf.
// Recording never allocates and never blocks a controller.
//
// Nothing here performs I/O or imports the root package. The Prometheus
// and OpenTelemetry exporters under metrics/export read [Snapshot] values.
package metrics
