// Package otel binds engine metrics to OpenTelemetry observable instruments.
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is
// exported as one cumulative Int64ObservableGauge with an "le" attribute per
// bucket plus a _count gauge. One callback reads MetricsSnapshot per
// collection. Callers own the MeterProvider.
package otel
