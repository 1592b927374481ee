// Package prometheus exposes engine metrics as a client_golang Collector.
//
// Register the Collector with your own registry, or mount Handler for a
// self-contained /metrics endpoint. Counter names are recovery_*_total; the
// provider latency histogram is recovery_provider_latency_seconds.
package prometheus
