// Package otel binds sphereauth counters and the verify latency histogram to an
// OpenTelemetry metric.Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per histogram bucket. One callback reads
// [sphereauth.Engine.MetricsSnapshot] per collection. Callers own the MeterProvider.
package otel
