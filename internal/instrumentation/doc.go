// Package instrumentation provides OpenTelemetry metrics and tracing
// for the intake pipeline.
//
// The package records poll runs, per-entry processing outcomes, remote
// storage operations, token refreshes, and mail deliveries. Metrics can
// be exported via Prometheus (pull), OTLP (push), or stdout; traces via
// OTLP or stdout. Everything is disabled by default and configured
// through OTEL_* environment variables.
package instrumentation
