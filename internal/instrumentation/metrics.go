package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency.
const (
	attrOperation = "operation"
	attrStatus    = "status"
	attrResult    = "result"
	attrTrigger   = "trigger"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Poll run metrics
	pollRunsTotal   metric.Int64Counter
	pollRunDuration metric.Float64Histogram

	// Per-entry pipeline metrics
	entriesProcessedTotal metric.Int64Counter
	entryDuration         metric.Float64Histogram

	// Remote storage metrics
	remoteOperationsTotal   metric.Int64Counter
	remoteOperationDuration metric.Float64Histogram

	// Token lifecycle metrics
	tokenRefreshTotal metric.Int64Counter

	// Mail delivery metrics
	mailSendTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.pollRunsTotal, err = meter.Int64Counter(
		"poll_runs_total",
		metric.WithDescription("Total number of folder poll runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_runs_total counter: %w", err)
	}

	m.pollRunDuration, err = meter.Float64Histogram(
		"poll_run_duration_seconds",
		metric.WithDescription("Folder poll run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_run_duration_seconds histogram: %w", err)
	}

	m.entriesProcessedTotal, err = meter.Int64Counter(
		"entries_processed_total",
		metric.WithDescription("Total number of remote entries fed through the intake pipeline"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entries_processed_total counter: %w", err)
	}

	m.entryDuration, err = meter.Float64Histogram(
		"entry_duration_seconds",
		metric.WithDescription("Per-entry pipeline duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry_duration_seconds histogram: %w", err)
	}

	m.remoteOperationsTotal, err = meter.Int64Counter(
		"remote_operations_total",
		metric.WithDescription("Total number of remote storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote_operations_total counter: %w", err)
	}

	m.remoteOperationDuration, err = meter.Float64Histogram(
		"remote_operation_duration_seconds",
		metric.WithDescription("Remote storage operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote_operation_duration_seconds histogram: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_refresh_total counter: %w", err)
	}

	m.mailSendTotal, err = meter.Int64Counter(
		"mail_send_total",
		metric.WithDescription("Total number of outbound mail transmissions"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_send_total counter: %w", err)
	}

	return m, nil
}

// RecordPollRun records one folder poll run with its trigger ("schedule" or
// "webhook"), status, and duration.
func (m *Metrics) RecordPollRun(ctx context.Context, trigger, status string, duration time.Duration) {
	if m.pollRunsTotal == nil || m.pollRunDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTrigger, trigger),
		attribute.String(attrStatus, status),
	}

	m.pollRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pollRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEntry records one pipeline entry with its result outcome
// ("sent", "skipped", "failed") and duration.
func (m *Metrics) RecordEntry(ctx context.Context, result string, duration time.Duration) {
	if m.entriesProcessedTotal == nil || m.entryDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.entriesProcessedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.entryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRemoteOperation records a remote storage operation
// (list_folder, download, upload, delete, move) with status and duration.
func (m *Metrics) RecordRemoteOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.remoteOperationsTotal == nil || m.remoteOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.remoteOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.remoteOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTokenRefresh records an OAuth token refresh attempt.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordMailSend records an outbound mail transmission attempt.
func (m *Metrics) RecordMailSend(ctx context.Context, status string) {
	if m.mailSendTotal == nil {
		return // Instrumentation not initialized
	}

	m.mailSendTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrStatus, status),
	))
}
