package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Authentication outcomes recorded by the gate.
const (
	AuthOutcomeAuthenticated = "authenticated"
	AuthOutcomeMissing       = "missing"
	AuthOutcomeInvalid       = "invalid"
	AuthOutcomeRateLimited   = "rate_limited"
)

// BusinessMetrics records counts and durations of lifecycle operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation, e.g. ("apikey", "apikey_create", "success").
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes the latency of one operation in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

// AuthMetrics records the outcome of every authentication attempt at the gate.
type AuthMetrics interface {
	RecordAuthentication(ctx context.Context, outcome string)
}

// Recorder groups every metric the service records.
type Recorder interface {
	BusinessMetrics
	AuthMetrics
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	authCounter      metric.Int64Counter
}

// NewBusinessMetrics creates the business and authentication instruments, prefixed with namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (Recorder, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of API key lifecycle operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of API key lifecycle operations in seconds"),
		metric.WithUnit("s"),
		// Hashing dominates; bcrypt cost 12 lands around 250ms.
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	authCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_authentications_total", namespace),
		metric.WithDescription("Total number of API key authentication attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authentication counter: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		authCounter:      authCounter,
	}, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordAuthentication(ctx context.Context, outcome string) {
	b.authCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// NoOpBusinessMetrics discards everything. Used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op recorder.
func NewNoOpBusinessMetrics() Recorder {
	return &NoOpBusinessMetrics{}
}

// RecordOperation does nothing.
func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

// RecordDuration does nothing.
func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

// RecordAuthentication does nothing.
func (n *NoOpBusinessMetrics) RecordAuthentication(ctx context.Context, outcome string) {}
