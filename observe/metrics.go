package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records gateway telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProviderCall records one provider call with duration and
	// error status.
	RecordProviderCall(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCacheResult records a cache lookup outcome
	// ("fresh", "stale" or "miss").
	RecordCacheResult(ctx context.Context, collection, result string)

	// RecordRefresh records the outcome of a background revalidation.
	RecordRefresh(ctx context.Context, collection string, err error)

	// RecordCircuitTransition records a circuit breaker state change
	// for a provider.
	RecordCircuitTransition(ctx context.Context, provider, from, to string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	callCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheCount   metric.Int64Counter
	refreshCount metric.Int64Counter
	circuitCount metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	callCount, err := meter.Int64Counter(
		"gateway.provider.calls",
		metric.WithDescription("Total number of provider calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"gateway.provider.errors",
		metric.WithDescription("Total number of failed provider calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"gateway.provider.duration_ms",
		metric.WithDescription("Provider call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheCount, err := meter.Int64Counter(
		"gateway.cache.results",
		metric.WithDescription("Cache lookup outcomes by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	refreshCount, err := meter.Int64Counter(
		"gateway.refresh.total",
		metric.WithDescription("Background revalidations by outcome"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	circuitCount, err := meter.Int64Counter(
		"gateway.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		callCount:    callCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheCount:   cacheCount,
		refreshCount: refreshCount,
		circuitCount: circuitCount,
	}, nil
}

// RecordProviderCall records metrics for one provider call.
func (m *metricsImpl) RecordProviderCall(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("content.op", meta.Op),
	}
	if meta.Collection != "" {
		attrs = append(attrs, attribute.String("content.collection", meta.Collection))
	}
	if meta.Provider != "" {
		attrs = append(attrs, attribute.String("content.provider", meta.Provider))
	}

	opt := metric.WithAttributes(attrs...)

	m.callCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordCacheResult records a cache lookup outcome.
func (m *metricsImpl) RecordCacheResult(ctx context.Context, collection, result string) {
	m.cacheCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("content.collection", collection),
		attribute.String("cache.result", result),
	))
}

// RecordRefresh records the outcome of a background revalidation.
func (m *metricsImpl) RecordRefresh(ctx context.Context, collection string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.refreshCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("content.collection", collection),
		attribute.String("refresh.outcome", outcome),
	))
}

// RecordCircuitTransition records a circuit breaker state change.
func (m *metricsImpl) RecordCircuitTransition(ctx context.Context, provider, from, to string) {
	m.circuitCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("content.provider", provider),
		attribute.String("circuit.from", from),
		attribute.String("circuit.to", to),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordProviderCall(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordCacheResult(ctx context.Context, collection, result string)       {}
func (m *noopMetrics) RecordRefresh(ctx context.Context, collection string, err error)        {}
func (m *noopMetrics) RecordCircuitTransition(ctx context.Context, provider, from, to string) {}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	return &noopMetrics{}
}
