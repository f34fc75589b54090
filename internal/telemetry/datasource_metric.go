package internaltelemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DataSourceMetrics holds the metric instruments for a windowed data source.
type DataSourceMetrics struct {
	FetchesIssuedCounter   metric.Int64Counter
	FetchesResolvedCounter metric.Int64Counter
	FetchFailuresCounter   metric.Int64Counter
	CacheHitsCounter       metric.Int64Counter
	FetchLatencyHistogram  metric.Int64Histogram
	InFlightUpDownCounter  metric.Int64UpDownCounter
}

// NewDataSourceMetrics creates and registers the data source instruments on
// meter.
func NewDataSourceMetrics(meter metric.Meter) (*DataSourceMetrics, error) {
	issued, err := meter.Int64Counter(
		"infinitygrid.datasource.fetches_issued",
		metric.WithDescription("Provider fetches issued on cache misses."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	resolved, err := meter.Int64Counter(
		"infinitygrid.datasource.fetches_resolved",
		metric.WithDescription("Provider fetches merged into the buffer, labelled by staleness."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"infinitygrid.datasource.fetch_failures",
		metric.WithDescription("Provider fetches that returned an error or an invalid page."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64Counter(
		"infinitygrid.datasource.cache_hits",
		metric.WithDescription("Range requests served from the buffer without a provider call."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Int64Histogram(
		"infinitygrid.datasource.fetch_duration",
		metric.WithDescription("Latency of provider fetches."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"infinitygrid.datasource.fetches_in_flight",
		metric.WithDescription("Provider fetches issued but not yet resolved."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &DataSourceMetrics{
		FetchesIssuedCounter:   issued,
		FetchesResolvedCounter: resolved,
		FetchFailuresCounter:   failures,
		CacheHitsCounter:       hits,
		FetchLatencyHistogram:  latency,
		InFlightUpDownCounter:  inFlight,
	}, nil
}

// NoopDataSourceMetrics returns instruments that record nothing.
func NoopDataSourceMetrics() *DataSourceMetrics {
	m, _ := NewDataSourceMetrics(noop.NewMeterProvider().Meter(""))
	return m
}

// RecordResolved counts a merged fetch and its latency.
func (m *DataSourceMetrics) RecordResolved(ctx context.Context, stale bool, elapsedMs int64) {
	m.FetchesResolvedCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("stale", stale)))
	m.FetchLatencyHistogram.Record(ctx, elapsedMs)
	m.InFlightUpDownCounter.Add(ctx, -1)
}

// RecordFailed counts a failed fetch.
func (m *DataSourceMetrics) RecordFailed(ctx context.Context, reason string, elapsedMs int64) {
	m.FetchFailuresCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.FetchLatencyHistogram.Record(ctx, elapsedMs)
	m.InFlightUpDownCounter.Add(ctx, -1)
}

// RecordIssued counts a fetch handed to the provider.
func (m *DataSourceMetrics) RecordIssued(ctx context.Context) {
	m.FetchesIssuedCounter.Add(ctx, 1)
	m.InFlightUpDownCounter.Add(ctx, 1)
}
