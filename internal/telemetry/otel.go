package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for every metric this
// package produces.
const meterName = "github.com/sixfold-ai/memcore"

// latencyBuckets are histogram bucket boundaries in milliseconds, tuned for
// provider-call latencies rather than sub-millisecond in-process work.
var latencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// OTelSink records Records as OpenTelemetry metric instruments: a call
// counter (by op and outcome) and a call-duration histogram (by op).
type OTelSink struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelSink creates an OTelSink using mp. Returns an error if instrument
// creation fails.
func NewOTelSink(mp metric.MeterProvider) (*OTelSink, error) {
	m := mp.Meter(meterName)

	calls, err := m.Int64Counter("memcore.calls",
		metric.WithDescription("Total public core calls by operation and outcome."),
	)
	if err != nil {
		return nil, err
	}

	duration, err := m.Float64Histogram("memcore.call.duration",
		metric.WithDescription("Latency of public core calls by operation."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, err
	}

	return &OTelSink{calls: calls, duration: duration}, nil
}

// Record implements Sink.
func (s *OTelSink) Record(ctx context.Context, r Record) {
	attrs := metric.WithAttributes(
		attribute.String("op", r.Op),
		attribute.String("outcome", r.Outcome),
		attribute.String("provider_kinds", strings.Join(r.ProviderKinds, ",")),
	)
	s.calls.Add(ctx, 1, attrs)
	s.duration.Record(ctx, float64(r.DurationMs), metric.WithAttributes(attribute.String("op", r.Op)))
}

var _ Sink = (*OTelSink)(nil)
