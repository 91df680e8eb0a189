package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ppiankov/veracity"

// OTelSink records verification metrics through an OpenTelemetry meter.
// Without a configured SDK the global provider is a no-op.
type OTelSink struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	evidence metric.Int64Histogram
}

// NewOTelSink creates instruments on the given provider, or on the global
// provider when mp is nil
func NewOTelSink(mp metric.MeterProvider) (*OTelSink, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var s OTelSink
	var err error
	if s.requests, err = meter.Int64Counter("veracity.verifications",
		metric.WithDescription("Completed verifications"),
		metric.WithUnit("{verification}")); err != nil {
		return nil, err
	}
	if s.latency, err = meter.Float64Histogram("veracity.verification.duration",
		metric.WithDescription("End-to-end verification latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if s.failures, err = meter.Int64Counter("veracity.provider.failures",
		metric.WithDescription("Provider failures by kind"),
		metric.WithUnit("{failure}")); err != nil {
		return nil, err
	}
	if s.evidence, err = meter.Int64Histogram("veracity.evidence.items",
		metric.WithDescription("Evidence items per verification"),
		metric.WithUnit("{item}")); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *OTelSink) Record(ctx context.Context, ev Event) {
	attrs := metric.WithAttributes(
		attribute.String("strategy", string(ev.Strategy)),
		attribute.String("verdict", string(ev.Verdict)),
		attribute.Bool("cache_hit", ev.CacheHit),
	)
	s.requests.Add(ctx, 1, attrs)
	s.latency.Record(ctx, ev.Latency.Seconds(), metric.WithAttributes(attribute.String("strategy", string(ev.Strategy))))
	s.evidence.Record(ctx, int64(ev.EvidenceCount))
	for _, kind := range failureKinds(ev.Failures) {
		s.failures.Add(ctx, int64(ev.Failures[kind]), metric.WithAttributes(attribute.String("kind", kind)))
	}
}
