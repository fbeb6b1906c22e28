package policy

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trace annotates the span carried by the state's context: an event for each
// failed attempt and the scheduled delay, and the error and an error status
// once the rest of the chain gives up. Without a recording span it only
// delegates.
func Trace() Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		span := trace.SpanFromContext(s.Context())
		if !span.IsRecording() {
			return delegate(s, next)
		}
		attrs := []attribute.KeyValue{
			attribute.Int("retry.attempt", s.Attempt()),
			attribute.Int64("retry.elapsed_ms", s.Elapsed().Milliseconds()),
		}
		span.AddEvent("retry.failed", trace.WithAttributes(
			append(attrs, attribute.String("retry.error", s.Err().Error()))...,
		))
		d, err := delegate(s, next)
		if err != nil {
			span.RecordError(err, trace.WithAttributes(attrs...))
			span.SetStatus(codes.Error, "retries exhausted")
			return 0, err
		}
		span.AddEvent("retry.scheduled", trace.WithAttributes(
			append(attrs, attribute.Int64("retry.delay_ms", d.Milliseconds()))...,
		))
		return d, nil
	}
}
