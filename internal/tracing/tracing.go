// Package tracing centralizes the OpenTelemetry tracer used to wrap one
// span per job firing, so the Historical and Live collectors report spans
// under a single named tracer rather than each constructing their own.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/quasarhq/quasar"

// StartJobSpan starts a span named op, tagged with the firing's provider
// and interval, returning the derived context and an end func to defer.
func StartJobSpan(ctx context.Context, op, provider, interval string) (context.Context, func()) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op, trace.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("interval", interval),
	))
	return ctx, func() { span.End() }
}
