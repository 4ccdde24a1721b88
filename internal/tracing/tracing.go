// Package tracing wraps the dispatch loop's two hot spans —
// per-message processing and follow-on publication — in OpenTelemetry
// spans. This operationalizes the trace id / span id / hop count
// concept the agent framework's own envelope format reserves fields
// for, as real spans instead of passive wire fields; it never adds
// those fields back onto TaskMessage itself.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tksfz/trampoline/internal/dispatch"

var tracer = otel.Tracer(instrumentationName)

// StartProcessMessage opens the span covering the handling of one
// decoded message: forwarding it to its handler and republishing any
// follow-ons. Pull, ack and decode happen before the span opens.
func StartProcessMessage(ctx context.Context, msgID, msgType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch.process_message",
		trace.WithAttributes(
			attribute.String("task.message_id", msgID),
			attribute.String("task.type", msgType),
		),
	)
}

// StartPublishFollowon opens a child span covering a single follow-on
// publication.
func StartPublishFollowon(ctx context.Context, topic, followOnType string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch.publish_followon",
		trace.WithAttributes(
			attribute.String("task.topic", topic),
			attribute.String("task.type", followOnType),
		),
	)
}
