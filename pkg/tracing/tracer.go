// Package tracing provides the shared OTel span helper for domain services.
//
// Without a registered TracerProvider the global no-op provider is used and
// every call is inert.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "osfiler"

// Attribute keys shared by graph spans.
const (
	AttrInvestigationID = attribute.Key("osfiler.investigation.id")
	AttrNodeID          = attribute.Key("osfiler.node.id")
	AttrRelationshipID  = attribute.Key("osfiler.relationship.id")
	AttrEntityType      = attribute.Key("osfiler.type.entity_type")
)

// Start creates a span as a child of the span in ctx. Callers must End it.
//
//	ctx, span := tracing.Start(ctx, "graph.delete_node", tracing.AttrNodeID.String(id))
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed when err is non-nil and returns err.
func RecordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
