package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SearchCall describes one Elasticsearch request for tracing
type SearchCall struct {
	Operation string
	Index     string
	DocID     string
	BulkSize  int
}

// TraceSearchCall starts a client span named es.<operation>
func TraceSearchCall(ctx context.Context, call SearchCall) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "elasticsearch"),
		attribute.String("es.operation", call.Operation),
	}
	if call.Index != "" {
		attrs = append(attrs, attribute.String("es.index", call.Index))
	}
	if call.DocID != "" {
		attrs = append(attrs, attribute.String("es.doc_id", call.DocID))
	}
	if call.BulkSize > 0 {
		attrs = append(attrs, attribute.Int("es.bulk_size", call.BulkSize))
	}

	return otel.Tracer("elasticsearch").Start(ctx, "es."+call.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// TraceCacheCall starts a client span named cache.<operation>
func TraceCacheCall(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer("cache").Start(ctx, "cache."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
		),
	)
}

// RecordServiceError marks the span failed
func RecordServiceError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}

// RecordItemCount marks the span successful with the number of items it
// returned or touched
func RecordItemCount(span trace.Span, count int) {
	span.SetAttributes(attribute.Int("result.item_count", count))
	span.SetStatus(codes.Ok, "")
}

// RecordCacheHit marks a cache lookup successful
func RecordCacheHit(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	span.SetStatus(codes.Ok, "")
}
