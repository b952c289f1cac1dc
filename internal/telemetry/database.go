package telemetry

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey = "telemetry:span"

	// maxStatementLength caps db.statement on spans
	maxStatementLength = 500
)

// GORMTracingPlugin returns a GORM plugin that opens a span per statement.
// Spans become children of whatever span is on the statement context, so
// aggregate reads made during an index sync show up under the sync span.
func GORMTracingPlugin() gorm.Plugin {
	return &tracingPlugin{tracer: otel.Tracer("gorm")}
}

type tracingPlugin struct {
	tracer trace.Tracer
}

func (p *tracingPlugin) Name() string {
	return "telemetry:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	err := errors.Join(
		cb.Query().Before("gorm:query").Register("telemetry:before_select", p.before("select")),
		cb.Query().After("gorm:query").Register("telemetry:after_select", p.endSpan),
		cb.Create().Before("gorm:create").Register("telemetry:before_insert", p.before("insert")),
		cb.Create().After("gorm:create").Register("telemetry:after_insert", p.endSpan),
		cb.Update().Before("gorm:update").Register("telemetry:before_update", p.before("update")),
		cb.Update().After("gorm:update").Register("telemetry:after_update", p.endSpan),
		cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", p.before("delete")),
		cb.Delete().After("gorm:delete").Register("telemetry:after_delete", p.endSpan),
		cb.Raw().Before("gorm:raw").Register("telemetry:before_raw", p.before("raw")),
		cb.Raw().After("gorm:raw").Register("telemetry:after_raw", p.endSpan),
		cb.Row().Before("gorm:row").Register("telemetry:before_row", p.before("row")),
		cb.Row().After("gorm:row").Register("telemetry:after_row", p.endSpan),
	)
	if err != nil {
		return fmt.Errorf("failed to register tracing callbacks: %w", err)
	}
	return nil
}

func (p *tracingPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) { p.startSpan(db, operation) }
}

func (p *tracingPlugin) startSpan(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}
	system := "unknown"
	if db.Dialector != nil {
		system = db.Dialector.Name()
	}

	_, span := p.tracer.Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.table", table),
			attribute.String("db.operation", operation),
		),
	)
	db.InstanceSet(spanKey, span)
}

func (p *tracingPlugin) endSpan(db *gorm.DB) {
	raw, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLength {
			sql = sql[:maxStatementLength] + "..."
		}
		span.SetAttributes(attribute.String("db.statement", sql))
	}
	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	// Missing rows are an expected outcome when syncing a deleted recipe
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
