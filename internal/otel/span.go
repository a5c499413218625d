// Package otel provides OpenTelemetry span helpers shared by the sync server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys of sync spans
const (
	AttrPassID         = attribute.Key("pass.id")
	AttrPassDryRun     = attribute.Key("pass.dry_run")
	AttrPassAttempted  = attribute.Key("pass.attempted")
	AttrPassSucceeded  = attribute.Key("pass.succeeded")
	AttrPassFailed     = attribute.Key("pass.failed")
	AttrSourceName     = attribute.Key("repository.source")
	AttrGroupName      = attribute.Key("repository.group")
	AttrRepositoryName = attribute.Key("repository.name")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already carried by ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed. The status
// description is generic; remote git output and credentials in URLs stay in
// the exception event only.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// RepositoryAttributes returns the attributes identifying one repository update
func RepositoryAttributes(source, group, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSourceName.String(source),
		AttrGroupName.String(group),
		AttrRepositoryName.String(name),
	}
}
