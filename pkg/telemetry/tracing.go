package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "wolfnet"

// TracingConfig configures span creation.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "wolfnet").
	TracerName string

	// IncludeAddress adds the client's network address to spans.
	// May identify players - disabled by default.
	IncludeAddress bool

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider
}

// TracingOption configures span creation.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithIncludeAddress enables client addresses on spans.
func WithIncludeAddress(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeAddress = include
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// Tracer starts spans for server frames and snapshot sends. Configure the
// global OpenTelemetry provider in main() to export them.
type Tracer struct {
	tracer         trace.Tracer
	includeAddress bool
}

// NewTracer creates a Tracer.
func NewTracer(opts ...TracingOption) *Tracer {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.Provider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:         tp.Tracer(config.TracerName),
		includeAddress: config.IncludeAddress,
	}
}

// StartFrame starts the span covering one server frame.
func (t *Tracer) StartFrame(ctx context.Context, frame int64, clients int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "wolfnet.frame",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int64("wolfnet.frame", frame),
			attribute.Int("wolfnet.clients", clients),
		),
	)
}

// SnapshotInfo describes a snapshot about to be built.
type SnapshotInfo struct {
	Client     int
	Address    string
	MessageNum uint32
}

// SnapshotResult describes a snapshot once it has been encoded.
type SnapshotResult struct {
	Bytes    int
	Entities int
	DeltaNum uint32 // zero when sent in full
}

// StartSnapshot starts the span covering one client snapshot.
func (t *Tracer) StartSnapshot(ctx context.Context, info SnapshotInfo) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.Int("wolfnet.client", info.Client),
		attribute.Int64("wolfnet.message_num", int64(info.MessageNum)),
	}
	if t.includeAddress && info.Address != "" {
		attrs = append(attrs, attribute.String("wolfnet.address", info.Address))
	}
	return t.tracer.Start(ctx, "wolfnet.snapshot",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attrs...),
	)
}

// EndSnapshot adds the encoded size to span and ends it like EndSpan.
func EndSnapshot(span trace.Span, res SnapshotResult, err error) {
	span.SetAttributes(
		attribute.Int("wolfnet.bytes", res.Bytes),
		attribute.Int("wolfnet.entities", res.Entities),
		attribute.Int64("wolfnet.delta_num", int64(res.DeltaNum)),
		attribute.Bool("wolfnet.delta", res.DeltaNum != 0),
	)
	EndSpan(span, err)
}

// EndSpan records err on span, sets its status and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
