package tracing

import (
    "context"
    "sync/atomic"

    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const tracerName = "assisted-clustering"

var enabled atomic.Bool

// Setup installs a global stdout tracer provider when enable is true.
// The returned shutdown function flushes pending spans and should be deferred.
func Setup(enable bool) (func(context.Context) error, error) {
    enabled.Store(enable)
    if !enable {
        return func(context.Context) error { return nil }, nil
    }
    exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
    if err != nil {
        enabled.Store(false)
        return nil, err
    }
    tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
    otel.SetTracerProvider(tp)
    return tp.Shutdown, nil
}

// StartSpan starts a span when tracing is enabled; kv pairs become string attributes.
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, func()) {
    if !enabled.Load() {
        return ctx, func() {}
    }
    ctx, span := otel.Tracer(tracerName).Start(ctx, name)
    for i := 0; i+1 < len(kv); i += 2 {
        span.SetAttributes(attribute.String(kv[i], kv[i+1]))
    }
    return ctx, func() { span.End() }
}
