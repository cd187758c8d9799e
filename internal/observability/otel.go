// Package observability sets up OpenTelemetry tracing for the video service.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const DefaultServiceName = "lesson-video"

const (
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvSampleRatio  = "OTEL_SAMPLER_RATIO"
)

type Options struct {
	Enabled     bool
	ServiceName string
	Version     string
	// Writer receives spans from the stdout exporter. Defaults to os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global tracer provider and propagator. When tracing is
// disabled the global no-op provider stays in place and the returned
// ShutdownFunc does nothing.
func Init(ctx context.Context, logger *slog.Logger, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		return noopShutdown, nil
	}

	name := strings.TrimSpace(opts.ServiceName)
	if name == "" {
		name = DefaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(opts.Version),
		),
	)
	if err != nil && logger != nil {
		logger.Warn("otel resource init failed (continuing)", "error", err)
	}

	exporter, err := buildExporter(ctx, logger, opts.Writer)
	if err != nil {
		return noopShutdown, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio()))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if logger != nil {
		logger.Info("otel tracing initialized", "service", name, "endpoint", endpoint())
	}
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, logger *slog.Logger, w io.Writer) (sdktrace.SpanExporter, error) {
	if ep := endpoint(); ep != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep)}
		if insecure() {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}

	if w == nil {
		w = os.Stdout
	}
	if logger != nil {
		logger.Warn("otel using stdout exporter (no OTLP endpoint configured)")
	}
	return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
}

func endpoint() string {
	return strings.TrimSpace(os.Getenv(EnvOTLPEndpoint))
}

func insecure() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvOTLPInsecure))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// sampleRatio defaults to sampling every trace; the service is low volume.
func sampleRatio() float64 {
	v := strings.TrimSpace(os.Getenv(EnvSampleRatio))
	if v == "" {
		return 1
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 1
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
