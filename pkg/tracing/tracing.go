package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const DefaultServiceName = "sentinel"

type Options struct {
	ServiceName string
	// Enabled turns on the OTLP gRPC exporter. When false spans are created
	// but never exported.
	Enabled  bool
	Endpoint string
	Insecure bool
}

// InitTracer installs a global tracer provider and returns it together with
// the service tracer. Callers own Shutdown.
func InitTracer(ctx context.Context, opts Options) (*sdktrace.TracerProvider, trace.Tracer, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}

	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))
	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if opts.Enabled {
		exporterOpts := []otlptracegrpc.Option{}
		if opts.Endpoint != "" {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, tp.Tracer(opts.ServiceName), nil
}
