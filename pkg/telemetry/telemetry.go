// Package telemetry installs the process-wide OpenTelemetry TracerProvider
// used to trace inbound HTTP requests; outbound RecommendationEngine calls
// are not instrumented. It is deliberately minimal: a single OTLP/HTTP exporter, a batch
// span processor, and a resource carrying the service name and version from
// config. Metrics are out of scope.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tunetrail/backend/pkg/config"
)

// shutdownTimeout bounds how long Close waits for buffered spans to flush.
const shutdownTimeout = 5 * time.Second

// Provider wraps the installed TracerProvider so callers can shut it down
// as part of the phased shutdown sequence without reaching into the otel
// global state directly.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// noopProvider is returned when telemetry is disabled (no OTLP endpoint
// configured); Close is a no-op.
type noopProvider struct{}

func (noopProvider) Close() error { return nil }

// Setup installs a global TracerProvider exporting spans over OTLP/HTTP to
// cfg.Telemetry.OTLPEndpoint, and a W3C trace-context propagator. When the
// endpoint is empty (the default for local development) it installs
// nothing and returns a no-op closer, matching how self-hosted deployments
// run without a collector.
func Setup(ctx context.Context, cfg *config.Config) (interface{ Close() error }, error) {
	if cfg.Telemetry.OTLPEndpoint == "" {
		return noopProvider{}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Telemetry.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(
			attribute.String("service.name", cfg.Telemetry.ServiceName),
			attribute.String("service.version", cfg.Telemetry.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

// Close flushes and shuts down the TracerProvider. It is registered with
// the Observe shutdown phase, so buffered spans drain before the process
// exits.
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.tp.Shutdown(ctx)
}
