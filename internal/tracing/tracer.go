// Package tracing wires OpenTelemetry spans around interpreter lifecycle
// operations. When disabled it hands out a no-op tracer.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultServiceName  = "replpane"
	defaultOTLPEndpoint = "localhost:4317"
)

// Config configures the tracing subsystem.
type Config struct {
	Enabled bool
	// Exporter is one of "none", "file", "stdout" or "otlp".
	Exporter     string
	FilePath     string
	OTLPEndpoint string
	// SampleRate is the fraction of root spans kept; <= 0 means all.
	SampleRate  float64
	ServiceName string
	// ServiceVersion is attached to the resource when set.
	ServiceVersion string
}

// DefaultConfig returns tracing disabled with a file exporter preselected.
func DefaultConfig() Config {
	return Config{
		Exporter:     "file",
		OTLPEndpoint: defaultOTLPEndpoint,
		SampleRate:   1.0,
		ServiceName:  defaultServiceName,
	}
}

// exporterFactory builds the span exporter for one Config.Exporter value.
// A nil exporter with a nil error means spans stay in process.
type exporterFactory func(Config) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	"":     func(Config) (sdktrace.SpanExporter, error) { return nil, nil },
	"none": func(Config) (sdktrace.SpanExporter, error) { return nil, nil },
	"file": func(cfg Config) (sdktrace.SpanExporter, error) {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file_path required for file exporter")
		}
		return NewFileExporter(cfg.FilePath)
	},
	"stdout": func(Config) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	},
	"otlp": func(cfg Config) (sdktrace.SpanExporter, error) {
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		// The gRPC connection is established lazily.
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	},
}

// Provider owns the SDK tracer provider, if any.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a provider for cfg. A disabled config yields a
// provider whose tracer records nothing.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: Noop()}, nil
	}

	factory, ok := exporters[cfg.Exporter]
	if !ok {
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
	exporter, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1.0
	}

	opts := []sdktrace.TracerProviderOption{
		// Schemaless avoids schema URL conflicts with resource.Default().
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	sdk := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(sdk)
	return &Provider{sdk: sdk, tracer: sdk.Tracer(name)}, nil
}

// Tracer returns the configured tracer. Never nil.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes pending spans. It is a no-op when disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
