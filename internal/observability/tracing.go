package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingConfig configures distributed tracing
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	Exporter       string  `yaml:"exporter" json:"exporter"` // otlp, zipkin
	OTLPEndpoint   string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	ZipkinEndpoint string  `yaml:"zipkin_endpoint" json:"zipkin_endpoint"`
	SampleRate     float64 `yaml:"sample_rate" json:"sample_rate"`
	ServiceName    string  `yaml:"service_name" json:"service_name"`
	ServiceVersion string  `yaml:"service_version" json:"service_version"`
}

// TracingProvider manages the tracer provider lifecycle
type TracingProvider struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewTracingProvider builds a tracer provider from config. When disabled it
// installs a no-op provider so span calls stay valid everywhere.
func NewTracingProvider(ctx context.Context, config TracingConfig) (*TracingProvider, error) {
	if !config.Enabled {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return &TracingProvider{
			provider: provider,
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch config.Exporter {
	case "zipkin":
		exporter, err = zipkin.New(config.ZipkinEndpoint)
	default:
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(config.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", config.Exporter, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampleRate := config.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
	)
	otel.SetTracerProvider(provider)

	return &TracingProvider{
		provider: provider,
		shutdown: provider.Shutdown,
	}, nil
}

// Tracer returns a named tracer
func (t *TracingProvider) Tracer(name string) trace.Tracer {
	return t.provider.Tracer(name)
}

// Shutdown flushes and stops the provider
func (t *TracingProvider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.shutdown(ctx)
}

// Span names for the diagram pipeline
const (
	SpanWSSession       = "diagram.ws.session"
	SpanRequest         = "diagram.request"
	SpanRoute           = "diagram.route"
	SpanThemeResolve    = "diagram.theme.resolve"
	SpanTemplateFill    = "diagram.template.fill"
	SpanMermaidGenerate = "diagram.mermaid.generate"
	SpanMermaidRender   = "diagram.mermaid.render"
	SpanLLMComplete     = "diagram.llm.complete"
	SpanChartGenerate   = "diagram.chart.generate"
	SpanChartExecute    = "diagram.chart.execute"
	SpanCacheLookup     = "diagram.cache.lookup"
	SpanUpload          = "diagram.storage.upload"
)

// Attribute keys shared across spans
const (
	AttrSessionID   = "diagram.session_id"
	AttrUserID      = "diagram.user_id"
	AttrRequestID   = "diagram.request_id"
	AttrDiagramType = "diagram.type"
	AttrStrategy    = "diagram.strategy"
	AttrCacheHit    = "diagram.cache_hit"
	AttrContentType = "diagram.content_type"
	AttrErrorCode   = "diagram.error_code"
)

// StartSpan starts a span carrying any request identifiers present on ctx
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RequestAttrs builds the standard attributes for a diagram request span
func RequestAttrs(diagramType, strategy string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDiagramType, diagramType),
		attribute.String(AttrStrategy, strategy),
	}
}

// ErrorAttrs builds the standard attributes for a failed span
func ErrorAttrs(code string, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrErrorCode, code),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}
