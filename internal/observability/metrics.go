package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsProvider owns the meter provider and the Prometheus bridge that
// exposes collected metrics over HTTP.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
}

// NewMetricsProvider wires the OpenTelemetry metric SDK to a Prometheus
// exporter. The returned provider is also installed globally.
func NewMetricsProvider() (*MetricsProvider, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return &MetricsProvider{provider: provider}, nil
}

// Meter returns a named meter
func (p *MetricsProvider) Meter(name string) metric.Meter {
	return p.provider.Meter(name)
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint
func (p *MetricsProvider) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the provider
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.provider.Shutdown(ctx)
}

// Metrics holds the instruments recorded by the diagram pipeline. All record
// methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	connectionsActive metric.Int64UpDownCounter
	messagesTotal     metric.Int64Counter
	requestsTotal     metric.Int64Counter
	requestDuration   metric.Float64Histogram
	renderDuration    metric.Float64Histogram
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
	cacheEvictions    metric.Int64Counter
	fallbacksTotal    metric.Int64Counter
	uploadsTotal      metric.Int64Counter
	uploadRetries     metric.Int64Counter
	queueOverflows    metric.Int64Counter
}

// NewMetrics registers the diagram service instruments on the meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.connectionsActive, err = meter.Int64UpDownCounter(
		"diagram_ws_connections_active",
		metric.WithDescription("Currently open websocket connections"),
	); err != nil {
		return nil, err
	}

	if m.messagesTotal, err = meter.Int64Counter(
		"diagram_ws_messages_total",
		metric.WithDescription("Websocket messages by direction and type"),
	); err != nil {
		return nil, err
	}

	if m.requestsTotal, err = meter.Int64Counter(
		"diagram_requests_total",
		metric.WithDescription("Diagram requests by type, strategy and outcome"),
	); err != nil {
		return nil, err
	}

	if m.requestDuration, err = meter.Float64Histogram(
		"diagram_request_duration_seconds",
		metric.WithDescription("End-to-end request latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.renderDuration, err = meter.Float64Histogram(
		"diagram_render_duration_seconds",
		metric.WithDescription("Per-strategy render latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.cacheHits, err = meter.Int64Counter(
		"diagram_cache_hits_total",
		metric.WithDescription("Render cache hits"),
	); err != nil {
		return nil, err
	}

	if m.cacheMisses, err = meter.Int64Counter(
		"diagram_cache_misses_total",
		metric.WithDescription("Render cache misses"),
	); err != nil {
		return nil, err
	}

	if m.cacheEvictions, err = meter.Int64Counter(
		"diagram_cache_evictions_total",
		metric.WithDescription("Render cache evictions by cause"),
	); err != nil {
		return nil, err
	}

	if m.fallbacksTotal, err = meter.Int64Counter(
		"diagram_strategy_fallbacks_total",
		metric.WithDescription("Fallbacks from a failed strategy to the next candidate"),
	); err != nil {
		return nil, err
	}

	if m.uploadsTotal, err = meter.Int64Counter(
		"diagram_uploads_total",
		metric.WithDescription("Object store uploads by outcome"),
	); err != nil {
		return nil, err
	}

	if m.uploadRetries, err = meter.Int64Counter(
		"diagram_upload_retries_total",
		metric.WithDescription("Object store upload retry attempts"),
	); err != nil {
		return nil, err
	}

	if m.queueOverflows, err = meter.Int64Counter(
		"diagram_ws_queue_overflow_total",
		metric.WithDescription("Connections closed because the output queue stayed full"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// ConnectionOpened records a websocket connection being accepted
func (m *Metrics) ConnectionOpened(ctx context.Context) {
	if m == nil || m.connectionsActive == nil {
		return
	}
	m.connectionsActive.Add(ctx, 1)
}

// ConnectionClosed records a websocket connection ending
func (m *Metrics) ConnectionClosed(ctx context.Context) {
	if m == nil || m.connectionsActive == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
}

// Message records a websocket frame by direction ("in" or "out") and type
func (m *Metrics) Message(ctx context.Context, direction, msgType string) {
	if m == nil || m.messagesTotal == nil {
		return
	}
	m.messagesTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("direction", direction),
			attribute.String("type", msgType),
		))
}

// RequestCompleted records a finished request with its outcome
func (m *Metrics) RequestCompleted(ctx context.Context, diagramType, strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("diagram_type", diagramType),
		attribute.String("strategy", strategy),
		attribute.String("outcome", outcome),
	)
	if m.requestsTotal != nil {
		m.requestsTotal.Add(ctx, 1, attrs)
	}
	if m.requestDuration != nil {
		m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RenderObserved records how long one strategy spent producing output
func (m *Metrics) RenderObserved(ctx context.Context, strategy string, elapsed time.Duration) {
	if m == nil || m.renderDuration == nil {
		return
	}
	m.renderDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("strategy", strategy)))
}

// CacheHit records a render cache hit
func (m *Metrics) CacheHit(ctx context.Context) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}

// CacheMiss records a render cache miss
func (m *Metrics) CacheMiss(ctx context.Context) {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

// CacheEviction records an eviction by cause ("lru", "ttl", "bytes")
func (m *Metrics) CacheEviction(ctx context.Context, cause string) {
	if m == nil || m.cacheEvictions == nil {
		return
	}
	m.cacheEvictions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cause", cause)))
}

// Fallback records a strategy falling through to the next candidate
func (m *Metrics) Fallback(ctx context.Context, from, to string) {
	if m == nil || m.fallbacksTotal == nil {
		return
	}
	m.fallbacksTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
}

// UploadCompleted records an upload outcome ("ok", "failed", "inline")
func (m *Metrics) UploadCompleted(ctx context.Context, outcome string) {
	if m == nil || m.uploadsTotal == nil {
		return
	}
	m.uploadsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// UploadRetried records one retry attempt against the object store
func (m *Metrics) UploadRetried(ctx context.Context) {
	if m == nil || m.uploadRetries == nil {
		return
	}
	m.uploadRetries.Add(ctx, 1)
}

// QueueOverflow records a connection closed for a stalled output queue
func (m *Metrics) QueueOverflow(ctx context.Context) {
	if m == nil || m.queueOverflows == nil {
		return
	}
	m.queueOverflows.Add(ctx, 1)
}
