// Package orchestrator drives one diagram request from validated payload
// to terminal event: cache lookup, route selection, strategy execution
// with fallback, artifact upload, and the ordered event stream back to
// the session. Every request ends in exactly one terminal frame.
package orchestrator

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/cache"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/chart"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/mermaid"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/router"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/storage"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/template"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/theme"
)

// DefaultRequestTimeout is the wall clock from Received to a terminal
// state.
const DefaultRequestTimeout = 60 * time.Second

// Coarse progress values reported with each stage.
const (
	progressGenerating = 30
	progressRendering  = 60
	progressSaving     = 85
)

// State names one step of the request lifecycle. Transitions are logged
// with the request id so a single request can be followed end to end.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateRouting    State = "routing"
	StateGenerating State = "generating"
	StateRendering  State = "rendering"
	StateCaching    State = "caching"
	StateUploading  State = "uploading"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Request is one decoded diagram_request, identified by the ids the
// envelope carried.
type Request struct {
	RequestID string
	SessionID string
	UserID    string
	Data      *protocol.RequestData
}

// Config wires the pipeline dependencies. Router, Templates and Cache
// are required; a nil Uploader disables uploads, nil Renderer and nil
// chart executor fall back to their in-process modes.
type Config struct {
	Router    *router.Router
	Templates *template.Library
	Mermaid   *mermaid.Generator
	Renderer  *mermaid.Renderer
	Charts    *chart.Generator
	Cache     *cache.Cache
	Uploader  storage.Uploader
	Metrics   *observability.Metrics
	Tracer    trace.Tracer
	Logger    *observability.Logger
	Timeout   time.Duration
}

// Orchestrator executes requests. Safe for concurrent use; each Process
// call is independent.
type Orchestrator struct {
	router    *router.Router
	templates *template.Library
	mermaid   *mermaid.Generator
	renderer  *mermaid.Renderer
	charts    *chart.Generator
	cache     *cache.Cache
	uploader  storage.Uploader
	metrics   *observability.Metrics
	tracer    trace.Tracer
	logger    *observability.Logger
	timeout   time.Duration
}

// New builds an Orchestrator from cfg, applying defaults for the
// optional pieces.
func New(cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}
	return &Orchestrator{
		router:    cfg.Router,
		templates: cfg.Templates,
		mermaid:   cfg.Mermaid,
		renderer:  cfg.Renderer,
		charts:    cfg.Charts,
		cache:     cfg.Cache,
		uploader:  cfg.Uploader,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger,
		timeout:   cfg.Timeout,
	}
}

// Process runs one request to its terminal event and returns the error
// behind a terminal error frame, or nil on success and cancellation.
// Cancelling ctx yields a diagram_response with status cancelled; the
// wall-clock timeout yields an error event with code Timeout. After the
// terminal frame nothing further is emitted for the request id.
func (o *Orchestrator) Process(ctx context.Context, req Request, sink Sink) error {
	start := time.Now()

	parent := ctx
	ctx = observability.ContextWithSessionID(ctx, req.SessionID)
	ctx = observability.ContextWithRequestID(ctx, req.RequestID)
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rawType := ""
	if req.Data != nil {
		rawType = req.Data.DiagramType
	}
	kind := protocol.NormalizeKind(rawType)

	ctx, span := observability.StartSpan(ctx, o.tracer, observability.SpanRequest,
		attribute.String(observability.AttrDiagramType, string(kind)))
	defer span.End()

	em := newEmitter(sink, req.RequestID)

	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "request panic",
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			em.fail(string(errors.CodeInternal), "internal error", "")
			o.finish(ctx, kind, "none", "error", start)
		}
	}()

	method, err := o.run(ctx, req, kind, em, start)
	if err == nil {
		o.transition(ctx, StateComplete)
		o.finish(ctx, kind, method, "success", start)
		return nil
	}

	switch {
	case parent.Err() != nil || errors.CodeOf(err) == errors.CodeCancelled:
		o.transition(ctx, StateCancelled)
		em.respond(protocol.DiagramResponseData{
			Status:      protocol.ResultCancelled,
			DiagramType: rawType,
		})
		o.logger.InfoContext(ctx, "request cancelled")
		o.finish(ctx, kind, method, "cancelled", start)
		return nil
	case stderrors.Is(err, context.DeadlineExceeded) || errors.CodeOf(err) == errors.CodeTimeout:
		err = errors.NewTimeoutError(err)
	}

	o.transition(ctx, StateFailed)
	code, message, details := wireError(err)
	span.SetAttributes(observability.ErrorAttrs(code, err)...)
	em.fail(code, message, details)
	o.logger.WarnContext(ctx, "request failed", "code", code, "error", err)
	o.finish(ctx, kind, method, outcomeFor(code), start)
	return err
}

// run executes the pipeline and returns the generation method that
// produced the artifact. Terminal event emission stays in Process so
// every exit path shares the same classification.
func (o *Orchestrator) run(ctx context.Context, req Request, kind protocol.Kind, em *emitter, start time.Time) (string, error) {
	o.transition(ctx, StateReceived)

	data := req.Data
	if err := protocol.ValidateRequest(data); err != nil {
		return "none", err
	}
	o.transition(ctx, StateValidated)

	resolved, err := theme.Resolve(data.Theme)
	if err != nil {
		return "none", errors.NewValidationError(err.Error(), "theme")
	}

	key, err := requestKey(kind, data, resolved)
	if err != nil {
		return "none", errors.NewInternalError(err)
	}

	lookupCtx, lookupSpan := observability.StartSpan(ctx, o.tracer, observability.SpanCacheLookup)
	entry, hit, err := o.cache.GetOrCompute(lookupCtx, key, func(runCtx context.Context) (*cache.Entry, error) {
		return o.compute(runCtx, req, kind, data, resolved, em)
	})
	lookupSpan.SetAttributes(attribute.Bool(observability.AttrCacheHit, hit))
	lookupSpan.End()
	if err != nil {
		return "none", err
	}

	o.respond(ctx, em, data, resolved, entry, hit, start)
	return entry.Method, nil
}

// compute is the single-flight body: it generates, uploads, and returns
// the entry the cache stores. It runs detached from any one caller, so
// coalesced waiters survive the first caller's cancellation; em drops
// emissions once the owning request has reached a terminal state.
func (o *Orchestrator) compute(ctx context.Context, req Request, kind protocol.Kind, data *protocol.RequestData, resolved theme.Resolved, em *emitter) (entry *cache.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "generation panic",
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			entry, err = nil, errors.NewInternalError(fmt.Errorf("generation panic: %v", r))
		}
	}()

	o.transition(ctx, StateRouting)
	_, routeSpan := observability.StartSpan(ctx, o.tracer, observability.SpanRoute)
	routes, err := o.router.Routes(kind)
	routeSpan.End()
	if err != nil {
		return nil, err
	}

	art, method, err := o.generate(ctx, kind, data, resolved, routes, em)
	if err != nil {
		return nil, err
	}

	o.transition(ctx, StateCaching)
	entry = &cache.Entry{Artifact: art, Method: method}

	if o.uploader != nil && o.uploader.Enabled() {
		o.transition(ctx, StateUploading)
		em.status(protocol.StatusSaving, "uploading artifact", progressSaving)

		uploadCtx, uploadSpan := observability.StartSpan(ctx, o.tracer, observability.SpanUpload,
			attribute.String(observability.AttrContentType, art.ContentType()))
		url, uploadErr := o.uploader.Upload(uploadCtx, art, req.SessionID)
		uploadSpan.End()

		switch {
		case uploadErr == nil:
			entry.PublicURL = url
			o.metrics.UploadCompleted(ctx, "ok")
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// Inline delivery is the documented degradation; the
			// request still succeeds.
			o.metrics.UploadCompleted(ctx, "failed")
			o.logger.WarnContext(ctx, "upload failed, delivering inline", "error", uploadErr)
		}
	} else {
		o.metrics.UploadCompleted(ctx, "inline")
	}

	return entry, nil
}

// generate walks the routed strategies in order. Retriable failures fall
// through to the next candidate; anything else, including a done
// context, stops the walk.
func (o *Orchestrator) generate(ctx context.Context, kind protocol.Kind, data *protocol.RequestData, resolved theme.Resolved, routes []router.Route, em *emitter) (artifact.Artifact, string, error) {
	var lastErr error
	for i, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		strategy := string(route.Strategy)
		if i > 0 {
			o.metrics.Fallback(ctx, string(routes[i-1].Strategy), strategy)
			o.logger.WarnContext(ctx, "strategy fallback",
				"from", string(routes[i-1].Strategy), "to", strategy, "cause", lastErr)
		}

		o.transition(ctx, StateGenerating)
		em.status(protocol.StatusGenerating, "generating via "+strategy, progressGenerating)

		attemptStart := time.Now()
		art, err := o.runStrategy(ctx, route.Strategy, kind, data, resolved, em)
		if err == nil {
			o.metrics.RenderObserved(ctx, strategy, time.Since(attemptStart))
			return art, strategy, nil
		}
		// A deadline hit mid-strategy must not read as a retriable
		// generator failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		if !errors.IsRetriable(err) {
			return nil, "", err
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, "", errors.NewUnsupportedDiagramKind(string(kind))
	}
	return nil, "", errors.NewAllStrategiesExhausted(string(kind), lastErr)
}

func (o *Orchestrator) runStrategy(ctx context.Context, strategy router.Strategy, kind protocol.Kind, data *protocol.RequestData, resolved theme.Resolved, em *emitter) (artifact.Artifact, error) {
	switch strategy {
	case router.StrategySVGTemplate:
		_, span := observability.StartSpan(ctx, o.tracer, observability.SpanTemplateFill,
			observability.RequestAttrs(string(kind), string(strategy))...)
		defer span.End()
		art, err := o.templates.Fill(string(kind), data.Labels(), resolved)
		if err != nil {
			return nil, errors.NewGeneratorError(string(strategy), err)
		}
		return art, nil

	case router.StrategyMermaid:
		genCtx, genSpan := observability.StartSpan(ctx, o.tracer, observability.SpanMermaidGenerate,
			observability.RequestAttrs(string(kind), string(strategy))...)
		doc, err := o.mermaid.Generate(genCtx, kind, data.Content, data.DataPoints)
		genSpan.End()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.NewGeneratorError(string(strategy), err)
		}
		if o.renderer.Enabled() {
			o.transition(ctx, StateRendering)
			em.status(protocol.StatusRendering, "rendering mermaid", progressRendering)
			renderCtx, renderSpan := observability.StartSpan(ctx, o.tracer, observability.SpanMermaidRender)
			err = o.renderer.Render(renderCtx, doc)
			renderSpan.End()
			if err != nil {
				// Render only errors when the context is done; CLI
				// failures degrade to raw DSL inside the renderer.
				return nil, err
			}
		}
		return doc, nil

	case router.StrategyChart:
		chartCtx, span := observability.StartSpan(ctx, o.tracer, observability.SpanChartGenerate,
			observability.RequestAttrs(string(kind), string(strategy))...)
		defer span.End()
		art, err := o.charts.Generate(chartCtx, kind, chartParams(data, resolved), data.DataPoints)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.NewGeneratorError(string(strategy), err)
		}
		return art, nil
	}
	return nil, errors.NewGeneratorError(string(strategy), fmt.Errorf("unknown strategy"))
}

// respond emits the success frame. Content is inlined unless the
// artifact was uploaded and is binary; binary inline bodies are base64.
func (o *Orchestrator) respond(ctx context.Context, em *emitter, data *protocol.RequestData, resolved theme.Resolved, entry *cache.Entry, hit bool, start time.Time) {
	art := entry.Artifact
	response := protocol.DiagramResponseData{
		Status:      protocol.ResultSuccess,
		DiagramType: data.DiagramType,
		OutputType:  art.Output(),
		ContentType: art.ContentType(),
		URL:         entry.PublicURL,
		Metadata: &protocol.ResponseMetadata{
			GenerationMethod: entry.Method,
			CacheHit:         hit,
			GenerationTimeMS: time.Since(start).Milliseconds(),
		},
	}
	if themed(entry.Method) {
		applied := resolved
		response.Metadata.ThemeApplied = &applied
	}
	if entry.PublicURL == "" || !artifact.Binary(art) {
		response.Content = inlineContent(art)
	}
	em.respond(response)
	if hit {
		o.logger.InfoContext(ctx, "request served from cache", "method", entry.Method)
	}
}

// finish records the request-level metric once per request.
func (o *Orchestrator) finish(ctx context.Context, kind protocol.Kind, method, outcome string, start time.Time) {
	o.metrics.RequestCompleted(ctx, string(kind), method, outcome, time.Since(start))
}

func (o *Orchestrator) transition(ctx context.Context, state State) {
	o.logger.InfoContext(ctx, "request state", "state", string(state))
}

// themed reports whether the strategy applies the resolved theme to the
// artifact. Mermaid output carries its own styling.
func themed(method string) bool {
	return method == string(router.StrategySVGTemplate) || method == string(router.StrategyChart)
}

func inlineContent(a artifact.Artifact) string {
	if artifact.Binary(a) {
		return base64.StdEncoding.EncodeToString(a.Payload())
	}
	return string(a.Payload())
}

// requestKey derives the cache key from the semantic request: the
// normalized kind, the content with whitespace runs collapsed, the data
// points, and the resolved theme. Raw request JSON never participates,
// so key ordering and spacing differences coalesce.
func requestKey(kind protocol.Kind, data *protocol.RequestData, resolved theme.Resolved) (string, error) {
	payload, err := cache.CanonicalJSON(map[string]any{
		"content":     strings.Join(strings.Fields(data.Content), " "),
		"data_points": data.DataPoints,
	})
	if err != nil {
		return "", err
	}
	themeJSON, err := cache.CanonicalJSON(resolved)
	if err != nil {
		return "", err
	}
	return cache.NewKey([]byte(kind), payload, themeJSON), nil
}

// chartParams maps request constraints and the resolved palette onto
// the chart builder.
func chartParams(data *protocol.RequestData, resolved theme.Resolved) chart.Params {
	params := chart.Params{
		Title:  chartTitle(data.Content),
		Colors: resolved.SlotPalette(len(data.DataPoints)),
	}
	if c := data.Constraints; c != nil {
		params.Width = c.Width
		params.Height = c.Height
	}
	return params
}

// chartTitle lifts the first non-blank content line into the chart
// title, truncated to keep the figure legible.
func chartTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 120 {
			line = line[:120]
		}
		return line
	}
	return ""
}

// wireError maps an error chain onto the wire triple. Unclassified
// causes surface as InternalError with no detail so internals never
// leak to clients.
func wireError(err error) (code, message, details string) {
	var de *errors.DiagramError
	if stderrors.As(err, &de) {
		return string(de.Code), de.Message, de.Details
	}
	switch errors.CodeOf(err) {
	case errors.CodeTimeout:
		return string(errors.CodeTimeout), "request timed out", ""
	case errors.CodeCancelled:
		return string(errors.CodeCancelled), "request cancelled by client", ""
	default:
		return string(errors.CodeInternal), "internal error", ""
	}
}

func outcomeFor(code string) string {
	switch errors.Code(code) {
	case errors.CodeTimeout:
		return "timeout"
	case errors.CodeCancelled:
		return "cancelled"
	default:
		return "error"
	}
}
