package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/cache"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/chart"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/config"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/llm"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/mermaid"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/orchestrator"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/router"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/server"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/storage"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/template"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the diagram service",
		RunE:  runServeCommand,
	}
	cmd.Flags().String("host", "", "bind address (overrides ws_host)")
	cmd.Flags().Int("port", config.DefaultPort, "listen port")
	cmd.Flags().String("template-dir", config.DefaultTemplateDir, "SVG template directory")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "log verbosity: debug, info, warn, error")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log output format: text, json")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	opts, err := config.Load(configFile, overridesFromFlags(cmd))
	if err != nil {
		return err
	}
	return runServe(opts)
}

// overridesFromFlags collects only the flags the user actually set, so
// flag defaults do not mask environment or file values.
func overridesFromFlags(cmd *cobra.Command) map[string]any {
	overrides := make(map[string]any)
	flags := cmd.Flags()
	if flags.Changed("host") {
		overrides["ws_host"], _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		overrides["port"], _ = flags.GetInt("port")
	}
	if flags.Changed("template-dir") {
		overrides["template_dir"], _ = flags.GetString("template-dir")
	}
	if flags.Changed("log-level") {
		overrides["log_level"], _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		overrides["log_format"], _ = flags.GetString("log-format")
	}
	return overrides
}

// runServe wires the components and serves until SIGINT or SIGTERM.
func runServe(opts *config.Options) error {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  opts.LogLevel,
		Format: opts.LogFormat,
	})
	base := logging.FromObservability(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := observability.NewTracingProvider(ctx, observability.TracingConfig{
		Enabled:        opts.Tracing.Enabled,
		Exporter:       opts.Tracing.Exporter,
		OTLPEndpoint:   opts.Tracing.OTLPEndpoint,
		ZipkinEndpoint: opts.Tracing.ZipkinEndpoint,
		SampleRate:     opts.Tracing.SampleRate,
		ServiceName:    "diagramd",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	metricsProvider, err := observability.NewMetricsProvider()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metrics, err := observability.NewMetrics(metricsProvider.Meter("diagramd"))
	if err != nil {
		return fmt.Errorf("create meters: %w", err)
	}
	gauges := observability.NewServiceGauges()

	templates, err := template.Load(opts.TemplateDir, logger)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	store, err := cache.New(cache.Config{
		MaxBytes: opts.CacheBytes,
		TTL:      opts.CacheTTL(),
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	uploader, err := storage.NewUploader(storage.Config{
		BaseURL: opts.ObjectStoreURL,
		Bucket:  opts.ObjectStoreBucket,
		Public:  opts.ObjectStorePublic,
		Retry:   storage.DefaultRetryConfig(),
	}, base, metrics)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	llmClient := llm.New(llm.Config{
		Endpoint:    opts.LLMEndpoint,
		APIKey:      opts.LLMAPIKey,
		Model:       opts.LLMModel,
		Temperature: opts.LLMTemperature,
	}, base)
	generator := mermaid.NewGenerator(llmClient, base)
	renderer := mermaid.NewRenderer(mermaid.RendererConfig{Path: opts.MermaidCLIPath}, base)
	executor := chart.NewExecutor(chart.ExecutorConfig{
		Enabled: opts.ChartExecutorEnabled,
		Path:    opts.ChartExecutorPath,
	}, base)

	orch := orchestrator.New(orchestrator.Config{
		Router:    router.New(templates.IDs()),
		Templates: templates,
		Mermaid:   generator,
		Renderer:  renderer,
		Charts:    chart.NewGenerator(executor, base),
		Cache:     store,
		Uploader:  uploader,
		Metrics:   metrics,
		Tracer:    tracing.Tracer("diagramd"),
		Logger:    logger,
		Timeout:   opts.RequestTimeout(),
	})

	srv := server.New(server.Config{
		Host:                  opts.WSHost,
		Port:                  opts.Port,
		MaxConnections:        opts.MaxConnections,
		MaxRequestsPerSession: opts.MaxRequestsPerSession,
		Version:               version,
	}, server.Deps{
		Orchestrator: orch,
		Cache:        store,
		Templates:    templates,
		Renderer:     renderer,
		Executor:     executor,
		Uploader:     uploader,
		Metrics:      metrics,
		Gauges:       gauges,
		MetricsHTTP:  metricsProvider.Handler(),
		Logger:       logger,
	})

	logger.Info("starting diagram service",
		"version", version,
		"addr", opts.Addr(),
		"templates", templates.Len(),
		"mermaid_cli", renderer.Enabled(),
		"chart_executor", executor.Enabled(),
		"object_store", uploader.Enabled(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return metricsProvider.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("diagram service stopped")
	return nil
}
