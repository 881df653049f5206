// Package config loads the service options. Values are layered with the
// later source winning: built-in defaults, then a config file when one is
// found, then DIAGRAMD_ environment variables, then explicit overrides
// from command-line flags.
package config

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces the environment variables, DIAGRAMD_PORT and so
	// on. Nested keys use underscores: DIAGRAMD_TRACING_ENABLED.
	EnvPrefix = "DIAGRAMD"

	// ConfigName is the stem of the config file searched for when no path
	// is given explicitly.
	ConfigName = "diagramd"
)

const (
	DefaultPort                  = 8080
	DefaultMaxConnections        = 100
	DefaultMaxRequestsPerSession = 10
	DefaultRequestTimeoutMS      = 60_000
	DefaultCacheBytes            = int64(256) << 20
	DefaultCacheTTLMS            = 3_600_000
	DefaultChartExecutorPath     = "python3"
	DefaultLLMModel              = "gpt-4o-mini"
	DefaultLLMTemperature        = 0.2
	DefaultTemplateDir           = "templates"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultTracingExporter       = "otlp"
	DefaultTracingSampleRate     = 1.0
)

// Options is the full set of recognized settings.
type Options struct {
	WSHost                string  `mapstructure:"ws_host" json:"ws_host" yaml:"ws_host"`
	Port                  int     `mapstructure:"port" json:"port" yaml:"port"`
	MaxConnections        int     `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections"`
	MaxRequestsPerSession int     `mapstructure:"max_requests_per_session" json:"max_requests_per_session" yaml:"max_requests_per_session"`
	RequestTimeoutMS      int     `mapstructure:"request_timeout_ms" json:"request_timeout_ms" yaml:"request_timeout_ms"`
	CacheBytes            int64   `mapstructure:"cache_bytes" json:"cache_bytes" yaml:"cache_bytes"`
	CacheTTLMS            int     `mapstructure:"cache_ttl_ms" json:"cache_ttl_ms" yaml:"cache_ttl_ms"`
	ObjectStoreURL        string  `mapstructure:"object_store_url" json:"object_store_url" yaml:"object_store_url"`
	ObjectStoreBucket     string  `mapstructure:"object_store_bucket" json:"object_store_bucket" yaml:"object_store_bucket"`
	ObjectStorePublic     bool    `mapstructure:"object_store_public" json:"object_store_public" yaml:"object_store_public"`
	MermaidCLIPath        string  `mapstructure:"mermaid_cli_path" json:"mermaid_cli_path" yaml:"mermaid_cli_path"`
	ChartExecutorEnabled  bool    `mapstructure:"chart_executor_enabled" json:"chart_executor_enabled" yaml:"chart_executor_enabled"`
	ChartExecutorPath     string  `mapstructure:"chart_executor_path" json:"chart_executor_path" yaml:"chart_executor_path"`
	LLMEndpoint           string  `mapstructure:"llm_endpoint" json:"llm_endpoint" yaml:"llm_endpoint"`
	LLMAPIKey             string  `mapstructure:"llm_api_key" json:"llm_api_key" yaml:"llm_api_key"`
	LLMModel              string  `mapstructure:"llm_model" json:"llm_model" yaml:"llm_model"`
	LLMTemperature        float64 `mapstructure:"llm_temperature" json:"llm_temperature" yaml:"llm_temperature"`
	TemplateDir           string  `mapstructure:"template_dir" json:"template_dir" yaml:"template_dir"`
	LogLevel              string  `mapstructure:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat             string  `mapstructure:"log_format" json:"log_format" yaml:"log_format"`

	Tracing TracingOptions `mapstructure:"tracing" json:"tracing" yaml:"tracing"`
}

// TracingOptions is the tracing block of the config file.
type TracingOptions struct {
	Enabled        bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Exporter       string  `mapstructure:"exporter" json:"exporter" yaml:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ZipkinEndpoint string  `mapstructure:"zipkin_endpoint" json:"zipkin_endpoint" yaml:"zipkin_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" json:"sample_rate" yaml:"sample_rate"`
}

// Load builds the effective options. file may be empty, in which case
// diagramd.yaml is searched in the working directory and /etc/diagramd;
// a missing file is not an error. overrides come from flags the user set
// explicitly and take precedence over everything.
func Load(file string, overrides map[string]any) (*Options, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/diagramd")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// setDefaults registers every recognized key. Keys without a meaningful
// default get a zero so AutomaticEnv can still resolve them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ws_host", "")
	v.SetDefault("port", DefaultPort)
	v.SetDefault("max_connections", DefaultMaxConnections)
	v.SetDefault("max_requests_per_session", DefaultMaxRequestsPerSession)
	v.SetDefault("request_timeout_ms", DefaultRequestTimeoutMS)
	v.SetDefault("cache_bytes", DefaultCacheBytes)
	v.SetDefault("cache_ttl_ms", DefaultCacheTTLMS)
	v.SetDefault("object_store_url", "")
	v.SetDefault("object_store_bucket", "")
	v.SetDefault("object_store_public", true)
	v.SetDefault("mermaid_cli_path", "")
	v.SetDefault("chart_executor_enabled", false)
	v.SetDefault("chart_executor_path", DefaultChartExecutorPath)
	v.SetDefault("llm_endpoint", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", DefaultLLMModel)
	v.SetDefault("llm_temperature", DefaultLLMTemperature)
	v.SetDefault("template_dir", DefaultTemplateDir)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", DefaultTracingExporter)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.zipkin_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("tracing.sample_rate", DefaultTracingSampleRate)
}

// Validate rejects option combinations the service cannot run with.
func (o *Options) Validate() error {
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("port %d out of range", o.Port)
	}
	if o.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be positive, got %d", o.MaxConnections)
	}
	if o.MaxRequestsPerSession < 1 {
		return fmt.Errorf("max_requests_per_session must be positive, got %d", o.MaxRequestsPerSession)
	}
	if o.RequestTimeoutMS < 1 {
		return fmt.Errorf("request_timeout_ms must be positive, got %d", o.RequestTimeoutMS)
	}
	if o.CacheBytes < 1 {
		return fmt.Errorf("cache_bytes must be positive, got %d", o.CacheBytes)
	}
	if o.CacheTTLMS < 1 {
		return fmt.Errorf("cache_ttl_ms must be positive, got %d", o.CacheTTLMS)
	}
	switch o.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", o.LogLevel)
	}
	switch o.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", o.LogFormat)
	}
	if o.LLMTemperature < 0 || o.LLMTemperature > 2 {
		return fmt.Errorf("llm_temperature %g out of range [0, 2]", o.LLMTemperature)
	}
	switch o.Tracing.Exporter {
	case "", "otlp", "zipkin":
	default:
		return fmt.Errorf("unknown tracing exporter %q", o.Tracing.Exporter)
	}
	if o.Tracing.SampleRate < 0 || o.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample_rate %g out of range [0, 1]", o.Tracing.SampleRate)
	}
	return nil
}

// Addr is the listen address in host:port form.
func (o *Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.WSHost, o.Port)
}

// RequestTimeout is the per-request wall clock as a duration.
func (o *Options) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutMS) * time.Millisecond
}

// CacheTTL is the per-entry cache lifetime as a duration.
func (o *Options) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLMS) * time.Millisecond
}
