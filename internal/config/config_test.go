package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyConfigFile pins Load to a file that sets nothing, so tests see the
// defaults regardless of what sits in the working directory.
func emptyConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagramd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	return path
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagramd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	opts, err := Load(emptyConfigFile(t), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, opts.Port)
	assert.Equal(t, DefaultMaxConnections, opts.MaxConnections)
	assert.Equal(t, DefaultMaxRequestsPerSession, opts.MaxRequestsPerSession)
	assert.Equal(t, DefaultRequestTimeoutMS, opts.RequestTimeoutMS)
	assert.Equal(t, DefaultCacheBytes, opts.CacheBytes)
	assert.Equal(t, DefaultCacheTTLMS, opts.CacheTTLMS)
	assert.True(t, opts.ObjectStorePublic)
	assert.Empty(t, opts.ObjectStoreURL)
	assert.Empty(t, opts.MermaidCLIPath)
	assert.False(t, opts.ChartExecutorEnabled)
	assert.Equal(t, DefaultChartExecutorPath, opts.ChartExecutorPath)
	assert.Equal(t, DefaultTemplateDir, opts.TemplateDir)
	assert.Equal(t, DefaultLogLevel, opts.LogLevel)
	assert.Equal(t, DefaultLogFormat, opts.LogFormat)
	assert.False(t, opts.Tracing.Enabled)
	assert.Equal(t, DefaultTracingExporter, opts.Tracing.Exporter)
	assert.Equal(t, DefaultTracingSampleRate, opts.Tracing.SampleRate)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
ws_host: 10.0.0.5
port: 9000
max_connections: 25
request_timeout_ms: 15000
object_store_url: https://store.example.com
object_store_bucket: diagrams
mermaid_cli_path: /usr/local/bin/mmdc
chart_executor_enabled: true
log_level: debug
log_format: json
tracing:
  enabled: true
  exporter: zipkin
  sample_rate: 0.5
`)

	opts, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", opts.WSHost)
	assert.Equal(t, 9000, opts.Port)
	assert.Equal(t, 25, opts.MaxConnections)
	assert.Equal(t, 15000, opts.RequestTimeoutMS)
	assert.Equal(t, "https://store.example.com", opts.ObjectStoreURL)
	assert.Equal(t, "diagrams", opts.ObjectStoreBucket)
	assert.Equal(t, "/usr/local/bin/mmdc", opts.MermaidCLIPath)
	assert.True(t, opts.ChartExecutorEnabled)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "json", opts.LogFormat)
	assert.True(t, opts.Tracing.Enabled)
	assert.Equal(t, "zipkin", opts.Tracing.Exporter)
	assert.Equal(t, 0.5, opts.Tracing.SampleRate)

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultMaxRequestsPerSession, opts.MaxRequestsPerSession)
	assert.Equal(t, DefaultCacheBytes, opts.CacheBytes)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "port: 9000\nlog_level: debug\n")

	t.Setenv("DIAGRAMD_PORT", "9443")
	t.Setenv("DIAGRAMD_CACHE_BYTES", "1048576")
	t.Setenv("DIAGRAMD_MAX_REQUESTS_PER_SESSION", "3")
	t.Setenv("DIAGRAMD_TRACING_ENABLED", "true")

	opts, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9443, opts.Port)
	assert.Equal(t, int64(1048576), opts.CacheBytes)
	assert.Equal(t, 3, opts.MaxRequestsPerSession)
	assert.True(t, opts.Tracing.Enabled)
	// File-only keys still apply.
	assert.Equal(t, "debug", opts.LogLevel)
}

func TestOverridesBeatEnv(t *testing.T) {
	t.Setenv("DIAGRAMD_PORT", "9443")

	opts, err := Load(emptyConfigFile(t), map[string]any{
		"port":         7070,
		"template_dir": "custom-templates",
	})
	require.NoError(t, err)

	assert.Equal(t, 7070, opts.Port)
	assert.Equal(t, "custom-templates", opts.TemplateDir)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfigFile(t, "port: [not a scalar\n")
		_, err := Load(path, nil)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Options {
		t.Helper()
		opts, err := Load(emptyConfigFile(t), nil)
		require.NoError(t, err)
		return opts
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"port zero", func(o *Options) { o.Port = 0 }},
		{"port too large", func(o *Options) { o.Port = 70000 }},
		{"max_connections zero", func(o *Options) { o.MaxConnections = 0 }},
		{"max_requests_per_session negative", func(o *Options) { o.MaxRequestsPerSession = -1 }},
		{"request_timeout_ms zero", func(o *Options) { o.RequestTimeoutMS = 0 }},
		{"cache_bytes zero", func(o *Options) { o.CacheBytes = 0 }},
		{"cache_ttl_ms zero", func(o *Options) { o.CacheTTLMS = 0 }},
		{"unknown log level", func(o *Options) { o.LogLevel = "trace" }},
		{"unknown log format", func(o *Options) { o.LogFormat = "logfmt" }},
		{"temperature out of range", func(o *Options) { o.LLMTemperature = 2.5 }},
		{"unknown tracing exporter", func(o *Options) { o.Tracing.Exporter = "jaeger" }},
		{"sample rate out of range", func(o *Options) { o.Tracing.SampleRate = 1.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := valid(t)
			tc.mutate(opts)
			assert.Error(t, opts.Validate())
		})
	}

	t.Run("defaults pass", func(t *testing.T) {
		assert.NoError(t, valid(t).Validate())
	})
}

func TestAccessors(t *testing.T) {
	opts := &Options{WSHost: "0.0.0.0", Port: 8080, RequestTimeoutMS: 60000, CacheTTLMS: 3600000}
	assert.Equal(t, "0.0.0.0:8080", opts.Addr())
	assert.Equal(t, 60*time.Second, opts.RequestTimeout())
	assert.Equal(t, time.Hour, opts.CacheTTL())
}
