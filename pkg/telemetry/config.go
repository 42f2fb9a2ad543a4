package telemetry

import (
	"fmt"
	"time"
)

// Config contains the telemetry configuration for a tapestry process.
type Config struct {
	// ServiceName identifies the process in traces and metrics.
	ServiceName string

	// ServiceVersion is the version of the binary.
	ServiceVersion string

	// Logging contains logging configuration.
	Logging LoggingConfig

	// Tracing contains tracing configuration.
	Tracing TracingConfig

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig

	// Events contains build event publishing configuration.
	Events EventsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string

	// Format is console or json.
	Format string

	// Output is stdout, stderr, or a file path.
	Output string

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool

	// TimeFormat is unix, unixms, unixmicro or rfc3339.
	TimeFormat string

	// NoColor disables colors in console output.
	NoColor bool
}

// TracingConfig configures tracing.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none.
	Exporter string

	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64

	MaxExportBatchSize int
	ExportTimeout      time.Duration

	// Headers are additional headers for the OTLP exporter.
	Headers map[string]string

	// Insecure disables TLS for the exporter connection.
	Insecure bool
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	Enabled bool

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string

	// Path is the HTTP path for metrics (default: /metrics).
	Path string

	// Namespace prefixes every metric name.
	Namespace string

	// DefaultHistogramBuckets are the latency buckets in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the build event publisher.
type EventsConfig struct {
	Enabled bool

	// BufferSize is the size of the event buffer when publishing asynchronously.
	BufferSize int

	// MaxBatchSize is the maximum number of events delivered in one batch.
	MaxBatchSize int

	// EnableAsync delivers events from a background goroutine.
	EnableAsync bool
}

// DefaultConfig returns the configuration used by the command line tool.
// Tracing is off and metrics are collected but not served.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "tapestry",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "stdout",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9464",
			Path:          "/metrics",
			Namespace:     "tapestry",
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0,
			},
		},
		Events: EventsConfig{
			Enabled:      true,
			BufferSize:   1000,
			MaxBatchSize: 100,
			EnableAsync:  false,
		},
	}
}

// NopConfig returns a configuration with every signal disabled.
func NopConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Output = "discard"
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Events.Enabled && c.Events.EnableAsync && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
