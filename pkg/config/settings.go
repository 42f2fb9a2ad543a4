package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tapestry/tapestry/pkg/telemetry"
)

// FileName is the settings file looked for in the start directory.
const FileName = ".tapestry.yaml"

// Settings configures a tapestry invocation.
type Settings struct {
	// Buildfile names each zone's instructions file.
	Buildfile string `yaml:"buildfile" validate:"required"`

	// Tolerance is how many buffered errors a build accepts before stopping.
	Tolerance int `yaml:"tolerance" validate:"min=1"`

	// Verbosity is 0 (quiet) to 5.
	Verbosity int `yaml:"verbosity" validate:"min=0,max=5"`

	// TargetsDir is an alternate target directory for the root zone,
	// relative to the root zone home.
	TargetsDir string `yaml:"targets_dir,omitempty"`

	// LoadOnly loads zones and productions without building.
	LoadOnly bool `yaml:"load_only,omitempty"`

	History HistorySettings `yaml:"history"`
	Logging LoggingSettings `yaml:"logging"`
	Tracing TracingSettings `yaml:"tracing"`
	Metrics MetricsSettings `yaml:"metrics"`

	// Options override interpreter options in every zone.
	Options map[string]string `yaml:"options,omitempty" validate:"omitempty,dive,keys,oneof=def-before-set print-separator print-terminator report report-def-production report-def-analyzer report-def-action,endkeys"`
}

// HistorySettings configures the build history database.
type HistorySettings struct {
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// LoggingSettings configures structured logging. An empty level follows
// the verbosity.
type LoggingSettings struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output" validate:"required"`
}

// TracingSettings configures span export.
type TracingSettings struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"min=0,max=1"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsSettings configures the Prometheus endpoint served while watching.
type MetricsSettings struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address" validate:"required_if=Enabled true"`
	Path          string `yaml:"path" validate:"omitempty,startswith=/"`
}

// Default returns the settings used when no file is present.
func Default() *Settings {
	return &Settings{
		Buildfile: "Buildfile",
		Tolerance: 10,
		Verbosity: 1,
		History: HistorySettings{
			Path: filepath.Join(".tapestry", "history.db"),
		},
		Logging: LoggingSettings{
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingSettings{
			Exporter:     "stdout",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsSettings{
			ListenAddress: ":9464",
			Path:          "/metrics",
		},
	}
}

// Load reads settings from path over the defaults. An empty path looks for
// FileName in dir and returns the defaults when it is absent.
func Load(path, dir string) (*Settings, error) {
	s := Default()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("unable to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(Template(data), s); err != nil {
		return nil, fmt.Errorf("unable to parse settings file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return s, nil
}

var validate = validator.New()

// Validate checks the settings against their constraints.
func (s *Settings) Validate() error {
	return validate.Struct(s)
}

// LogLevel returns the configured level, or the one the verbosity maps to.
func (s *Settings) LogLevel() string {
	if s.Logging.Level != "" {
		return s.Logging.Level
	}
	return telemetry.VerbosityLevel(s.Verbosity)
}

// Telemetry converts the settings into a telemetry configuration.
func (s *Settings) Telemetry(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Level = s.LogLevel()
	cfg.Logging.Format = s.Logging.Format
	cfg.Logging.Output = s.Logging.Output
	cfg.Tracing.Enabled = s.Tracing.Enabled
	cfg.Tracing.Exporter = s.Tracing.Exporter
	cfg.Tracing.Endpoint = s.Tracing.Endpoint
	cfg.Tracing.SamplingRate = s.Tracing.SamplingRate
	cfg.Tracing.Insecure = s.Tracing.Insecure
	cfg.Tracing.ExportTimeout = 10 * time.Second
	cfg.Metrics.ListenAddress = s.Metrics.ListenAddress
	cfg.Metrics.Path = s.Metrics.Path
	return cfg
}

var templatePattern = regexp.MustCompile(`\{\{\s*([^}]+)\s*}}`)

// Template replaces {{ env.NAME || fallback }} references with the first
// non-empty alternative. A bare alternative is used literally.
func Template(data []byte) []byte {
	return templatePattern.ReplaceAllFunc(data, func(match []byte) []byte {
		content := strings.TrimSpace(string(match[2 : len(match)-2]))
		for _, part := range strings.Split(content, "||") {
			part = strings.TrimSpace(part)
			if key, ok := strings.CutPrefix(part, "env."); ok {
				if value := os.Getenv(key); value != "" {
					return []byte(value)
				}
				continue
			}
			if part != "" {
				return []byte(part)
			}
		}
		return nil
	})
}
