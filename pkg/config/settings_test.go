package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lithammer/dedent"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(dedent.Dedent(content)), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s, err := Load("", t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Error("Load() of a missing explicit file succeeded")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := writeSettings(t, `
		buildfile: Tapestry
		tolerance: 3
		verbosity: 2
		targets_dir: out
		history:
		  enabled: true
		  path: runs.db
		options:
		  def-before-set: "true"
	`)
	s, err := Load("", dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.Buildfile = "Tapestry"
	want.Tolerance = 3
	want.Verbosity = 2
	want.TargetsDir = "out"
	want.History = HistorySettings{Enabled: true, Path: "runs.db"}
	want.Options = map[string]string{"def-before-set": "true"}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if s.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", s.LogLevel())
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"zero tolerance", "tolerance: 0\n", "Tolerance"},
		{"verbosity too high", "verbosity: 9\n", "Verbosity"},
		{"unknown option", "options:\n  colour: red\n", "Options"},
		{"history without path", "history:\n  enabled: true\n  path: \"\"\n", "Path"},
		{"bad log format", "logging:\n  format: xml\n", "Format"},
		{"otlp without endpoint", "tracing:\n  exporter: otlp\n", "Endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSettings(t, tt.content)
			_, err := Load("", dir)
			if err == nil {
				t.Fatal("Load() succeeded, want a validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Load() error = %v, want it to name %s", err, tt.field)
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := writeSettings(t, "tolerance: [1\n")
	if _, err := Load("", dir); err == nil || !strings.Contains(err.Error(), "unable to parse") {
		t.Errorf("Load() error = %v, want a parse error", err)
	}
}

func TestTemplate(t *testing.T) {
	t.Setenv("TAPESTRY_TEST_PATH", "/var/lib/runs.db")
	t.Setenv("TAPESTRY_TEST_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"path: {{ env.TAPESTRY_TEST_PATH }}", "path: /var/lib/runs.db"},
		{"path: {{ env.TAPESTRY_TEST_EMPTY || fallback.db }}", "path: fallback.db"},
		{"path: {{env.TAPESTRY_TEST_EMPTY}}", "path: "},
		{"no templates", "no templates"},
	}
	for _, tt := range tests {
		if got := string(Template([]byte(tt.in))); got != tt.want {
			t.Errorf("Template(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTelemetryConfig(t *testing.T) {
	s := Default()
	s.Verbosity = 0
	s.Logging.Format = "json"
	s.Tracing.Enabled = true

	cfg := s.Telemetry("1.2.3")
	if cfg.ServiceVersion != "1.2.3" || cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" || !cfg.Tracing.Enabled {
		t.Errorf("Telemetry() = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Telemetry().Validate() = %v", err)
	}
}
