package telemetry_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tapestry/tapestry/pkg/telemetry"
)

func Example_events() {
	cfg := telemetry.NopConfig()
	cfg.Events.Enabled = true

	events, _ := telemetry.NewEventPublisher(cfg.Events)
	events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Message)
	}, telemetry.FilterByType(telemetry.EventTypeTargetBuilt))

	_ = events.PublishRunStarted("r1", "/src/", []string{"all"})
	_ = events.PublishTargetBuilt("r1", "/src/", "/src/a.o", "cc", time.Millisecond)
	_ = events.Shutdown(context.Background())

	// Output:
	// target.built /src/a.o built by cc
}

func ExampleVerbosityLevel() {
	for v := 0; v < 4; v++ {
		fmt.Println(v, telemetry.VerbosityLevel(v))
	}

	// Output:
	// 0 warn
	// 1 info
	// 2 debug
	// 3 trace
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*telemetry.Config)
		ok     bool
	}{
		{"default", func(*telemetry.Config) {}, true},
		{"no service", func(c *telemetry.Config) { c.ServiceName = "" }, false},
		{"bad level", func(c *telemetry.Config) { c.Logging.Level = "loud" }, false},
		{"bad format", func(c *telemetry.Config) { c.Logging.Format = "xml" }, false},
		{"bad exporter", func(c *telemetry.Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "zipkin"
		}, false},
		{"bad sampling", func(c *telemetry.Config) { c.Tracing.SamplingRate = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := telemetry.DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *telemetry.Metrics
	m.RecordRunStarted()
	m.RecordTargetBuilt("/src/", "cc", time.Second)
	m.RecordError("build")
	if m.Registry() != nil {
		t.Error("nil metrics have a registry")
	}

	tel := telemetry.Nop()
	tel.Metrics.RecordProduction("rule[0]")
	if tel.Metrics.Registry() != nil {
		t.Error("disabled metrics have a registry")
	}
}

func TestMetricsHandler(t *testing.T) {
	m, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	if err != nil {
		t.Fatal(err)
	}
	m.RecordRunStarted()
	m.RecordTargetBuilt("/src/", "cc", 10*time.Millisecond)
	m.RecordProduction("objects[10]")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"tapestry_runs_started_total 1",
		`tapestry_targets_built_total{action="cc",zone="/src/"} 1`,
		`tapestry_productions_total{rule="objects[10]"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestEventFilters(t *testing.T) {
	cfg := telemetry.DefaultConfig().Events
	events, err := telemetry.NewEventPublisher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	events.Subscribe(func(e telemetry.Event) {
		got = append(got, e.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelError))
	events.AddFilter(telemetry.FilterByRunID("r1"))

	_ = events.PublishRunStarted("r1", "/", nil)
	_ = events.PublishActionFailed("r1", "/", "/a", "cc", "exit 1")
	_ = events.PublishRunFailed("r2", "other run")
	_ = events.PublishRunFailed("r1", "action failed")

	want := []string{telemetry.EventTypeActionFailed, telemetry.EventTypeRunFailed}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delivered events mismatch (-want +got):\n%s", diff)
	}
}

func TestAsyncEventsDrainOnShutdown(t *testing.T) {
	cfg := telemetry.DefaultConfig().Events
	cfg.EnableAsync = true
	cfg.MaxBatchSize = 10
	events, err := telemetry.NewEventPublisher(cfg)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	events.Subscribe(func(telemetry.Event) { count++ }, nil)
	for i := 0; i < 5; i++ {
		if err := events.PublishZoneLoaded("r1", "/", 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := events.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("delivered %d events, want 5", count)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLoggerTo(&buf, telemetry.LoggingConfig{Level: "debug", Format: "json"})
	logger.NewComponentLogger("build").WithZone("/src/").WithTarget("/src/a.o").Debug("stale")

	out := buf.String()
	for _, want := range []string{`"component":"build"`, `"zone":"/src/"`, `"target":"/src/a.o"`, `"message":"stale"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %s missing %s", out, want)
		}
	}

	buf.Reset()
	zl := logger.Zerolog()
	zl.Trace().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("trace message logged at debug level: %s", buf.String())
	}
}

func TestStartOperationWithoutTelemetry(t *testing.T) {
	op := telemetry.StartOperation(context.Background(), "noop")
	if op.Span != nil {
		t.Error("span started without telemetry in context")
	}
	op.End(nil)

	tel := telemetry.Nop()
	op = telemetry.StartOperation(tel.WithContext(context.Background()), "build")
	if op.Span == nil {
		t.Fatal("no span with telemetry in context")
	}
	op.End(fmt.Errorf("failed"))
}
