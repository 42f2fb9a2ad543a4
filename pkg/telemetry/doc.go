// Package telemetry provides the observability stack of a build session:
// structured logging with zerolog, tracing with OpenTelemetry, Prometheus
// metrics and an in-process event publisher.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// A session that should record nothing uses Nop:
//
//	tel := telemetry.Nop()
//
// # Logging
//
// The build packages take a zerolog.Logger directly; Logger.Zerolog
// exposes it. Component loggers carry a "component" field, and WithZone,
// WithTarget and WithRunID add the usual build fields:
//
//	logger := tel.Logger.NewComponentLogger("watch").WithRunID(id)
//	logger.Info("rebuilding")
//
// VerbosityLevel maps the command line -v count onto a level name.
//
// # Tracing
//
// Each run gets a run.execute span, with zone.load, target.build and
// action.<name> spans beneath it. Tracing is disabled by default; the
// otlp and stdout exporters are available.
//
// # Metrics
//
// Metrics are collected in a private registry and exposed through
// Metrics.Handler or Metrics.StartMetricsServer. Every recording method is
// safe on a nil or disabled *Metrics.
//
//	tel.Metrics.RecordTargetBuilt(zone, "cc", elapsed)
//	tel.Metrics.RecordProduction("c-objects[10]")
//
// # Events
//
// The publisher delivers run, zone, target and action events to
// subscribers, synchronously unless EnableAsync is set:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelError))
package telemetry
