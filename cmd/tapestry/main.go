package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tapestry/tapestry/cmd/tapestry/commands"
	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/telemetry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%scaught a bug! %v\n", fault.Marker, r)
			code = fault.ExitBug
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return commands.Execute(ctx, Version, Commit, BuildDate)
}

// setupLogging configures the global logger used outside a session.
// LOG_LEVEL caps every logger in the process.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		zerolog.SetGlobalLevel(telemetry.ParseLevel(level))
		log.Logger = log.Logger.Level(telemetry.ParseLevel(level))
	}
}
