package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/build"
	"github.com/tapestry/tapestry/pkg/config"
	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/stores"
	"github.com/tapestry/tapestry/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	buildfile  string
	directory  string
	targetsDir string
	tolerance  int
	verbosity  int
	quiet      bool
	loadOnly   bool
	history    bool
	jsonOutput bool
	events     bool

	// Set by watch only
	metricsAddr string

	appVersion = "dev"
)

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, version, commit, buildDate string) int {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	return fault.Report(rootCmd.ErrOrStderr(), err)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tapestry [targets...]",
		Short: "Tapestry - dependency driven build engine",
		Long: `Tapestry builds targets from sources using rules written in Buildfiles.

A Buildfile declares sources, production rules that derive target names from
them, analyzers that discover what files refer to, and the actions that build
targets. Directories with their own Buildfile are zones; targets in any zone
can be built from any other.

With no targets, the "all" alias is built when the root Buildfile defines it,
and otherwise every target nothing else is built from.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runBuild,
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fault.Wrap(fault.KindParameter, "invalid command line", err).
			With("usage", cmd.UseLine()).
			WithRC(fault.ExitBug)
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "settings file (default: .tapestry.yaml in the build directory)")
	flags.StringVarP(&buildfile, "file", "f", build.DefaultBuildfile, "name of each zone's Buildfile")
	flags.StringVarP(&directory, "directory", "C", ".", "root zone directory")
	flags.StringVar(&targetsDir, "targets-dir", "", "write the root zone's targets to this directory")
	flags.IntVarP(&tolerance, "tolerance", "k", build.DefaultTolerance, "number of failed actions tolerated before stopping")
	flags.CountVarP(&verbosity, "verbose", "v", "increase verbosity (repeatable)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	flags.BoolVar(&loadOnly, "load-only", false, "load zones and productions without building")
	flags.BoolVar(&history, "history", false, "record the run in the build history")
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&events, "events", false, "stream build events to stderr as JSON lines")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newTargetsCommand())
	rootCmd.AddCommand(newAliasesCommand())
	rootCmd.AddCommand(newFunctionsCommand())
	rootCmd.AddCommand(newTreeCommand())
	rootCmd.AddCommand(newDotCommand())
	rootCmd.AddCommand(newReplCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// loadSettings reads the settings file and applies the flags given on the
// command line over it.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.Load(configPath, directory)
	if err != nil {
		return nil, fault.Wrap(fault.KindLoad, "unable to load settings", err)
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		s.Buildfile = buildfile
	}
	if flags.Changed("targets-dir") {
		s.TargetsDir = targetsDir
	}
	if flags.Changed("tolerance") {
		s.Tolerance = tolerance
	}
	if flags.Changed("verbose") {
		s.Verbosity = min(verbosity+1, 5)
	}
	if quiet {
		s.Verbosity = 0
	}
	if loadOnly {
		s.LoadOnly = true
	}
	if history {
		s.History.Enabled = true
	}
	if jsonOutput {
		s.Logging.Format = "json"
	}
	if metricsAddr != "" {
		s.Metrics.Enabled = true
		s.Metrics.ListenAddress = metricsAddr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		s.Logging.Level = level
	}
	if !filepath.IsAbs(s.History.Path) {
		s.History.Path = filepath.Join(directory, s.History.Path)
	}

	if err := s.Validate(); err != nil {
		return nil, fault.Wrap(fault.KindParameter, "invalid settings", err).WithRC(fault.ExitBug)
	}
	return s, nil
}

// environment is what every command that loads Buildfiles needs.
type environment struct {
	settings *config.Settings
	tel      *telemetry.Telemetry
	store    *stores.SQLiteStore
}

func setup(cmd *cobra.Command) (*environment, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.NewTelemetry(settings.Telemetry(appVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	env := &environment{settings: settings, tel: tel}
	if events {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		tel.Events.Subscribe(func(e telemetry.Event) {
			if err := enc.Encode(e); err != nil {
				log.Warn().Err(err).Msg("Failed to write event")
			}
		}, nil)
	}
	if settings.History.Enabled {
		if env.store, err = openStore(cmd.Context(), settings.History.Path); err != nil {
			env.close()
			return nil, err
		}
	}
	return env, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (e *environment) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close history store")
		}
	}
	if err := e.tel.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// session creates a build session from the settings. configure may adjust
// the options first.
func (e *environment) session(cmd *cobra.Command, configure func(*build.Options)) (*build.Session, error) {
	opts := build.Options{
		Buildfile:     e.settings.Buildfile,
		Home:          directory,
		TargetsDir:    e.settings.TargetsDir,
		Tolerance:     e.settings.Tolerance,
		LoadOnly:      e.settings.LoadOnly,
		InterpOptions: e.settings.Options,
		Stdout:        cmd.OutOrStdout(),
		Stderr:        cmd.ErrOrStderr(),
		Telemetry:     e.tel,
	}
	if e.store != nil {
		opts.History = e.store
	}
	if configure != nil {
		configure(&opts)
	}
	return build.NewSession(opts)
}

// loaded creates a session and loads its zones without building.
func (e *environment) loaded(cmd *cobra.Command, configure func(*build.Options)) (*build.Session, error) {
	s, err := e.session(cmd, func(o *build.Options) {
		o.LoadOnly = true
		if configure != nil {
			configure(o)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, s.Load(cmd.Context())
}
