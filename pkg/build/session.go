package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
	"github.com/tapestry/tapestry/pkg/stores"
	"github.com/tapestry/tapestry/pkg/telemetry"
	"github.com/tapestry/tapestry/pkg/wildcard"
)

// DefaultBuildfile is the instructions file loaded for each zone.
const DefaultBuildfile = "Buildfile"

// DefaultTolerance is how many buffered errors a build accepts by default.
const DefaultTolerance = 10

// Touch flags used on graph nodes.
const (
	touchProduction = "production"
	touchAnalyzer   = "analyzer"
	touchBuild      = "build"
)

// Options configures a Session.
type Options struct {
	// Buildfile names the instructions file of each zone.
	Buildfile string

	// Home is the root zone directory, relative to the working directory.
	Home string

	// TargetsDir is the root zone's target directory, relative to Home.
	// Empty means targets are written in Home.
	TargetsDir string

	// Tolerance is how many buffered errors a build accepts before it
	// stops.
	Tolerance int

	// LoadOnly loads every zone and its productions without building.
	LoadOnly bool

	// HelpOnly loads Buildfiles for their definitions only. Sources are
	// not processed.
	HelpOnly bool

	Environ       []string
	InterpOptions map[string]string
	Stdout        io.Writer
	Stderr        io.Writer

	// Telemetry receives logs, spans, metrics and events. Nil records
	// nothing.
	Telemetry *telemetry.Telemetry

	// History, when set, records each run and every action it executes.
	History History
}

// History is the part of a build history store a session writes to.
type History interface {
	CreateRun(ctx context.Context, run *stores.Run) error
	RecordTargetBuild(ctx context.Context, build *stores.TargetBuild) error
	CompleteRun(ctx context.Context, id string, status stores.RunStatus, built int, errs []stores.RunError) error
}

// Session owns everything one invocation builds: the graph, the zones and
// their registry, and the lockdown state.
type Session struct {
	ID string

	opts   Options
	wd     string
	home   string
	graph  *graph.Graph
	zones  map[string]*Zone
	order  []*Zone
	root   *Zone
	locked bool

	tel    *telemetry.Telemetry
	logger zerolog.Logger
}

// NewSession creates a session. Nothing is loaded until Load or Run.
func NewSession(opts Options) (*Session, error) {
	if opts.Buildfile == "" {
		opts.Buildfile = DefaultBuildfile
	}
	if opts.Home == "" {
		opts.Home = "."
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop()
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fault.Wrap(fault.KindDirectory, "unable to determine working directory", err)
	}

	s := &Session{
		ID:    uuid.New().String(),
		opts:  opts,
		wd:    wd,
		home:  location.Directory(opts.Home, wd),
		zones: make(map[string]*Zone),
		tel:   opts.Telemetry,
	}
	s.logger = opts.Telemetry.Logger.WithRunID(s.ID).Zerolog().With().Str("component", "session").Logger()
	s.graph = graph.New(func(path string) graph.Owner {
		if z := s.FindZone(path); z != nil {
			return z
		}
		return nil
	}, s.logger)
	return s, nil
}

// Run loads the root zone and builds targets, recording the run in the
// session's telemetry and history. It returns the number of targets built.
func (s *Session) Run(ctx context.Context, targets []string) (int, error) {
	timer := telemetry.NewTimer()
	ctx, span := s.tel.Tracer.StartRunSpan(ctx, s.ID, targets)
	defer span.End()

	s.tel.Metrics.RecordRunStarted()
	_ = s.tel.Events.PublishRunStarted(s.ID, s.home, targets)
	s.startHistory(ctx, targets)

	count, err := s.run(ctx, targets)

	status := runStatus(err)
	s.tel.Metrics.RecordRunCompleted(string(status), timer.Duration())
	reported := runErrors(err)
	for _, e := range reported {
		s.tel.Metrics.RecordError(e.Kind)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		_ = s.tel.Events.PublishRunFailed(s.ID, summarize(reported))
	} else {
		telemetry.RecordSuccess(span)
		_ = s.tel.Events.PublishRunCompleted(s.ID, count, timer.Duration())
	}
	s.completeHistory(ctx, status, count, reported)

	s.logger.Info().
		Int("built", count).
		Str("status", string(status)).
		Dur("duration", timer.Duration()).
		Msg("run finished")
	return count, err
}

func (s *Session) run(ctx context.Context, targets []string) (int, error) {
	if err := s.Load(ctx); err != nil {
		return 0, err
	}
	if s.opts.LoadOnly || s.opts.HelpOnly {
		return 0, nil
	}
	return s.Build(ctx, targets)
}

// Load loads the root zone and, through its def-zone declarations, every
// other zone.
func (s *Session) Load(ctx context.Context) error {
	if s.root != nil {
		return nil
	}
	z, err := s.loadZone(ctx, nil, s.wd, s.opts.Home, s.opts.TargetsDir, s.opts.Buildfile)
	if z != nil {
		s.root = z
	}
	return err
}

// Build locks the graph down, if that has not happened yet, and builds
// targets in the root zone. With no targets it builds the "all" alias when
// the root zone defines one, else the end targets.
func (s *Session) Build(ctx context.Context, targets []string) (int, error) {
	if s.root == nil {
		return 0, fault.New(fault.KindRuntime, "no zone loaded")
	}
	s.lockdown()
	if len(targets) == 0 {
		targets = s.DefaultTargets()
	}
	s.logger.Debug().Strs("targets", targets).Msg("building")
	return s.root.Build(ctx, targets, fault.NewSet(s.opts.Tolerance))
}

// DefaultTargets returns what Build builds when given no targets.
func (s *Session) DefaultTargets() []string {
	if s.root != nil {
		if _, ok := s.root.Alias("all"); ok {
			return []string{"all"}
		}
	}
	return []string{AliasEndTargets}
}

func (s *Session) lockdown() {
	if s.locked {
		return
	}
	s.locked = true
	s.graph.Lockdown()
	s.graph.Untouch(touchAnalyzer)
	s.logger.Debug().Int("nodes", s.graph.Len()).Msg("graph locked down")
}

// Root returns the root zone, or nil before Load.
func (s *Session) Root() *Zone { return s.root }

// Graph returns the session's dependency graph.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Locked reports whether the graph has been locked down for building.
func (s *Session) Locked() bool { return s.locked }

// Zones returns every loaded zone in load order.
func (s *Session) Zones() []*Zone { return s.order }

// Home returns the root zone directory.
func (s *Session) Home() string { return s.home }

// Functions returns the function table a zone's Buildfile can call:
// the builtins plus the build declarations.
func (s *Session) Functions() interp.Registry {
	if s.root != nil {
		return s.root.ip.Functions()
	}
	r := interp.Builtins()
	registerOperations(r, nil)
	return r
}

// FindZone returns the zone owning path: the zone registered at the
// nearest directory containing it. It returns nil when no zone does.
func (s *Session) FindZone(path string) *Zone {
	dir := filepath.Clean(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	for {
		if z, ok := s.zones[location.Directory(dir, "")]; ok {
			return z
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func (s *Session) register(z *Zone) {
	s.zones[z.Home()] = z
	s.order = append(s.order, z)
}

// resolveWildcard expands a directory spanning wildcard against every zone
// whose home matches its directory part.
func (s *Session) resolveWildcard(absolute string) ([]string, error) {
	pattern, err := wildcard.Compile(location.Directory(filepath.Dir(absolute), "") + "name")
	if err != nil {
		return nil, fault.Wrap(fault.KindRuntime, "invalid wildcard target", err).With("target", absolute)
	}
	var targets []string
	for _, z := range s.order {
		if !pattern.MatchString(z.Home() + "name") {
			continue
		}
		found, err := z.resolveWildcard(absolute)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			targets = append(targets, z.loc.OffsetHome(t))
		}
	}
	return targets, nil
}

func (s *Session) startHistory(ctx context.Context, targets []string) {
	if s.opts.History == nil {
		return
	}
	run := &stores.Run{
		ID:        s.ID,
		Root:      s.home,
		Targets:   targets,
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.opts.History.CreateRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record run")
	}
}

func (s *Session) completeHistory(ctx context.Context, status stores.RunStatus, built int, errs []stores.RunError) {
	if s.opts.History == nil {
		return
	}
	// The run context may already be cancelled.
	if err := s.opts.History.CompleteRun(context.WithoutCancel(ctx), s.ID, status, built, errs); err != nil {
		s.logger.Warn().Err(err).Msg("failed to complete run record")
	}
}

func (s *Session) recordBuild(ctx context.Context, zone, target, action string, outcome stores.Outcome, d time.Duration) {
	if s.opts.History == nil {
		return
	}
	err := s.opts.History.RecordTargetBuild(context.WithoutCancel(ctx), &stores.TargetBuild{
		RunID:    s.ID,
		Zone:     zone,
		Target:   target,
		Action:   action,
		Outcome:  outcome,
		Duration: d,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("target", target).Msg("failed to record target build")
	}
}

func runStatus(err error) stores.RunStatus {
	switch {
	case err == nil:
		return stores.RunStatusSucceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return stores.RunStatusCancelled
	default:
		return stores.RunStatusFailed
	}
}

// runErrors flattens a run's failure into history records.
func runErrors(err error) []stores.RunError {
	if err == nil {
		return nil
	}
	var set *fault.Set
	if errors.As(err, &set) {
		out := make([]stores.RunError, 0, set.Len())
		for _, e := range set.Errors() {
			out = append(out, runError(e))
		}
		return out
	}
	if e, ok := fault.As(err); ok {
		return []stores.RunError{runError(e)}
	}
	return []stores.RunError{{Kind: string(fault.KindRuntime), Details: err.Error(), Fatal: true}}
}

func runError(e *fault.Error) stores.RunError {
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		if v == nil || k == "usage" {
			continue
		}
		fields[k] = fmt.Sprint(v)
	}
	return stores.RunError{
		Kind:    string(e.Kind),
		Details: e.Details,
		Fields:  fields,
		Fatal:   e.IsFatal(),
	}
}

func summarize(errs []stores.RunError) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Details
	}
	return fmt.Sprintf("%s (and %d more)", errs[0].Details, len(errs)-1)
}

// sortedKeys returns the keys of a map in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
