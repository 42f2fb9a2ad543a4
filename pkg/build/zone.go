package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
	"github.com/tapestry/tapestry/pkg/telemetry"
	"github.com/tapestry/tapestry/pkg/wildcard"
)

// Aliases every zone maintains itself. TargetsBy and SourcesBy are
// prefixes completed with an action name.
const (
	AliasDefinedSources = "@defined-sources"
	AliasAllTargets     = "@all-targets"
	AliasEndTargets     = "@end-targets"
	AliasTargetsBy      = "@targets-by-"
	AliasSourcesBy      = "@sources-by-"
)

// Zone is one build namespace: a home directory with its Buildfile,
// interpreter, production and build engines, macros and aliases.
type Zone struct {
	session   *Session
	parent    *Zone
	loc       *location.Manager
	buildfile string
	ip        *interp.Interpreter
	producer  *ProductionEngine
	builder   *BuildEngine
	macros    map[string]*macro
	aliases   map[string]*aliasSet
	logger    zerolog.Logger
}

type macro struct {
	code         *interp.Token
	dependencies []string
}

// loadZone creates a zone, registers it with the session and runs its
// Buildfile. A zone whose Buildfile fails part way is still returned.
func (s *Session) loadZone(ctx context.Context, parent *Zone, base, home, targets, buildfile string) (*Zone, error) {
	timer := telemetry.NewTimer()
	loc := location.NewFrom(base, home, targets)
	ctx, span := s.tel.Tracer.StartZoneSpan(ctx, loc.Home())
	defer span.End()

	z := &Zone{
		session:   s,
		parent:    parent,
		loc:       loc,
		buildfile: loc.OffsetHome(buildfile),
		macros:    make(map[string]*macro),
		aliases: map[string]*aliasSet{
			AliasDefinedSources: newAliasSet(),
			AliasAllTargets:     newAliasSet(),
			AliasEndTargets:     newAliasSet(),
		},
		logger: s.logger.With().Str("component", "zone").Str("zone", loc.Home()).Logger(),
	}
	z.producer = newProductionEngine(z)
	z.builder = newBuildEngine(z)
	z.logger.Debug().Str("targets", loc.Targets()).Msg("loading zone")

	f, err := os.Open(z.buildfile)
	if err != nil {
		e := interp.InstructionsFileError(z.buildfile, loc.Home())
		telemetry.RecordError(span, e)
		return nil, e
	}
	defer f.Close()

	cfg := interp.Config{
		File:      z.buildfile,
		Locations: loc,
		Environ:   s.opts.Environ,
		Options:   s.opts.InterpOptions,
		Stdout:    s.opts.Stdout,
		Stderr:    s.opts.Stderr,
		Logger:    z.logger,
	}
	if parent != nil {
		cfg.Parent = parent.ip
	}
	if z.ip, err = interp.New(f, cfg); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	registerOperations(z.ip.Functions(), z)
	s.register(z)

	if err := loc.UseHome(""); err != nil {
		return z, err
	}
	if err := z.ip.Run(ctx); err != nil {
		telemetry.RecordError(span, err)
		return z, err
	}

	s.tel.Metrics.RecordZoneLoaded()
	_ = s.tel.Events.PublishZoneLoaded(s.ID, loc.Home(), timer.Duration())
	telemetry.RecordSuccess(span)
	z.logger.Debug().Dur("duration", timer.Duration()).Msg("zone loaded")
	return z, nil
}

// Home returns the zone's home directory.
func (z *Zone) Home() string { return z.loc.Home() }

// Targets returns the zone's target directory.
func (z *Zone) Targets() string { return z.loc.Targets() }

// Buildfile returns the path of the zone's instructions file.
func (z *Zone) Buildfile() string { return z.buildfile }

// Parent returns the zone that declared this one, or nil for the root.
func (z *Zone) Parent() *Zone { return z.parent }

// Interpreter returns the zone's interpreter.
func (z *Zone) Interpreter() *interp.Interpreter { return z.ip }

// Locations returns the zone's path context.
func (z *Zone) Locations() *location.Manager { return z.loc }

// String implements fmt.Stringer.
func (z *Zone) String() string { return z.loc.Home() }

// LogicalTarget places a produced target name in the zone: its directory
// is dropped and it is resolved against the zone home.
func (z *Zone) LogicalTarget(target string) string {
	return z.loc.OffsetHome(filepath.Base(target))
}

// ActualTarget returns where a logical target is written: under the target
// directory when the zone is retargetted.
func (z *Zone) ActualTarget(logical string) string {
	base := filepath.Base(logical)
	if z.loc.Retargetted() {
		return z.loc.OffsetTargets(base)
	}
	return z.loc.OffsetHome(base)
}

// NotifyAddSource records a node gaining a source: it becomes a target of
// this zone.
func (z *Zone) NotifyAddSource(n *graph.Node, sources, targets int, action string) {
	z.aliases[AliasAllTargets].add(n.Logical())
	if targets == 0 {
		z.aliases[AliasEndTargets].add(n.Logical())
	}
	z.aliasFor(AliasTargetsBy + action).add(n.Logical())
}

// NotifyAddTarget records a node gaining a target: it is no longer an end
// target.
func (z *Zone) NotifyAddTarget(n *graph.Node, sources, targets int, action string) {
	z.aliases[AliasEndTargets].remove(n.Logical())
	z.aliasFor(AliasSourcesBy + action).add(n.Logical())
}

func (z *Zone) notifyAddRawSource(absolute string) {
	z.aliases[AliasDefinedSources].add(absolute)
}

func (z *Zone) aliasFor(name string) *aliasSet {
	a, ok := z.aliases[name]
	if !ok {
		a = newAliasSet()
		z.aliases[name] = a
	}
	return a
}

func (z *Zone) registerAlias(name string, targets []string) {
	if strings.HasPrefix(name, "@") {
		return
	}
	z.aliases[name] = newAliasSet(targets...)
}

func (z *Zone) registerMacro(name string, code *interp.Token, dependencies []string) []string {
	clean := make([]string, len(dependencies))
	for i, d := range dependencies {
		clean[i] = z.loc.OffsetHome(d)
	}
	z.macros[name] = &macro{code: code, dependencies: clean}
	return clean
}

func (z *Zone) registerSources(ctx context.Context, sources []string, scope *interp.Scope, code *interp.Token) error {
	if z.session.opts.HelpOnly {
		return nil
	}
	return z.producer.Process(ctx, scope, sources, code)
}

// Alias returns the targets an alias expands to.
func (z *Zone) Alias(name string) ([]string, bool) {
	a, ok := z.aliases[name]
	if !ok {
		return nil, false
	}
	return a.list(), true
}

// Aliases returns the names of the zone's aliases, sorted.
func (z *Zone) Aliases() []string {
	return sortedKeys(z.aliases)
}

// Macros returns the names of the zone's macros, sorted.
func (z *Zone) Macros() []string {
	return sortedKeys(z.macros)
}

// Producer returns the zone's production engine.
func (z *Zone) Producer() *ProductionEngine { return z.producer }

// Builder returns the zone's build engine.
func (z *Zone) Builder() *BuildEngine { return z.builder }

// resolveWildcard matches a wildcard target against the zone's targets,
// aliases and macros. Results are relative to the zone home.
func (z *Zone) resolveWildcard(target string) ([]string, error) {
	pattern, err := wildcard.Compile(z.loc.OffsetHome(target))
	if err != nil {
		return nil, fault.Wrap(fault.KindRuntime, "invalid wildcard target", err).With("target", target)
	}
	found := newAliasSet()
	for _, t := range z.aliases[AliasAllTargets].list() {
		if pattern.MatchString(t) {
			found.add(z.loc.RelativeHome(t))
		}
	}
	for _, name := range z.Aliases() {
		if pattern.MatchString(z.loc.OffsetHome(name)) {
			found.add(name)
		}
	}
	for _, name := range z.Macros() {
		if pattern.MatchString(z.loc.OffsetHome(name)) {
			found.add(name)
		}
	}
	return found.list(), nil
}

// Build builds targets: macros run, aliases expand in place, wildcards
// resolve to matching targets, and targets owned by another zone are
// handed to it. Errors are buffered in set until it must propagate. The
// count of targets built is returned even on failure.
func (z *Zone) Build(ctx context.Context, targets []string, set *fault.Set) (int, error) {
	count := 0
	queue := append([]string(nil), targets...)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		target := queue[0]
		queue = queue[1:]

		n, expanded, err := z.buildOne(ctx, target, set)
		count += n
		if len(expanded) > 0 {
			queue = append(expanded, queue...)
		}
		if err != nil {
			if propagate := absorb(set, err); propagate != nil {
				return count, propagate
			}
		}
	}
	if !set.Empty() {
		return count, set
	}
	return count, nil
}

// buildOne handles one requested target. Wildcards and aliases return the
// targets they expand to.
func (z *Zone) buildOne(ctx context.Context, target string, set *fault.Set) (int, []string, error) {
	absolute := z.loc.OffsetHome(target)

	if wildcard.Count(target) > 0 {
		var resolved []string
		var err error
		if wildcard.HasDirectory(target) {
			resolved, err = z.session.resolveWildcard(absolute)
		} else {
			resolved, err = z.resolveWildcard(target)
		}
		z.logger.Trace().Str("target", target).Strs("resolved", resolved).Msg("wildcard resolved")
		return 0, resolved, err
	}

	owner := z.session.FindZone(absolute)
	switch {
	case owner == nil:
		return 0, nil, z.targetError(target, "target not found")
	case owner != z:
		n, err := owner.Build(ctx, []string{absolute}, fault.NewSet(z.session.opts.Tolerance))
		return n, nil, err
	}

	name := z.loc.RelativeHome(absolute)
	if m, ok := z.macros[name]; ok {
		n, err := z.runMacro(ctx, name, m)
		return n, nil, err
	}
	if a, ok := z.aliases[name]; ok {
		return 0, a.list(), nil
	}

	node, err := z.session.graph.Find(absolute, true)
	if err != nil {
		return 0, nil, err
	}
	ctx, span := z.session.tel.Tracer.StartTargetSpan(ctx, z.Home(), absolute)
	defer span.End()
	n, err := z.builder.Build(ctx, node, set, nil)
	telemetry.RecordError(span, err)
	return n, nil, err
}

// runMacro builds a macro's dependencies and then runs its code. Macros are
// never up to date.
func (z *Zone) runMacro(ctx context.Context, name string, m *macro) (int, error) {
	count := 0
	if len(m.dependencies) > 0 {
		n, err := z.Build(ctx, m.dependencies, fault.NewSet(z.session.opts.Tolerance))
		count += n
		if err != nil {
			return count, err
		}
	}

	z.logger.Debug().Str("macro", name).Msg("running macro")
	if err := z.loc.UseHome(""); err != nil {
		return count, err
	}
	v, err := z.ip.Interpret(ctx, m.code, nil)
	if err != nil {
		if e, ok := fault.As(err); ok {
			e.Fatal()
		}
		return count, err
	}
	if !interp.Booleanize(v) {
		return count, z.targetError(name, "macro failed")
	}
	return count + 1, nil
}

func (z *Zone) targetError(target, details string) *fault.Error {
	return fault.New(fault.KindTarget, details).
		With("target", target).
		With("zone", z.Home()).
		WithOrder("target", "zone")
}

// absorb files err into set. Cancellation is never buffered.
func absorb(set *fault.Set, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	propagate, _ := set.Absorb(err)
	return propagate
}

// aliasSet is an insertion ordered set of target names.
type aliasSet struct {
	names []string
	seen  map[string]bool
}

func newAliasSet(names ...string) *aliasSet {
	a := &aliasSet{seen: make(map[string]bool)}
	for _, n := range names {
		a.add(n)
	}
	return a
}

func (a *aliasSet) add(name string) {
	if a.seen[name] {
		return
	}
	a.seen[name] = true
	a.names = append(a.names, name)
}

func (a *aliasSet) remove(name string) {
	if !a.seen[name] {
		return
	}
	delete(a.seen, name)
	for i, n := range a.names {
		if n == name {
			a.names = append(a.names[:i], a.names[i+1:]...)
			return
		}
	}
}

func (a *aliasSet) list() []string {
	return append([]string(nil), a.names...)
}
