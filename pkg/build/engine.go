package build

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/stores"
	"github.com/tapestry/tapestry/pkg/telemetry"
)

// BuildEngine builds the nodes a zone owns. A node is marked built before
// its references are built, so reference cycles terminate.
type BuildEngine struct {
	zone      *Zone
	analyzers []*AnalyzerRule
	actions   map[string]*ActionRule
	logger    zerolog.Logger
}

func newBuildEngine(z *Zone) *BuildEngine {
	return &BuildEngine{
		zone:    z,
		actions: make(map[string]*ActionRule),
		logger:  z.logger.With().Str("component", "build").Logger(),
	}
}

// AddAnalyzer registers an analyzer. Redefining a name replaces the
// analyzer in place.
func (b *BuildEngine) AddAnalyzer(a *AnalyzerRule) error {
	if err := a.compile(b.zone.loc); err != nil {
		return err
	}
	if b.zone.ip.Reports(interp.OptionReportAnalyzer) {
		b.logger.Debug().Str("analyzer", a.Name).Msg("defining analyzer")
	}
	for i, existing := range b.analyzers {
		if existing.Name == a.Name {
			b.analyzers[i] = a
			return nil
		}
	}
	b.analyzers = append(b.analyzers, a)
	return nil
}

// AddAction registers an action, replacing any of the same name.
func (b *BuildEngine) AddAction(a *ActionRule) {
	if b.zone.ip.Reports(interp.OptionReportAction) {
		b.logger.Debug().Str("action", a.Name).Str("style", a.Style).Msg("defining action")
	}
	b.actions[a.Name] = a
}

// Action returns the named action.
func (b *BuildEngine) Action(name string) (*ActionRule, bool) {
	a, ok := b.actions[name]
	return a, ok
}

// Analyzers returns the analyzers in definition order.
func (b *BuildEngine) Analyzers() []*AnalyzerRule {
	return b.analyzers
}

// Analyze runs every applicable analyzer that has not yet run on the node
// and records the references found. It reports whether any analyzer ran.
func (b *BuildEngine) Analyze(ctx context.Context, n *graph.Node, scope *interp.Scope) (bool, error) {
	if scope == nil {
		scope = b.zone.ip.Globals()
	}
	loc := b.zone.loc
	var err error
	if n.Target() {
		err = loc.UseTargets("")
	} else {
		err = loc.UseHome("")
	}
	if err != nil {
		return false, err
	}

	analyzed := false
	for _, a := range b.analyzers {
		if n.Analyzed(a.Name) {
			continue
		}
		applies, err := a.Applies(ctx, b.zone.ip, loc, scope, n)
		if err != nil {
			return analyzed, err
		}
		if !applies {
			continue
		}
		refs, err := a.Analyze(ctx, b.zone.ip, loc, scope, n)
		if err != nil {
			return analyzed, err
		}
		for i, ref := range refs {
			refs[i] = loc.OffsetCurrent(ref)
		}
		b.zone.session.graph.ReferenceMany(n.Logical(), refs, a.Name)
		b.zone.session.tel.Metrics.RecordAnalyzerRun(a.Name)
		b.logger.Trace().Str("analyzer", a.Name).Str("node", n.Logical()).Strs("references", refs).Msg("analyzed")
		analyzed = true
	}
	return analyzed, nil
}

// Build brings a node up to date: analyzers first, then its references and
// components, then its action when any component is newer than the node.
// Errors from children are buffered in set; the set itself is returned
// once it must propagate or when a child failed. The count includes every
// target built along the way.
func (b *BuildEngine) Build(ctx context.Context, n *graph.Node, set *fault.Set, scope *interp.Scope) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if scope == nil {
		scope = b.zone.ip.Globals()
	}

	if !n.Touched(touchAnalyzer) {
		if _, err := b.Analyze(ctx, n, scope); err != nil {
			return 0, err
		}
		n.Touch(touchAnalyzer)
	}
	if n.Built() {
		return 0, nil
	}

	b.logger.Debug().Str("target", n.Logical()).Msg("building")
	n.Touch(touchBuild)
	if !b.zone.session.locked {
		n.Lockdown()
	}

	count, err := b.buildAll(ctx, n.References(), set, scope)
	if err != nil {
		return count, err
	}
	if !n.Target() {
		return count, nil
	}

	ext := n.Extension()
	built, err := b.buildAll(ctx, ext.Components(), set, scope)
	count += built
	if err != nil {
		return count, err
	}

	modified := n.Modified()
	stale := false
	for _, c := range ext.Components() {
		if c.Newer(modified, true) {
			stale = true
			break
		}
	}
	if !stale {
		return count, nil
	}

	if err := b.runAction(ctx, n, scope); err != nil {
		if propagate := absorb(set, err); propagate != nil {
			return count, propagate
		}
		return count, set
	}
	return count + 1, nil
}

// buildAll builds nodes with the engines of their owning zones. A failed
// child does not stop its siblings unless the set must propagate.
func (b *BuildEngine) buildAll(ctx context.Context, nodes []*graph.Node, set *fault.Set, scope *interp.Scope) (int, error) {
	count := 0
	failed := false
	for _, child := range nodes {
		engine, childScope := b.engineFor(child, scope)
		n, err := engine.Build(ctx, child, set, childScope)
		count += n
		if err != nil {
			if propagate := absorb(set, err); propagate != nil {
				return count, propagate
			}
			failed = true
		}
	}
	if failed || set.Cause() {
		return count, set
	}
	return count, nil
}

// engineFor returns the engine of the zone owning n. Another zone's engine
// runs in that zone's globals.
func (b *BuildEngine) engineFor(n *graph.Node, scope *interp.Scope) (*BuildEngine, *interp.Scope) {
	z, ok := n.Owner(b.zone).(*Zone)
	if !ok || z == b.zone {
		return b, scope
	}
	return z.builder, nil
}

func (b *BuildEngine) runAction(ctx context.Context, n *graph.Node, scope *interp.Scope) error {
	ext := n.Extension()
	action, ok := b.actions[ext.Action()]
	if !ok {
		return b.buildError("specified build action not found", n.Logical(), ext.Action(), nil)
	}
	if !action.Handles(len(ext.Sources())) {
		return b.buildError("action does not support source count", n.Logical(), action.Name, action.Style)
	}
	if err := b.zone.loc.UseTargets(""); err != nil {
		return err
	}

	s := b.zone.session
	timer := telemetry.NewTimer()
	ctx, span := s.tel.Tracer.StartActionSpan(ctx, action.Name, n.Logical())
	defer span.End()
	b.logger.Info().Str("action", action.Name).Str("target", n.Logical()).Msgf("%s => %s", action.Name, b.zone.loc.RelativeHome(n.Logical()))

	succeeded, err := action.Run(ctx, b.zone.ip, b.zone.loc, scope, ext.Sources(), n)
	if err == nil && !succeeded {
		err = b.buildError("action failed", n.Logical(), action.Name, nil).Buffered()
	}
	d := timer.Duration()
	if err != nil {
		telemetry.RecordError(span, err)
		s.tel.Metrics.RecordActionFailed(action.Name, d)
		_ = s.tel.Events.PublishActionFailed(s.ID, b.zone.Home(), n.Logical(), action.Name, err.Error())
		s.recordBuild(ctx, b.zone.Home(), n.Logical(), action.Name, stores.OutcomeFailed, d)
		return err
	}

	ext.SetBuilt(true)
	telemetry.RecordSuccess(span)
	s.tel.Metrics.RecordTargetBuilt(b.zone.Home(), action.Name, d)
	_ = s.tel.Events.PublishTargetBuilt(s.ID, b.zone.Home(), n.Logical(), action.Name, d)
	s.recordBuild(ctx, b.zone.Home(), n.Logical(), action.Name, stores.OutcomeBuilt, d)
	return nil
}

func (b *BuildEngine) buildError(details, target, action string, data interface{}) *fault.Error {
	return fault.New(fault.KindBuild, details).
		With("target", target).
		With("action", action).
		With("data", data).
		With("zone", b.zone.Home()).
		WithOrder("target", "action")
}
