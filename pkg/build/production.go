package build

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
	"github.com/tapestry/tapestry/pkg/wildcard"
)

// longProduction is the step duration worth an informational notice.
const longProduction = 100 * time.Millisecond

// ProductionRule maps a source to the targets built from it. The source is
// either a wildcard or code deciding whether the rule applies; the target
// is either a wildcard spliced from the source match or code naming the
// targets.
type ProductionRule struct {
	Name     string
	Priority int
	Action   string

	source     string
	pattern    *wildcard.Wildcard
	sourceCode *interp.Token

	target     string
	targetCode *interp.Token

	supplement *interp.Token
}

// compile prepares a static source pattern. Sources holding a directory are
// resolved against the zone home.
func (r *ProductionRule) compile(loc *location.Manager) error {
	if r.sourceCode != nil {
		if r.targetCode == nil {
			return fault.New(fault.KindProductionRule, "a static target cannot pair with a dynamic source").
				With("production-rule", r.String())
		}
		return nil
	}
	if wildcard.HasDirectory(r.source) {
		r.source = loc.OffsetHome(r.source)
	}
	p, err := wildcard.Compile(r.source)
	if err != nil {
		return fault.Wrap(fault.KindProductionRule, "invalid source pattern", err).
			With("production-rule", r.String()).
			With("source", r.source)
	}
	r.pattern = p
	return nil
}

// String identifies the rule as name[priority].
func (r *ProductionRule) String() string {
	return fmt.Sprintf("%s[%d]", r.Name, r.Priority)
}

// Describe renders the rule for definition reports.
func (r *ProductionRule) Describe() string {
	source, target := "<dynamic>", "<dynamic>"
	if r.sourceCode == nil {
		source = r.source
	}
	if r.targetCode == nil {
		target = r.target
	}
	return fmt.Sprintf("%s: %s ==%s==> %s", r, source, r.Action, target)
}

// Applies reports whether the rule matches a source node.
func (r *ProductionRule) Applies(ctx context.Context, ip *interp.Interpreter, scope *interp.Scope, n *graph.Node) (bool, error) {
	if r.sourceCode == nil {
		return r.pattern.MatchString(n.Logical()), nil
	}
	setSource(scope, n)
	v, err := ip.Interpret(ctx, r.sourceCode, scope)
	if err != nil {
		return false, err
	}
	return interp.Booleanize(v), nil
}

// Produce returns the target names the rule produces for a source node.
func (r *ProductionRule) Produce(ctx context.Context, ip *interp.Interpreter, scope *interp.Scope, n *graph.Node) ([]string, error) {
	if r.targetCode == nil {
		target, ok := r.pattern.Splice(r.target, n.Logical())
		if !ok {
			return nil, nil
		}
		return []string{target}, nil
	}
	setSource(scope, n)
	v, err := ip.Interpret(ctx, r.targetCode, scope)
	if err != nil {
		return nil, err
	}
	return interp.Strings(interp.Vectorize(v)), nil
}

func (r *ProductionRule) runSupplement(ctx context.Context, ip *interp.Interpreter, scope *interp.Scope, source, target *graph.Node) error {
	if r.supplement == nil {
		return nil
	}
	setSource(scope, source)
	_ = scope.Set("target", target.Logical(), false)
	_ = scope.Set("target-file", target.Filename(), false)
	_, err := ip.Interpret(ctx, r.supplement, scope)
	return err
}

func setSource(scope *interp.Scope, n *graph.Node) {
	_ = scope.Set("source", n.Logical(), false)
	_ = scope.Set("source-file", n.Filename(), false)
}

// ProductionEngine turns a zone's sources into graph links. Rules are held
// in named series; each source is offered to every series, and within a
// series the first matching rule by priority is applied.
type ProductionEngine struct {
	zone       *Zone
	rules      map[string][]*ProductionRule
	series     []string
	order      []string
	fullOrder  []string
	queue      []string
	processing bool
	logger     zerolog.Logger
}

func newProductionEngine(z *Zone) *ProductionEngine {
	return &ProductionEngine{
		zone:   z,
		rules:  make(map[string][]*ProductionRule),
		logger: z.logger.With().Str("component", "production").Logger(),
	}
}

// AddRule compiles a rule and adds it to its series. A rule goes ahead of
// every rule with the same or lower priority.
func (p *ProductionEngine) AddRule(r *ProductionRule) error {
	if err := r.compile(p.zone.loc); err != nil {
		return err
	}

	existing, ok := p.rules[r.Name]
	if !ok {
		p.series = append(p.series, r.Name)
	}
	at := len(existing)
	for i, e := range existing {
		if e.Priority <= r.Priority {
			at = i
			break
		}
	}
	existing = append(existing, nil)
	copy(existing[at+1:], existing[at:])
	existing[at] = r
	p.rules[r.Name] = existing
	p.refreshOrder()

	if p.zone.ip.Reports(interp.OptionReportProduction) {
		p.logger.Debug().Str("rule", r.String()).Msg("defining production " + r.Describe())
	}
	return nil
}

// Rules returns the rules of a series in the order they are tried.
func (p *ProductionEngine) Rules(series string) []*ProductionRule {
	return p.rules[series]
}

// Series returns the series names in the order they are run.
func (p *ProductionEngine) Series() []string {
	return append([]string(nil), p.fullOrder...)
}

// SetOrdering runs the named series first, in the given order. Series not
// named run afterwards in definition order.
func (p *ProductionEngine) SetOrdering(names []string) error {
	seen := make(map[string]bool, len(names))
	clean := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := p.rules[name]; !ok {
			return fault.New(fault.KindProductionRule, "production series doesn't exist").With("series", name)
		}
		clean = append(clean, name)
	}
	p.order = clean
	p.refreshOrder()
	return nil
}

func (p *ProductionEngine) refreshOrder() {
	named := make(map[string]bool, len(p.order))
	full := append([]string(nil), p.order...)
	for _, name := range p.order {
		named[name] = true
	}
	for _, name := range p.series {
		if !named[name] {
			full = append(full, name)
		}
	}
	p.fullOrder = full
}

// Process queues sources and works the queue until it is empty. Code, when
// given, runs once per source with $source and $source-file set. A call made
// while the engine is already processing only queues its sources.
func (p *ProductionEngine) Process(ctx context.Context, scope *interp.Scope, sources []string, code *interp.Token) error {
	if scope == nil {
		scope = p.zone.ip.Globals()
	}
	for _, source := range sources {
		absolute := p.zone.loc.OffsetHome(source)
		p.queue = append(p.queue, absolute)
		p.zone.notifyAddRawSource(absolute)
		if code != nil {
			setSource(scope, p.zone.session.graph.Produce(absolute))
			if _, err := p.zone.ip.Interpret(ctx, code, scope); err != nil {
				return err
			}
		}
	}

	if p.processing {
		return nil
	}
	p.processing = true
	defer func() { p.processing = false }()

	for len(p.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.step(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProductionEngine) step(ctx context.Context, scope *interp.Scope) error {
	start := time.Now()
	g := p.zone.session.graph
	next := p.queue[0]
	p.queue = p.queue[1:]

	source := g.Produce(next)
	if source.Touched(touchProduction) {
		return nil
	}
	source.Touch(touchProduction)

	for _, series := range p.fullOrder {
		if err := p.zone.loc.UseHome(""); err != nil {
			return err
		}
		for _, rule := range p.rules[series] {
			applied, err := p.apply(ctx, scope, rule, source)
			if err != nil {
				if e, ok := fault.As(err); ok && !e.Has("production-rule") {
					e.With("production-rule", rule.String())
				}
				return err
			}
			if applied {
				break
			}
		}
	}

	if d := time.Since(start); d > longProduction {
		p.logger.Info().
			Str("source", p.zone.loc.RelativeHome(source.Logical())).
			Dur("duration", d).
			Msg("long production")
	}
	return nil
}

// apply runs one rule against a source node and links what it produces.
// It reports whether the rule matched.
func (p *ProductionEngine) apply(ctx context.Context, scope *interp.Scope, rule *ProductionRule, source *graph.Node) (bool, error) {
	ip := p.zone.ip
	g := p.zone.session.graph

	ok, err := rule.Applies(ctx, ip, scope, source)
	if err != nil || !ok {
		return false, err
	}
	targets, err := rule.Produce(ctx, ip, scope, source)
	if err != nil {
		return true, err
	}

	for _, name := range targets {
		target := g.Produce(p.zone.LogicalTarget(name))

		if source.Extended() {
			if existing := source.Extension().ActionFor(target); existing != "" {
				return true, productionError("a second rule series produced an existing source-target production", rule, source, target, existing)
			}
		}
		if target.Target() && target.Extension().Action() != rule.Action {
			return true, productionError("each target can be built from sources using only one action", rule, source, target, target.Extension().Action())
		}

		target.Notify(p.zone)
		p.queue = append(p.queue, target.Logical())
		if _, err := g.Link(source.Logical(), target.Logical(), rule.Action); err != nil {
			return true, err
		}
		p.zone.session.tel.Metrics.RecordProduction(rule.Name)
		p.logger.Trace().
			Str("rule", rule.String()).
			Str("source", source.Logical()).
			Str("target", target.Logical()).
			Msg("produced")

		if err := rule.runSupplement(ctx, ip, scope, source, target); err != nil {
			return true, err
		}
	}
	return true, nil
}

func productionError(details string, rule *ProductionRule, source, target *graph.Node, action string) *fault.Error {
	return fault.New(fault.KindProductionRule, details).
		With("production-rule", rule.String()).
		With("source", source.Logical()).
		With("target", target.Logical()).
		With("action", action).
		WithOrder("production-rule", "source", "target", "action")
}
