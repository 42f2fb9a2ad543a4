package build

import (
	"context"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
	"github.com/tapestry/tapestry/pkg/wildcard"
)

// AnalyzerRule discovers the files a node refers to, such as the headers a
// C source includes. Each analyzer runs at most once per node.
type AnalyzerRule struct {
	Name string

	source     string
	pattern    *wildcard.Wildcard
	sourceCode *interp.Token
	target     *interp.Token
}

func (a *AnalyzerRule) compile(loc *location.Manager) error {
	if a.sourceCode != nil {
		return nil
	}
	if wildcard.HasDirectory(a.source) {
		a.source = loc.OffsetHome(a.source)
	}
	p, err := wildcard.Compile(a.source)
	if err != nil {
		return fault.Wrap(fault.KindRuntime, "invalid analyzer source pattern", err).
			With("analyzer", a.Name).
			With("source", a.source)
	}
	a.pattern = p
	return nil
}

// Applies reports whether the analyzer should run on a node.
func (a *AnalyzerRule) Applies(ctx context.Context, ip *interp.Interpreter, loc *location.Manager, scope *interp.Scope, n *graph.Node) (bool, error) {
	if a.sourceCode == nil {
		return a.pattern.MatchString(n.Logical()), nil
	}
	setAnalyzed(scope, loc, n)
	v, err := ip.Interpret(ctx, a.sourceCode, scope)
	if err != nil {
		return false, err
	}
	return interp.Booleanize(v), nil
}

// Analyze returns the references found for a node, as the analyzer code
// names them. Relative names are relative to the current directory.
func (a *AnalyzerRule) Analyze(ctx context.Context, ip *interp.Interpreter, loc *location.Manager, scope *interp.Scope, n *graph.Node) ([]string, error) {
	setAnalyzed(scope, loc, n)
	v, err := ip.Interpret(ctx, a.target, scope)
	if err != nil {
		return nil, err
	}
	return interp.Strings(interp.Vectorize(v)), nil
}

func setAnalyzed(scope *interp.Scope, loc *location.Manager, n *graph.Node) {
	_ = scope.Set("source-logical", n.Logical(), false)
	_ = scope.Set("source", loc.RelativeCurrent(n.Actual()), false)
	_ = scope.Set("source-file", n.Filename(), false)
}
