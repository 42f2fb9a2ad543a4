package build

import (
	"context"

	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
)

// Action styles.
const (
	StyleEach = "each"
	StyleAll  = "all"
)

// ActionRule is the code that builds a target from its sources.
type ActionRule struct {
	Name  string
	Style string
	code  *interp.Token
}

// Handles reports whether the action accepts n sources. "each" actions
// take exactly one.
func (a *ActionRule) Handles(n int) bool {
	return a.Style != StyleEach || n == 1
}

// Run executes the action for target and reports whether it succeeded.
// Paths are given relative to the current directory of loc.
func (a *ActionRule) Run(ctx context.Context, ip *interp.Interpreter, loc *location.Manager, scope *interp.Scope, sources []*graph.Node, target *graph.Node) (bool, error) {
	if !a.Handles(len(sources)) {
		return false, nil
	}

	if a.Style == StyleEach {
		n := sources[0]
		_ = scope.Set("source-logical", n.Logical(), false)
		_ = scope.Set("source", loc.RelativeCurrent(n.Actual()), false)
		_ = scope.Set("source-file", n.Filename(), false)
	} else {
		logicals := make(interp.List, len(sources))
		paths := make(interp.List, len(sources))
		files := make(interp.List, len(sources))
		for i, n := range sources {
			logicals[i] = n.Logical()
			paths[i] = loc.RelativeCurrent(n.Actual())
			files[i] = n.Filename()
		}
		_ = scope.Set("sources-logical", logicals, false)
		_ = scope.Set("sources", paths, false)
		_ = scope.Set("sources-file", files, false)
	}
	_ = scope.Set("target-logical", target.Logical(), false)
	_ = scope.Set("target", loc.RelativeCurrent(target.Actual()), false)
	_ = scope.Set("target-file", target.Filename(), false)

	v, err := ip.Interpret(ctx, a.code, scope)
	if err != nil {
		return false, err
	}
	return interp.Booleanize(v), nil
}
