package build

import (
	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
	"github.com/tapestry/tapestry/pkg/wildcard"
)

// zoneHandler implements a function that acts on the calling zone.
type zoneHandler func(z *Zone, c *interp.Call) (interp.Value, error)

// bind ties a handler to a zone. Without a zone the function can be listed
// but not called.
func bind(z *Zone, h zoneHandler) interp.Handler {
	return func(c *interp.Call) (interp.Value, error) {
		if z == nil {
			return nil, fault.New(fault.KindRuntime, "function needs a loaded zone").With("function", c.Name())
		}
		return h(z, c)
	}
}

// registerOperations adds the build declarations and node queries to r.
func registerOperations(r interp.Registry, z *Zone) {
	registerDeclarations(r, z)
	registerNodes(r, z)
}

func registerDeclarations(r interp.Registry, z *Zone) {
	r.Add("def-sources", 0, interp.Unbounded, `(def-sources <any-expression:sources>...)
Declares the zone's primary source files. Each source is queued for the
production engine, which runs before control returns to the Buildfile.`, bind(z, opDefSources))

	r.Add("def-source", 1, 2, `(def-source <literal-expression:source> [<function-call:code>])
Declares one primary source file. Code, when given, runs once the source is
queued, with $source and $source-file set.`, bind(z, opDefSource))

	r.Add("def-production", 4, 6, `(def-production <literal:name> <integer:priority> <literal:source-wildcard> <literal:target-wildcard> [<any:supplement>] [<literal-expression:action>])
(def-production <literal:name> <integer:priority> <literal:source-wildcard> <function-call:target-code> [<any:supplement>] [<literal-expression:action>])
(def-production <literal:name> <integer:priority> <function-call:applies-code> <function-call:target-code> [<any:supplement>] [<literal-expression:action>])
Defines a production rule in the series called name. Within a series the
first matching rule, highest priority first, produces targets for each
source; equal priorities are tried newest first. A wildcard target is
spliced from the source match and may hold no more wildcards than the
source. Produced targets lose their directory and are placed in the zone.
The action defaults to the series name.

Variables during production: $source, $source-file
Variables during supplement: $source, $source-file, $target, $target-file

Examples
   (def-production cc 0 *.c *.o)
   (def-production cc 10 ../*.c outer-*.o)
   (def-production lpcc 100 source.lp (q (a.c b.c c.h)))`, bind(z, opDefProduction))

	r.Add("set-production-ordering", 1, 1, `(set-production-ordering <vector-expression:names>)
Runs the named production series first, in the given order. Series not
named run afterwards.`, bind(z, opSetProductionOrdering))

	r.Add("def-analyzer", 3, 3, `(def-analyzer <literal-expression:name> <literal:source-wildcard> <any:references-code>)
(def-analyzer <literal-expression:name> <function-call:applies-code> <any:references-code>)
Defines an analyzer, which names the files a node refers to. Analyzers run
on sources in the zone home and on targets in the target directory, at
most once per node. References are resolved against that directory.

Variables: $source-logical, $source, $source-file

Example
   (def-analyzer headers *.c (pipe-in (q (headerscan $source))))`, bind(z, opDefAnalyzer))

	r.Add("def-action", 3, 3, `(def-action <literal-expression:style> <literal-expression:name> <function-call:code>)
Defines an action. Style "each" builds a target from exactly one source
and sets $source-logical, $source and $source-file. Style "all" accepts any
number and sets $sources-logical, $sources and $sources-file. Both set
$target-logical, $target and $target-file. Actions run in the zone's target
directory and fail when the code returns false.

Example
   (def-action each cc (system cc -c -o $target $source))`, bind(z, opDefAction))

	r.Add("def-alias", 2, 2, `(def-alias <literal-expression:name> <any-expression:targets>)
Defines an alias, a name that stands for one or more targets. Names
beginning with @ are reserved and ignored.`, bind(z, opDefAlias))

	r.Add("get-alias", 1, 1, `(get-alias <literal-expression:name>)
Returns the targets of an alias as a vector, or (empty) when it does not
exist.`, bind(z, opGetAlias))

	r.Add("def-macro", 2, 3, `(def-macro <literal-expression:name> <function-call:code> [<any-expression:dependencies>])
Defines a macro, a target whose action is its code. Macros always run;
dependencies are built first and the macro does not run if any fails.

Examples
   (def-macro clean (system rm -f (wildcard-glob *.o)))
   (def-macro test (system ./program) (l program))`, bind(z, opDefMacro))

	r.Add("def-zone", 2, 3, `(def-zone <scalar-expression:zone-directory> <scalar-expression:target-directory> [<scalar-expression:buildfile>])
Loads another zone. The zone directory is resolved against this zone's
home and the target directory against this zone's target directory. The
buildfile is resolved against the new zone's home. The new zone's
Buildfile runs before this one continues. Returns false when a zone
already exists in that directory.`, bind(z, opDefZone))
}

func opDefSources(z *Zone, c *interp.Call) (interp.Value, error) {
	var sources []string
	for i := 1; i <= c.Arity(); i++ {
		v, err := c.Vector(i)
		if err != nil {
			return nil, err
		}
		sources = append(sources, interp.Strings(v)...)
	}
	return "", z.registerSources(c.Context(), sources, c.Scope, nil)
}

func opDefSource(z *Zone, c *interp.Call) (interp.Value, error) {
	source, err := c.Text(1, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	var code *interp.Token
	if c.Arity() == 2 {
		if code, err = c.Code(2, interp.AllowFunctionCall); err != nil {
			return nil, err
		}
	}
	return "", z.registerSources(c.Context(), []string{source}, c.Scope, code)
}

func opDefProduction(z *Zone, c *interp.Call) (interp.Value, error) {
	name, err := c.Text(1, interp.AllowLiteral)
	if err != nil {
		return nil, err
	}
	priority, err := c.Integer(2)
	if err != nil {
		return nil, err
	}
	rule := &ProductionRule{Name: name, Priority: priority, Action: name}
	if c.Arity() >= 6 {
		if rule.Action, err = c.Text(6, interp.AllowLiteralExpression); err != nil {
			return nil, err
		}
	}
	if c.Arity() >= 5 {
		if rule.supplement, err = c.Code(5, interp.AllowAny); err != nil {
			return nil, err
		}
	}
	target, err := c.Code(4, interp.AllowAny)
	if err != nil {
		return nil, err
	}
	rule.targetCode = target

	source, literal, err := c.Test(3, interp.AllowLiteral)
	if err != nil {
		return nil, err
	}
	if literal {
		rule.source = interp.String(source)
		if !target.IsList() && interp.IsLiteral(target.Text) {
			if wildcard.Count(target.Text) > wildcard.Count(rule.source) {
				return nil, c.ParamError(4, "target wildcard must have <= the number of wildcards in the source")
			}
			rule.target = target.Text
			rule.targetCode = nil
		}
	} else if rule.sourceCode, err = c.Code(3, interp.AllowFunctionCall); err != nil {
		return nil, err
	}

	return "", z.producer.AddRule(rule)
}

func opSetProductionOrdering(z *Zone, c *interp.Call) (interp.Value, error) {
	names, err := c.Vector(1)
	if err != nil {
		return nil, err
	}
	return "", z.producer.SetOrdering(interp.Strings(names))
}

func opDefAnalyzer(z *Zone, c *interp.Call) (interp.Value, error) {
	name, err := c.Text(1, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	target, err := c.Code(3, interp.AllowAny)
	if err != nil {
		return nil, err
	}
	a := &AnalyzerRule{Name: name, target: target}

	source, literal, err := c.Test(2, interp.AllowLiteral)
	if err != nil {
		return nil, err
	}
	if literal {
		a.source = interp.String(source)
	} else if a.sourceCode, err = c.Code(2, interp.AllowFunctionCall); err != nil {
		return nil, err
	}
	return "", z.builder.AddAnalyzer(a)
}

func opDefAction(z *Zone, c *interp.Call) (interp.Value, error) {
	style, err := c.Text(1, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	if style != StyleEach && style != StyleAll {
		return nil, c.ParamError(1, `actions must be "each" or "all"`)
	}
	name, err := c.Text(2, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	code, err := c.Code(3, interp.AllowFunctionCall)
	if err != nil {
		return nil, err
	}
	z.builder.AddAction(&ActionRule{Name: name, Style: style, code: code})
	return "", nil
}

func opDefAlias(z *Zone, c *interp.Call) (interp.Value, error) {
	name, err := c.Text(1, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	targets, err := c.Vector(2)
	if err != nil {
		return nil, err
	}
	z.registerAlias(name, interp.Strings(targets))
	return "", nil
}

func opGetAlias(z *Zone, c *interp.Call) (interp.Value, error) {
	name, err := c.Text(1, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	owner := z
	if wildcard.HasDirectory(name) {
		absolute := z.loc.OffsetHome(name)
		if found := z.session.FindZone(absolute); found != nil {
			owner = found
			name = found.loc.RelativeHome(absolute)
		}
	}
	out := interp.List{}
	targets, _ := owner.Alias(name)
	for _, t := range targets {
		out = append(out, t)
	}
	return out, nil
}

func opDefMacro(z *Zone, c *interp.Call) (interp.Value, error) {
	name, err := c.Text(1, interp.AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	code, err := c.Code(2, interp.AllowFunctionCall)
	if err != nil {
		return nil, err
	}
	var dependencies []string
	if c.Arity() == 3 {
		v, err := c.Vector(3)
		if err != nil {
			return nil, err
		}
		dependencies = interp.Strings(v)
	}
	z.registerMacro(name, code, dependencies)
	return "", nil
}

func opDefZone(z *Zone, c *interp.Call) (interp.Value, error) {
	home, err := c.Scalar(1)
	if err != nil {
		return nil, err
	}
	targets, err := c.Scalar(2)
	if err != nil {
		return nil, err
	}
	buildfile := z.session.opts.Buildfile
	if c.Arity() == 3 {
		if buildfile, err = c.Scalar(3); err != nil {
			return nil, err
		}
	}

	home = z.loc.OffsetHome(home)
	targets = z.loc.OffsetTargets(targets)
	if _, exists := z.session.zones[location.Directory(home, "")]; exists {
		return interp.Scalarize(false), nil
	}
	if _, err := z.session.loadZone(c.Context(), z, "", home, targets, buildfile); err != nil {
		return nil, err
	}
	return interp.Scalarize(true), nil
}
