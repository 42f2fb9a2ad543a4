package interp

import (
	"fmt"
	"strings"
)

// Product is the banner printed by interpreter-test.
var Product = "tapestry dev"

func registerUserDefined(r Registry) {
	r.Add("def-function", 3, 4, `(def-function <literal-expression:name> <vector:parameters> <function-call:code> [<any-expression:usage>])
Defines a function. Each parameter has the form $name or $name:type, where
type is one of literal, scalar, variable-name, vector, function-call, any,
literal-expression, scalar-expression, vector-expression or any-expression
(the default). The code runs in a fresh scope holding only the parameters.
Returns the function name.`, builtinDefFunction)

	quote := `(q <any>...)
(' <any>...)
Returns its parameter uninterpreted, or a vector of its parameters when
there are several.`
	r.Add("q", 1, Unbounded, quote, builtinQuote)
	r.Add("'", 1, Unbounded, quote, builtinQuote)

	r.Add("interpreter-test", 0, 0, `(interpreter-test)
Prints a banner and the variables visible to the caller.`, builtinInterpreterTest)
}

func builtinQuote(c *Call) (Value, error) {
	if c.Arity() == 1 {
		return c.Arg(1).Value(), nil
	}
	out := make(List, c.Arity())
	for i := 1; i <= c.Arity(); i++ {
		out[i-1] = c.Arg(i).Value()
	}
	return out, nil
}

type parameter struct {
	name  string
	allow Allow
}

func builtinDefFunction(c *Call) (Value, error) {
	name, err := c.Text(1, AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	signature, err := c.Code(2, AllowVector)
	if err != nil {
		return nil, err
	}
	code, err := c.Code(3, AllowFunctionCall)
	if err != nil {
		return nil, err
	}
	usage := ""
	if c.Arity() == 4 {
		lines, err := c.Vector(4)
		if err != nil {
			return nil, err
		}
		usage = strings.Join(Strings(lines), "\n")
	}

	params := make([]parameter, 0, len(signature.Items))
	for i, item := range signature.Items {
		fail := func(details string) error {
			return c.ParamError(2, details).With("subparameter", i+1)
		}
		if item.IsList() {
			return nil, fail("expected scalar")
		}
		descriptor, typename, typed := strings.Cut(item.Text, ":")
		variable, ok := simpleVariable(descriptor)
		if !ok {
			return nil, fail("expected variable-name")
		}
		allow := AllowAnyExpression
		if typed {
			if allow, ok = ParseAllow(typename); !ok {
				return nil, fail("invalid type: " + typename)
			}
		}
		params = append(params, parameter{name: variable, allow: allow})
	}

	c.Interp.Register(&Function{
		Name:    name,
		Min:     len(params),
		Max:     len(params),
		Usage:   usage,
		Handler: userFunction(params, code),
	})
	return name, nil
}

func userFunction(params []parameter, code *Token) Handler {
	return func(c *Call) (Value, error) {
		local := NewScope(false)
		for i, p := range params {
			v, err := c.Param(i+1, p.allow)
			if err != nil {
				return nil, err
			}
			_ = local.Set(p.name, v, false)
		}
		return c.Interp.Interpret(c.Context(), code, local)
	}
}

func builtinInterpreterTest(c *Call) (Value, error) {
	w := c.Interp.stdout
	globals := c.Interp.globals
	where := "local"
	if c.Scope == globals {
		where = "global"
	}

	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintln(w, Product)
	fmt.Fprintf(w, " | (interpreter-test) invoked in %s scope\n", where)
	fmt.Fprintln(w, " | command interpreter operating correctly")
	fmt.Fprintln(w, " | ")
	if where == "local" {
		fmt.Fprintln(w, " +- local variables ")
		dumpScope(c, c.Scope, " |  +- ")
		fmt.Fprintln(w, " | ")
	}
	fmt.Fprintln(w, " +- global variables ")
	dumpScope(c, globals, "    +- ")
	return "", nil
}

func dumpScope(c *Call, s *Scope, indent string) {
	names := s.Names()
	longest := 0
	for _, n := range names {
		if len(n) > longest {
			longest = len(n)
		}
	}
	for _, n := range names {
		v, _ := s.Lookup(n)
		fmt.Fprintf(c.Interp.stdout, "%s%-*s=[%s]\n", indent, longest, n, String(v))
	}
}
