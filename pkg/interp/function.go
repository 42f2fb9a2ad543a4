package interp

import (
	"context"
	"sort"
	"strings"

	"github.com/tapestry/tapestry/pkg/fault"
)

// Unbounded marks a function that accepts any number of parameters.
const Unbounded = -1

// Allow names how a parameter token is checked and converted.
type Allow string

const (
	// Raw token modes.
	AllowLiteral      Allow = "literal"
	AllowScalar       Allow = "scalar"
	AllowVariableName Allow = "variable-name"
	AllowVector       Allow = "vector"
	AllowFunctionCall Allow = "function-call"
	AllowAny          Allow = "any"

	// Modes that interpret the token first.
	AllowAnyExpression     Allow = "any-expression"
	AllowLiteralExpression Allow = "literal-expression"
	AllowScalarExpression  Allow = "scalar-expression"
	AllowVectorExpression  Allow = "vector-expression"
)

var allowModes = map[Allow]bool{
	AllowLiteral: true, AllowScalar: true, AllowVariableName: true, AllowVector: true,
	AllowFunctionCall: true, AllowAny: true, AllowAnyExpression: true,
	AllowLiteralExpression: true, AllowScalarExpression: true, AllowVectorExpression: true,
}

// ParseAllow validates a mode name.
func ParseAllow(s string) (Allow, bool) {
	a := Allow(s)
	return a, allowModes[a]
}

// Expression reports whether the mode interprets its token.
func (a Allow) Expression() bool {
	return strings.HasSuffix(string(a), "-expression")
}

// Handler implements a function.
type Handler func(c *Call) (Value, error)

// Function describes a callable: its arity range, help text and handler.
type Function struct {
	Name    string
	Min     int
	Max     int
	Usage   string
	Handler Handler
	Builtin bool
}

// Accepts reports whether n parameters are within the arity range.
func (f *Function) Accepts(n int) bool {
	return n >= f.Min && (f.Max == Unbounded || n <= f.Max)
}

// Arity renders the arity range for help output.
func (f *Function) Arity() string {
	switch {
	case f.Max == Unbounded:
		return itoa(f.Min) + "..*"
	case f.Min == f.Max:
		return itoa(f.Min)
	default:
		return itoa(f.Min) + ".." + itoa(f.Max)
	}
}

// UsageLines splits the usage text for error reports.
func (f *Function) UsageLines() []string {
	if f == nil || f.Usage == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(f.Usage, "\n"), "\n")
}

// Registry maps function names to functions.
type Registry map[string]*Function

// Add registers a builtin.
func (r Registry) Add(name string, min, max int, usage string, h Handler) {
	r[name] = &Function{Name: name, Min: min, Max: max, Usage: usage, Handler: h, Builtin: true}
}

// Sorted returns the functions ordered by name.
func (r Registry) Sorted() []*Function {
	out := make([]*Function, 0, len(r))
	for _, f := range r {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Builtins returns a fresh table of the language's builtin functions.
func Builtins() Registry {
	r := Registry{}
	registerMainline(r)
	registerVariables(r)
	registerControl(r)
	registerLogic(r)
	registerVectors(r)
	registerIO(r)
	registerPatterns(r)
	registerUserDefined(r)
	return r
}

// Call is one invocation of a function.
type Call struct {
	Interp *Interpreter
	Token  *Token
	Scope  *Scope
	Func   *Function

	ctx context.Context
}

// Context returns the call's context.
func (c *Call) Context() context.Context {
	return c.ctx
}

// Name returns the called function's name.
func (c *Call) Name() string {
	return c.Token.Items[0].Text
}

// Arity returns the number of parameters supplied.
func (c *Call) Arity() int {
	return len(c.Token.Items) - 1
}

// Arg returns the raw token of parameter i, counting from 1.
func (c *Call) Arg(i int) *Token {
	return c.Token.Items[i]
}

// Interpret evaluates a token in the call's scope.
func (c *Call) Interpret(t *Token) (Value, error) {
	return c.Interp.Interpret(c.ctx, t, c.Scope)
}

// ParamError creates a parameter error about parameter i.
func (c *Call) ParamError(i int, details string) *fault.Error {
	e := fault.New(fault.KindParameter, details).
		With("function", c.Name()).
		With("parameter", i).
		With("usage", c.Func.UsageLines()).
		WithOrder("function", "parameter")
	if i > 0 && i < len(c.Token.Items) {
		e.At(c.Token.Items[i].Origin())
	}
	return e
}

// Param processes parameter i under the given mode. Raw token modes return
// the token's data; expression modes return the interpreted value.
func (c *Call) Param(i int, allow Allow) (Value, error) {
	v, ok, err := c.process(i, allow)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.ParamError(i, "expected "+string(allow))
	}
	return v, nil
}

// Test processes parameter i and reports whether it satisfied the mode,
// without failing on a mismatch.
func (c *Call) Test(i int, allow Allow) (Value, bool, error) {
	return c.process(i, allow)
}

// Code returns parameter i as a token, checked against a raw token mode.
func (c *Call) Code(i int, allow Allow) (*Token, error) {
	if _, err := c.Param(i, allow); err != nil {
		return nil, err
	}
	return c.Arg(i), nil
}

func (c *Call) process(i int, allow Allow) (Value, bool, error) {
	v, ok, err := c.Interp.processToken(c.ctx, c.Arg(i), allow, c.Scope)
	if err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

// Text processes parameter i under a string producing mode such as
// literal-expression or scalar-expression.
func (c *Call) Text(i int, allow Allow) (string, error) {
	v, err := c.Param(i, allow)
	if err != nil {
		return "", err
	}
	return String(v), nil
}

// Scalar interprets parameter i and scalarizes the result.
func (c *Call) Scalar(i int) (string, error) {
	v, err := c.Param(i, AllowAnyExpression)
	if err != nil {
		return "", err
	}
	return Scalarize(v), nil
}

// Vector interprets parameter i and vectorizes the result.
func (c *Call) Vector(i int) (List, error) {
	v, err := c.Param(i, AllowAnyExpression)
	if err != nil {
		return nil, err
	}
	return Vectorize(v), nil
}

// Boolean interprets parameter i and booleanizes the scalarized result.
func (c *Call) Boolean(i int) (bool, error) {
	s, err := c.Scalar(i)
	if err != nil {
		return false, err
	}
	return Booleanize(s), nil
}

// Integer interprets parameter i and integerizes the scalarized result.
func (c *Call) Integer(i int) (int, error) {
	s, err := c.Scalar(i)
	if err != nil {
		return 0, err
	}
	return Integerize(s), nil
}

// processToken checks a token against a mode. The bool result is false when
// the token does not satisfy the mode.
func (ip *Interpreter) processToken(ctx context.Context, t *Token, allow Allow, scope *Scope) (Value, bool, error) {
	var result Value
	if allow.Expression() {
		r, err := ip.Interpret(ctx, t, scope)
		if err != nil {
			return nil, false, err
		}
		result = r
	}

	switch allow {
	case AllowLiteral:
		if !t.IsList() && IsLiteral(t.Text) {
			return t.Text, true, nil
		}
	case AllowScalar:
		if !t.IsList() {
			return t.Text, true, nil
		}
	case AllowVariableName:
		if !t.IsList() {
			if name, ok := simpleVariable(t.Text); ok {
				return name, true, nil
			}
		}
	case AllowVector:
		if t.IsList() {
			return t.Value(), true, nil
		}
	case AllowFunctionCall:
		if t.IsList() && len(t.Items) > 0 {
			return t.Value(), true, nil
		}
	case AllowAny:
		return t.Value(), true, nil
	case AllowAnyExpression:
		return result, true, nil
	case AllowLiteralExpression:
		if s, ok := result.(string); ok && IsLiteral(s) {
			return s, true, nil
		}
	case AllowScalarExpression:
		if s, ok := result.(string); ok {
			return s, true, nil
		}
	case AllowVectorExpression:
		if l, ok := result.(List); ok {
			return l, true, nil
		}
	default:
		return nil, false, fault.Newf(fault.KindType, "unknown parameter mode %q", string(allow))
	}
	return nil, false, nil
}

func itoa(n int) string {
	return Scalarize(n)
}
