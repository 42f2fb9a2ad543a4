package interp

import (
	"os"
	"strings"

	"github.com/tapestry/tapestry/pkg/fault"
)

var includeStyles = []string{"do", "collect", "l", "return"}

func registerMainline(r Registry) {
	r.Add("do", 0, Unbounded, `(do <function-call>...)
Interprets each function call in order, in the caller's scope, and returns
the last result.
(do <variable-name>)
Interprets the list held in the variable as a function call.`, builtinDo)

	collect := `(collect <any-expression>...)
(l <any-expression>...)
Returns a vector of the results of each expression.`
	r.Add("collect", 1, Unbounded, collect, builtinCollect)
	r.Add("l", 1, Unbounded, collect, builtinCollect)

	r.Add("return", 1, 1, `(return <any-expression>)
Interprets the expression and returns the result.`, func(c *Call) (Value, error) {
		return c.Param(1, AllowAnyExpression)
	})

	r.Add("include", 1, Unbounded, `(include do|collect|l|return <path>...)
Loads code from each path, relative to the zone home, and runs it as the
arguments of the named function, in the caller's scope.`, builtinInclude)

	r.Add("abort", 0, 2, `(abort [<literal-expression:message>] [<any-expression:rc>])
Stops processing with a fatal error carrying the message and return code
(default 10).`, builtinAbort)
}

func builtinDo(c *Call) (Value, error) {
	if c.Arity() == 1 {
		if _, ok, err := c.Test(1, AllowVariableName); err != nil {
			return nil, err
		} else if ok {
			code, err := c.Param(1, AllowVectorExpression)
			if err != nil {
				return nil, err
			}
			return c.Interpret(TokenOf(code, c.Arg(1)))
		}
	}

	var result Value = ""
	for i := 1; i <= c.Arity(); i++ {
		if _, err := c.Param(i, AllowFunctionCall); err != nil {
			return nil, err
		}
		v, err := c.Param(i, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func builtinCollect(c *Call) (Value, error) {
	out := make(List, 0, c.Arity())
	for i := 1; i <= c.Arity(); i++ {
		v, err := c.Param(i, AllowAnyExpression)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func builtinInclude(c *Call) (Value, error) {
	style, err := c.Scalar(1)
	if err != nil {
		return nil, err
	}
	valid := false
	for _, s := range includeStyles {
		valid = valid || s == style
	}
	if !valid {
		return nil, c.ParamError(1, "include must use one of the mainline functions: "+strings.Join(includeStyles, ", "))
	}
	if c.Arity() < 2 {
		return nil, c.ParamError(2, "expected a file to include")
	}

	var result Value = ""
	for i := 2; i <= c.Arity(); i++ {
		name, err := c.Scalar(i)
		if err != nil {
			return nil, err
		}
		program, err := c.Interp.load(c.Interp.loc.OffsetHome(name), style, c.Token)
		if err != nil {
			return nil, err
		}
		if result, err = c.Interpret(program); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// load reads an instructions file and wraps it in a call to style.
func (ip *Interpreter) load(path, style string, at *Token) (*Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, InstructionsFileError(path, ip.loc.Home()).At(at.Origin())
	}
	defer f.Close()

	program, err := parse(f, path, style)
	if err != nil {
		return nil, err
	}
	program.Items[0].File, program.Items[0].Line, program.Items[0].Position = at.File, at.Line, at.Position
	return program, nil
}

// InstructionsFileError reports an unreadable Buildfile or include.
func InstructionsFileError(path, zone string) *fault.Error {
	return fault.New(fault.KindLoad, "unable to open instructions file").
		With("instructions-file", path).
		With("zone", zone).
		WithOrder("instructions-file", "zone")
}

func builtinAbort(c *Call) (Value, error) {
	e := fault.New(fault.KindAbort, "")
	if c.Arity() > 0 {
		msg, err := c.Text(1, AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		e.Details = msg
	}
	if c.Arity() > 1 {
		rc, err := c.Integer(2)
		if err != nil {
			return nil, err
		}
		e.WithRC(rc)
	}
	return nil, e.At(c.Token.Origin())
}
