package interp

import (
	"context"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/location"
)

// Option names understood by the interpreter.
const (
	OptionDefBeforeSet       = "def-before-set"
	OptionPrintSeparator     = "print-separator"
	OptionPrintTerminator    = "print-terminator"
	OptionReport             = "report"
	OptionReportProduction   = "report-def-production"
	OptionReportAnalyzer     = "report-def-analyzer"
	OptionReportAction       = "report-def-action"
	defaultInstructionsLabel = "<instructions>"
)

func defaultOptions() map[string]Value {
	return map[string]Value{
		OptionDefBeforeSet:     false,
		OptionPrintSeparator:   " ",
		OptionPrintTerminator:  "\n",
		OptionReport:           true,
		OptionReportProduction: true,
		OptionReportAnalyzer:   true,
		OptionReportAction:     true,
	}
}

// Config configures a new Interpreter.
type Config struct {
	// File labels the instruction tokens for diagnostics.
	File string

	// Locations resolves relative paths. Defaults to the working directory.
	Locations *location.Manager

	// Parent, when set, supplies the initial global variables. Otherwise
	// globals start from Environ.
	Parent *Interpreter

	// Environ is the "KEY=value" list seeding globals. Defaults to os.Environ.
	Environ []string

	// Options overrides interpreter options by name.
	Options map[string]string

	Stdout io.Writer
	Stderr io.Writer
	Logger zerolog.Logger
}

// Interpreter runs one Buildfile program.
type Interpreter struct {
	instructions *Token
	globals      *Scope
	functors     Registry
	options      map[string]Value
	loc          *location.Manager
	stdout       io.Writer
	stderr       io.Writer
	logger       zerolog.Logger
	ran          bool
}

// New parses src and prepares an interpreter for it. The program is not run
// until Run is called.
func New(src io.Reader, cfg Config) (*Interpreter, error) {
	if cfg.File == "" {
		cfg.File = defaultInstructionsLabel
	}
	program, err := parse(src, cfg.File, "do")
	if err != nil {
		return nil, err
	}

	ip := &Interpreter{
		instructions: program,
		functors:     Builtins(),
		options:      defaultOptions(),
		loc:          cfg.Locations,
		stdout:       cfg.Stdout,
		stderr:       cfg.Stderr,
		logger:       cfg.Logger.With().Str("component", "interp").Logger(),
	}
	if ip.loc == nil {
		if ip.loc, err = location.New(".", ""); err != nil {
			return nil, err
		}
	}
	if ip.stdout == nil {
		ip.stdout = os.Stdout
	}
	if ip.stderr == nil {
		ip.stderr = os.Stderr
	}

	if cfg.Parent != nil {
		ip.globals = cfg.Parent.globals.Clone()
	} else {
		ip.globals = NewScope(false)
		environ := cfg.Environ
		if environ == nil {
			environ = os.Environ()
		}
		for _, kv := range environ {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				_ = ip.globals.Define(k, v, false)
			}
		}
	}

	for name, value := range cfg.Options {
		if err := ip.SetOption(name, value); err != nil {
			return nil, err
		}
	}
	return ip, nil
}

// Run interprets the program in the global scope.
func (ip *Interpreter) Run(ctx context.Context) error {
	_, err := ip.Interpret(ctx, ip.instructions, ip.globals)
	ip.ran = true
	return err
}

// Ran reports whether Run has been called.
func (ip *Interpreter) Ran() bool {
	return ip.ran
}

// Eval parses and interprets additional source in the global scope, as an
// implicit do block.
func (ip *Interpreter) Eval(ctx context.Context, src, file string) (Value, error) {
	program, err := parse(strings.NewReader(src), file, "do")
	if err != nil {
		return nil, err
	}
	return ip.Interpret(ctx, program, ip.globals)
}

// Instructions returns the parsed program.
func (ip *Interpreter) Instructions() *Token { return ip.instructions }

// Globals returns the global scope.
func (ip *Interpreter) Globals() *Scope { return ip.globals }

// Locations returns the path context used for file operations.
func (ip *Interpreter) Locations() *location.Manager { return ip.loc }

// Stdout returns the writer program output goes to.
func (ip *Interpreter) Stdout() io.Writer { return ip.stdout }

// Logger returns the interpreter's logger.
func (ip *Interpreter) Logger() zerolog.Logger { return ip.logger }

// Register adds or replaces a function.
func (ip *Interpreter) Register(f *Function) {
	ip.functors[f.Name] = f
}

// Function looks up a function by name.
func (ip *Interpreter) Function(name string) (*Function, bool) {
	f, ok := ip.functors[name]
	return f, ok
}

// Functions returns the function table.
func (ip *Interpreter) Functions() Registry {
	return ip.functors
}

// Option returns the value of an interpreter option.
func (ip *Interpreter) Option(name string) (Value, bool) {
	v, ok := ip.options[name]
	return v, ok
}

// SetOption changes an option. Boolean options booleanize the value.
func (ip *Interpreter) SetOption(name string, v Value) error {
	current, ok := ip.options[name]
	if !ok {
		return fault.New(fault.KindRuntime, "unknown option").With("option", name)
	}
	if _, isBool := current.(bool); isBool {
		ip.options[name] = Booleanize(v)
		return nil
	}
	ip.options[name] = Scalarize(v)
	return nil
}

// DefBeforeSet reports whether variables must be defined before assignment.
func (ip *Interpreter) DefBeforeSet() bool {
	b, _ := ip.options[OptionDefBeforeSet].(bool)
	return b
}

// Reports reports whether definitions of the named kind are logged.
func (ip *Interpreter) Reports(option string) bool {
	all, _ := ip.options[OptionReport].(bool)
	one, ok := ip.options[option].(bool)
	return all && (!ok || one)
}

// Interpret evaluates a token: lists are function calls, strings are
// expanded. A nil scope means the global scope.
func (ip *Interpreter) Interpret(ctx context.Context, t *Token, scope *Scope) (Value, error) {
	if scope == nil {
		scope = ip.globals
	}
	if t.IsList() {
		return ip.Call(ctx, t, scope)
	}
	return ip.Expand(t.Text, scope), nil
}

// Call dispatches a function call token.
func (ip *Interpreter) Call(ctx context.Context, t *Token, scope *Scope) (Value, error) {
	if !t.IsList() {
		return nil, fault.New(fault.KindSyntax, "expected function call").At(t.Origin())
	}
	if len(t.Items) == 0 {
		return nil, fault.New(fault.KindSyntax, "function call empty").At(t.Origin())
	}

	head := t.Items[0]
	fn, ok := ip.functors[head.Text]
	if !ok || head.IsList() {
		return nil, ip.functionError(fault.KindRuntime, "undefined function", t, nil)
	}
	arity := len(t.Items) - 1
	if !fn.Accepts(arity) {
		return nil, ip.functionError(fault.KindSyntax, "invalid parameter count", t, fn)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ip.logger.Trace().Str("function", fn.Name).Int("arity", arity).Int("line", t.Line).Msg("call")

	v, err := fn.Handler(&Call{Interp: ip, Token: t, Scope: scope, Func: fn, ctx: ctx})
	if err != nil {
		var e *fault.Error
		if errors.As(err, &e) && e.Origin == nil {
			e.At(t.Origin())
			if !e.Has("usage") {
				e.With("usage", fn.UsageLines())
			}
		}
		return nil, err
	}
	return v, nil
}

func (ip *Interpreter) functionError(kind fault.Kind, details string, t *Token, fn *Function) *fault.Error {
	name := t.Items[0].Text
	if t.Items[0].IsList() {
		name = t.Items[0].String()
	}
	return fault.New(kind, details).
		With("function", name).
		With("usage", fn.UsageLines()).
		WithOrder("function").
		At(t.Origin())
}

var (
	variablePattern       = regexp.MustCompile(`(?:^|[^\\])(\$\{?(\w[\w-]*)\}?)`)
	simpleVariablePattern = regexp.MustCompile(`^\$\{?(\w[\w-]*)\}?$`)
	escapePattern         = regexp.MustCompile(`[\\$]`)
	unescapePattern       = regexp.MustCompile(`\\[\\$]`)
)

// Expand substitutes variable references in s. A string that is exactly one
// reference yields the variable's value unchanged. Otherwise each list
// valued reference fans out into one string per flattened element; a single
// result is returned as a string, several (or none) as a List.
func (ip *Interpreter) Expand(s string, scope *Scope) Value {
	if m := simpleVariablePattern.FindStringSubmatch(s); m != nil {
		return ip.Variable(m[1], scope)
	}

	var finished []string
	queue := []string{s}
	for len(queue) > 0 {
		element := queue[0]
		queue = queue[1:]

		loc := variablePattern.FindStringSubmatchIndex(element)
		if loc == nil {
			finished = append(finished, unescape(element))
			continue
		}
		before, after := element[:loc[2]], element[loc[3]:]
		value := ip.Variable(element[loc[4]:loc[5]], scope)

		if l, ok := value.(List); ok {
			for _, v := range Flatten(l) {
				queue = append(queue, before+escape(String(v))+after)
			}
			continue
		}
		queue = append(queue, before+escape(String(value))+after)
	}

	if len(finished) == 1 {
		return finished[0]
	}
	out := make(List, len(finished))
	for i, f := range finished {
		out[i] = f
	}
	return out
}

// Variable resolves name in scope, falling back to the globals. Undefined
// names are "".
func (ip *Interpreter) Variable(name string, scope *Scope) Value {
	if scope != nil {
		if v, ok := scope.Lookup(name); ok {
			return v
		}
	}
	v, _ := ip.globals.Get(name, false)
	return v
}

func escape(s string) string {
	return escapePattern.ReplaceAllStringFunc(s, func(m string) string { return `\` + m })
}

func unescape(s string) string {
	return unescapePattern.ReplaceAllStringFunc(s, func(m string) string { return m[1:] })
}

// IsLiteral reports whether s holds no variable references.
func IsLiteral(s string) bool {
	return !variablePattern.MatchString(s)
}

func simpleVariable(s string) (string, bool) {
	m := simpleVariablePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
