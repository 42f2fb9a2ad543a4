package fault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error. Kinds are free-form tags; the constants below
// are the ones the engine raises itself.
type Kind string

const (
	KindSyntax         Kind = "syntax error"
	KindType           Kind = "type error"
	KindParameter      Kind = "parameter error"
	KindRuntime        Kind = "runtime error"
	KindLocation       Kind = "location error"
	KindDirectory      Kind = "directory error"
	KindBuild          Kind = "build error"
	KindProductionRule Kind = "production rule error"
	KindTarget         Kind = "target error"
	KindLoad           Kind = "load error"
	KindAbort          Kind = "abort"
)

// DefaultRC is the return code suggested by errors that do not pick one.
const DefaultRC = 10

// Origin is the provenance of the instruction token an error is about.
type Origin struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Position int    `json:"position"`
}

// Error is a classified failure with named details.
type Error struct {
	// Kind is the error class.
	Kind Kind `json:"class"`

	// Details is the human readable summary.
	Details string `json:"details,omitempty"`

	// Fields holds the contextual key/value pairs. Values are strings,
	// string slices, integers, or anything implementing Lines or Stringer.
	Fields map[string]interface{} `json:"fields,omitempty"`

	// Order lists the keys that report before the alphabetical remainder.
	Order []string `json:"-"`

	// Origin is the offending token's provenance, if known.
	Origin *Origin `json:"origin,omitempty"`

	// RC is the suggested process return code.
	RC int `json:"rc"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	fatal bool
}

// Lines is implemented by values that report as one entry per line.
type Lines interface {
	Lines() []string
}

// New creates a fatal error of the given kind.
func New(kind Kind, details string) *Error {
	return &Error{
		Kind:    kind,
		Details: details,
		RC:      DefaultRC,
		fatal:   true,
	}
}

// Newf creates a fatal error with a formatted details message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap converts an arbitrary error into a fatal error of the given kind.
// A *Error passes through unchanged.
func Wrap(kind Kind, details string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(kind, details).With("cause", err.Error()).withErr(err)
}

func (e *Error) withErr(err error) *Error {
	e.Err = err
	return e
}

// With sets a detail field. A nil value removes the field from reports.
func (e *Error) With(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithDefault sets a detail field unless it is already present.
func (e *Error) WithDefault(key string, value interface{}) *Error {
	if _, ok := e.Fields[key]; ok {
		return e
	}
	return e.With(key, value)
}

// Get returns a detail field.
func (e *Error) Get(key string) (interface{}, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// Has reports whether a detail field is present.
func (e *Error) Has(key string) bool {
	_, ok := e.Fields[key]
	return ok
}

// WithOrder sets the keys that report first, after error class and details.
func (e *Error) WithOrder(keys ...string) *Error {
	e.Order = keys
	return e
}

// WithRC sets the suggested return code.
func (e *Error) WithRC(rc int) *Error {
	e.RC = rc
	return e
}

// At records the offending token's provenance unless one is already known.
func (e *Error) At(origin Origin) *Error {
	if e.Origin == nil {
		o := origin
		e.Origin = &o
	}
	return e
}

// Fatal marks the error as unbufferable.
func (e *Error) Fatal() *Error {
	e.fatal = true
	return e
}

// Buffered marks the error as one a Set may hold without propagating.
func (e *Error) Buffered() *Error {
	e.fatal = false
	return e
}

// IsFatal reports whether the error must propagate immediately.
func (e *Error) IsFatal() bool {
	return e.fatal
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	keys := e.sortedKeys()
	if len(keys) > 0 {
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, strings.Join(render(e.Fields[k]), ","))
		}
		b.WriteString(")")
	}
	if e.Origin != nil {
		fmt.Fprintf(&b, " at %s:%d:%d", e.Origin.File, e.Origin.Line, e.Origin.Position)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind and details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Details == "" || e.Details == t.Details)
}

// sortedKeys returns the field keys in report order, skipping nil values.
func (e *Error) sortedKeys() []string {
	alpha := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		alpha = append(alpha, k)
	}
	sort.Strings(alpha)

	seen := make(map[string]bool, len(alpha))
	keys := make([]string, 0, len(alpha))
	for _, k := range append(append([]string{}, e.Order...), alpha...) {
		if seen[k] {
			continue
		}
		seen[k] = true
		if v, ok := e.Fields[k]; ok && v != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// render turns a field value into report lines.
func render(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case Lines:
		return t.Lines()
	case fmt.Stringer:
		return []string{t.String()}
	default:
		return []string{fmt.Sprint(t)}
	}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
