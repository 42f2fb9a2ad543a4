package interp

import (
	"strconv"
	"strings"
)

// Value is the result of interpreting a token: a string, a bool, an int or
// a List.
type Value = interface{}

// List is an ordered vector of values. Lists may nest.
type List []Value

// Lines flattens the list into strings, one per element.
func (l List) Lines() []string {
	return Strings(l)
}

// Flatten returns the scalar elements of v, descending into nested lists.
func Flatten(v Value) List {
	out := List{}
	var walk func(Value)
	walk = func(v Value) {
		if l, ok := v.(List); ok {
			for _, e := range l {
				walk(e)
			}
			return
		}
		out = append(out, v)
	}
	walk(v)
	return out
}

// Strings flattens v and converts every element with String.
func Strings(v Value) []string {
	flat := Flatten(v)
	out := make([]string, len(flat))
	for i, e := range flat {
		out[i] = String(e)
	}
	return out
}

// String converts a value to its plain text form. Lists concatenate their
// flattened elements.
func String(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case List:
		return strings.Join(Strings(t), "")
	case *Token:
		return String(t.Value())
	default:
		return ""
	}
}

// Booleanize converts a value to a bool. An empty list is false, as is any
// scalar whose text is "", "false" or "0".
func Booleanize(v Value) bool {
	if l, ok := v.(List); ok {
		return len(l) > 0
	}
	switch String(v) {
	case "", "false", "0":
		return false
	}
	return true
}

// Integerize converts a value to an int. A list is its length; a scalar is
// its leading integer, or 0.
func Integerize(v Value) int {
	if l, ok := v.(List); ok {
		return len(l)
	}
	if i, ok := v.(int); ok {
		return i
	}
	return leadingInt(String(v))
}

func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '_' && end > digits) {
		end++
	}
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimRight(s[:end], "_"), "_", ""))
	if err != nil {
		return 0
	}
	return n
}

// Scalarize converts a value to a string. Booleans spell themselves, and a
// list becomes its length.
func Scalarize(v Value) string {
	if l, ok := v.(List); ok {
		return strconv.Itoa(len(l))
	}
	return String(v)
}

// Vectorize converts a value to a List. true is ["true"], false is empty, a
// scalar is a one element list unless it booleanizes false.
func Vectorize(v Value) List {
	switch t := v.(type) {
	case List:
		return t
	case bool:
		if t {
			return List{"true"}
		}
		return List{}
	case nil:
		return List{}
	}
	if Booleanize(v) {
		return List{String(v)}
	}
	return List{}
}

// Equal reports whether two values are deeply equal. Values of different
// types are never equal.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case int:
		y, ok := b.(int)
		return ok && x == y
	}
	return a == nil && b == nil
}

// Format renders a value for display: strings as they are, lists as
// parenthesized s-expressions.
func Format(v Value) string {
	l, ok := v.(List)
	if !ok {
		return String(v)
	}
	parts := make([]string, len(l))
	for i, e := range l {
		if _, nested := e.(List); nested {
			parts[i] = Format(e)
			continue
		}
		parts[i] = quote(String(e))
	}
	return "(" + strings.Join(parts, " ") + ")"
}
