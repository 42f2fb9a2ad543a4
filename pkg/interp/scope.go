package interp

import (
	"sort"

	"github.com/tapestry/tapestry/pkg/fault"
)

// Scope maps variable names to values. When strict is requested, reading
// or assigning an undeclared name fails instead of defaulting.
type Scope struct {
	vars   map[string]Value
	strict bool
}

// NewScope creates an empty scope. strict is the default for operations
// that do not choose.
func NewScope(strict bool) *Scope {
	return &Scope{vars: make(map[string]Value), strict: strict}
}

// Strict reports the scope's default definition policy.
func (s *Scope) Strict() bool {
	return s.strict
}

// Define declares name. With strict set, redefining an existing name fails.
func (s *Scope) Define(name string, v Value, strict bool) error {
	if !strict {
		return s.Set(name, v, false)
	}
	if s.Defined(name) {
		return fault.New(fault.KindRuntime, "variable redefinition attempted").With("name", name)
	}
	s.vars[name] = v
	return nil
}

// Defined reports whether name is present.
func (s *Scope) Defined(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Get returns the value of name. An undefined name is "" unless strict.
func (s *Scope) Get(name string, strict bool) (Value, error) {
	if v, ok := s.vars[name]; ok {
		return v, nil
	}
	if strict {
		return nil, undefined(name)
	}
	return "", nil
}

// Lookup returns the value of name and whether it was present.
func (s *Scope) Lookup(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set assigns name. With strict set, name must already be defined.
func (s *Scope) Set(name string, v Value, strict bool) error {
	if strict && !s.Defined(name) {
		return undefined(name)
	}
	s.vars[name] = v
	return nil
}

// Names returns the defined names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies the scope.
func (s *Scope) Clone() *Scope {
	c := NewScope(s.strict)
	for k, v := range s.vars {
		c.vars[k] = v
	}
	return c
}

func undefined(name string) *fault.Error {
	return fault.New(fault.KindRuntime, "variable undefined").With("name", name)
}
