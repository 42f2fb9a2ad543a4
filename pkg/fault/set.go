package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Set buffers errors until it reaches its tolerance or receives a fatal
// error. Add and Merge return the set itself as an error once that happens;
// callers propagate the returned value.
type Set struct {
	errs    []*Error
	maximum int
	fatal   bool
	rc      int
}

// NewSet creates an empty set that becomes the cause of failure after
// maximum errors.
func NewSet(maximum int) *Set {
	return &Set{maximum: maximum, rc: DefaultRC}
}

// Add appends an error. It returns the set when the set must propagate.
func (s *Set) Add(e *Error) error {
	s.absorb(e)
	if s.Cause() {
		return s
	}
	return nil
}

// Merge appends every error of another set. Merging a set into itself only
// re-checks the cause condition.
func (s *Set) Merge(other *Set) error {
	if other != s {
		for _, e := range other.errs {
			s.absorb(e)
		}
	}
	if s.Cause() {
		return s
	}
	return nil
}

// Absorb files any error into the set: sets merge, errors add, and anything
// else is wrapped as a fatal runtime error. It returns the set when the set
// must propagate, and false for ok when err was not a domain error.
func (s *Set) Absorb(err error) (propagate error, ok bool) {
	var set *Set
	if errors.As(err, &set) {
		return s.Merge(set), true
	}
	if e, isErr := As(err); isErr {
		return s.Add(e), true
	}
	return s.Add(Wrap(KindRuntime, "unexpected failure", err)), false
}

func (s *Set) absorb(e *Error) {
	s.errs = append(s.errs, e)
	if e.IsFatal() {
		s.fatal = true
	}
	if e.RC > s.rc {
		s.rc = e.RC
	}
}

// Full reports whether the set reached its tolerance.
func (s *Set) Full() bool {
	return len(s.errs) >= s.maximum
}

// Cause reports whether the set must propagate as the active failure.
func (s *Set) Cause() bool {
	return s.Full() || s.fatal
}

// IsFatal reports whether the set holds a fatal error.
func (s *Set) IsFatal() bool {
	return s.fatal
}

// Empty reports whether no errors were buffered.
func (s *Set) Empty() bool {
	return len(s.errs) == 0
}

// Len returns the number of buffered errors.
func (s *Set) Len() int {
	return len(s.errs)
}

// RC returns the highest return code among the buffered errors.
func (s *Set) RC() int {
	return s.rc
}

// Errors returns the buffered errors in arrival order.
func (s *Set) Errors() []*Error {
	return s.errs
}

// Error implements the error interface.
func (s *Set) Error() string {
	msgs := make([]string, 0, len(s.errs))
	for _, e := range s.errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%d error(s) occurred: %s", len(s.errs), strings.Join(msgs, "; "))
}
