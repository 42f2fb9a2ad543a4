package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Marker prefixes output produced by the build system itself.
const Marker = ">>> "

// Exit codes that do not come from an error's suggested return code.
const (
	ExitOK        = 0
	ExitCancelled = 1
	ExitBug       = 2
)

// Message renders one error as aligned "key: value" lines.
func (e *Error) Message() string {
	type entry struct {
		key   string
		lines []string
	}

	entries := []entry{{"error class", []string{string(e.Kind)}}}
	if e.Details != "" {
		entries = append(entries, entry{"details", []string{e.Details}})
	}
	for _, k := range e.sortedKeys() {
		if k == "error class" || k == "details" || k == "token" {
			continue
		}
		lines := render(e.Fields[k])
		if lines == nil {
			continue
		}
		entries = append(entries, entry{k, lines})
	}

	var provenance []entry
	if e.Origin != nil {
		provenance = []entry{
			{"at-file", []string{e.Origin.File}},
			{"at-line", []string{fmt.Sprint(e.Origin.Line)}},
			{"at-position", []string{fmt.Sprint(e.Origin.Position)}},
		}
	}

	longest := 0
	for _, en := range append(append([]entry{}, entries...), provenance...) {
		if len(en.key) > longest {
			longest = len(en.key)
		}
	}

	var b strings.Builder
	write := func(en entry) {
		pad := "\n" + strings.Repeat(" ", longest+2)
		fmt.Fprintf(&b, "%-*s: %s\n", longest, en.key, strings.Join(en.lines, pad))
	}
	for _, en := range entries {
		write(en)
	}
	if len(provenance) > 0 {
		b.WriteString("\n")
		for _, en := range provenance {
			write(en)
		}
	}
	return b.String()
}

// Report writes a human readable account of err and returns the process
// exit code it implies.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}

	var set *Set
	if errors.As(err, &set) {
		fmt.Fprintln(w, "errors occurred during processing:")
		for _, e := range set.Errors() {
			fmt.Fprintln(w)
			fmt.Fprint(w, e.Message())
		}
		fmt.Fprintln(w)
		return set.RC()
	}

	if e, ok := As(err); ok {
		fmt.Fprintln(w, "an error occurred during processing:")
		fmt.Fprintln(w)
		fmt.Fprint(w, e.Message())
		fmt.Fprintln(w)
		return e.RC
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, Marker+"...build cancelled.")
		return ExitCancelled
	}

	fmt.Fprintln(w, Marker+"caught a bug!")
	fmt.Fprintln(w, err.Error())
	return ExitBug
}

// ExitCode returns the exit code Report would return, without writing.
func ExitCode(err error) int {
	return Report(io.Discard, err)
}
