// Package wildcard compiles file path wildcards into regular expressions.
//
// Wildcard characters:
//
//	"*"    matches any run of characters within one path segment
//	"?"    matches exactly one character within a path segment
//	"**/"  at the start of the pattern, or following a slash, matches zero
//	       or more directories
//
// Every other character, including '.', matches only itself. A backslash
// escapes the following character. Each wildcard is one capture group, and
// a pattern matches whole trailing path segments of the text: "*.c" matches
// any path whose final segment ends in ".c", and "?.o" matches "x.o" or
// "/src/x.o" but not "xy.o". Patterns starting with "/" match from the start
// of the text.
package wildcard

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard kinds, as they appear in pattern text.
const (
	kindStar      = "*"
	kindQuestion  = "?"
	kindLeadStars = "**/"
	kindMidStars  = "/**/"
)

var expansions = map[string]string{
	kindStar:      `([^/]*)`,
	kindQuestion:  `([^/])`,
	kindLeadStars: `\A(/?(?:[^/]*/)*)`,
	kindMidStars:  `(/(?:[^/]*/)*)`,
}

// part is one lexical element of a pattern: a wildcard kind, or literal text
// when kind is empty.
type part struct {
	kind string
	text string
}

func scan(expr string) []part {
	var parts []part
	for i := 0; i < len(expr); {
		switch {
		case expr[i] == '\\' && i+1 < len(expr):
			parts = append(parts, part{text: expr[i : i+2]})
			i += 2
		case i == 0 && strings.HasPrefix(expr, kindLeadStars):
			parts = append(parts, part{kind: kindLeadStars, text: kindLeadStars})
			i += len(kindLeadStars)
		case strings.HasPrefix(expr[i:], kindMidStars):
			parts = append(parts, part{kind: kindMidStars, text: kindMidStars})
			i += len(kindMidStars)
		case expr[i] == '*':
			parts = append(parts, part{kind: kindStar, text: "*"})
			i++
		case expr[i] == '?':
			parts = append(parts, part{kind: kindQuestion, text: "?"})
			i++
		default:
			parts = append(parts, part{text: expr[i : i+1]})
			i++
		}
	}
	return parts
}

// translate returns the regular expression source for expr and the kind of
// each capture group in order.
func translate(expr string) (string, []string) {
	var b strings.Builder
	var kinds []string
	for _, p := range scan(expr) {
		if p.kind != "" {
			b.WriteString(expansions[p.kind])
			kinds = append(kinds, p.kind)
			continue
		}
		lit := p.text
		if len(lit) == 2 && lit[0] == '\\' {
			lit = lit[1:]
		}
		b.WriteString(regexp.QuoteMeta(lit))
	}
	return b.String(), kinds
}

// segmentStart anchors a relative pattern at the start of a path segment.
const segmentStart = `(?:\A|/)`

// Wildcard is a compiled wildcard pattern.
type Wildcard struct {
	source string
	re     *regexp.Regexp
	kinds  []string

	// separated is set when a leading "/" of a match was consumed by the
	// segment anchor rather than by the pattern.
	separated bool
}

// Compile parses a wildcard expression.
func Compile(expr string) (*Wildcard, error) {
	src, kinds := translate(expr)
	separated := false
	switch {
	case strings.HasPrefix(expr, kindLeadStars):
	case strings.HasPrefix(expr, "/"):
		src = `\A` + src
	default:
		src = segmentStart + src
		separated = true
	}
	re, err := regexp.Compile(src + `\z`)
	if err != nil {
		return nil, fmt.Errorf("invalid wildcard %q: %w", expr, err)
	}
	return &Wildcard{source: expr, re: re, kinds: kinds, separated: separated}, nil
}

// MustCompile is like Compile but panics if the expression cannot be parsed.
func MustCompile(expr string) *Wildcard {
	w, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return w
}

// Source returns the wildcard text the pattern was compiled from.
func (w *Wildcard) Source() string {
	return w.source
}

// Intermediate returns the regular expression the pattern compiled to.
func (w *Wildcard) Intermediate() string {
	return w.re.String()
}

// String implements fmt.Stringer.
func (w *Wildcard) String() string {
	return w.source
}

// MatchString reports whether text matches the pattern.
func (w *Wildcard) MatchString(text string) bool {
	return w.re.MatchString(text)
}

// Match describes one successful match.
type Match struct {
	// Groups holds the whole match followed by one entry per wildcard.
	Groups []string
	// Pre is the text before the match.
	Pre string
	// Post is the text after the match.
	Post string
}

// Match returns the match of the pattern against text, or nil.
func (w *Wildcard) Match(text string) *Match {
	loc := w.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	start := loc[0]
	if w.separated && start < loc[1] && text[start] == '/' {
		start++
	}
	loc[0] = start
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return &Match{Groups: groups, Pre: text[:start], Post: text[loc[1]:]}
}

// Splice matches text and substitutes the matched wildcard values into the
// wildcards of into, in order per wildcard kind. The two directory forms
// share one queue. The unmatched prefix and suffix of text surround the
// result. It returns false when text does not match.
func (w *Wildcard) Splice(into, text string) (string, bool) {
	m := w.Match(text)
	if m == nil {
		return "", false
	}

	common := []string{}
	queues := map[string]*[]string{
		kindStar:      {},
		kindQuestion:  {},
		kindLeadStars: &common,
		kindMidStars:  &common,
	}
	for i, kind := range w.kinds {
		q := queues[kind]
		*q = append(*q, m.Groups[i+1])
	}

	var b strings.Builder
	b.WriteString(m.Pre)
	for _, p := range scan(into) {
		if p.kind == "" {
			b.WriteString(p.text)
			continue
		}
		q := queues[p.kind]
		if len(*q) == 0 {
			continue
		}
		v := (*q)[0]
		*q = (*q)[1:]
		if p.kind == kindMidStars && !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		b.WriteString(v)
	}
	b.WriteString(m.Post)
	return b.String(), true
}

// Count returns the number of unescaped wildcards in s.
func Count(s string) int {
	n := 0
	for _, p := range scan(s) {
		if p.kind != "" {
			n++
		}
	}
	return n
}

// HasDirectory reports whether s holds a directory delimiter.
func HasDirectory(s string) bool {
	return strings.Contains(s, "/")
}
