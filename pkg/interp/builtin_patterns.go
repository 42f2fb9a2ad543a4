package interp

import (
	"regexp"
	"strings"

	"github.com/tapestry/tapestry/pkg/wildcard"
)

func registerPatterns(r Registry) {
	r.Add("regex", 2, 3, `(regex <scalar-expression:text> <scalar-expression:pattern> [<literal-expression:replacement>])
With two parameters, returns true if the pattern matches the text.
With three, replaces every match with the replacement, which is evaluated
per match with the match groups in $0..$n.`, builtinRegex)

	r.Add("wildcard", 2, 3, `(wildcard <scalar-expression:text> <scalar-expression:pattern> [<literal-expression:replacement>])
With two parameters, returns true if the wildcard matches the text.
With three, returns the text with the matched portion replaced by the
replacement, evaluated with the wildcard values in $0..$n, or (nil) when
there is no match. Patterns holding a directory are resolved against the
zone home.`, builtinWildcard)

	r.Add("wildcard-splice", 3, 3, `(wildcard-splice <scalar-expression:text> <scalar-expression:pattern> <scalar-expression:target>)
Matches the text and copies the matched wildcard values into the
corresponding wildcards of the target. Returns (nil) when there is no
match.`, builtinWildcard)

	r.Add("wildcard-glob", 1, 1, `(wildcard-glob <scalar-expression:pattern>)
Returns the files matching the wildcard, relative to the current directory.`, func(c *Call) (Value, error) {
		pattern, err := c.Text(1, AllowScalarExpression)
		if err != nil {
			return nil, err
		}
		paths, err := wildcard.Glob(c.Interp.loc.Current(), pattern)
		if err != nil {
			return nil, c.ParamError(1, err.Error())
		}
		out := make(List, len(paths))
		for i, p := range paths {
			out[i] = p
		}
		return out, nil
	})
}

// fillMatch sets $0..$n in the call's scope.
func fillMatch(c *Call, groups []string) {
	for i, g := range groups {
		_ = c.Scope.Set(itoa(i), g, false)
	}
}

func builtinRegex(c *Call) (Value, error) {
	text, err := c.Text(1, AllowScalarExpression)
	if err != nil {
		return nil, err
	}
	pattern, err := c.Text(2, AllowScalarExpression)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, c.ParamError(2, "invalid regular expression: "+err.Error())
	}

	if c.Arity() == 2 {
		return Scalarize(re.MatchString(text)), nil
	}

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		fillMatch(c, groups)
		replacement, err := c.Text(3, AllowLiteralExpression)
		if err != nil {
			return nil, err
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(replacement)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func builtinWildcard(c *Call) (Value, error) {
	text, err := c.Text(1, AllowScalarExpression)
	if err != nil {
		return nil, err
	}
	pattern, err := c.Text(2, AllowScalarExpression)
	if err != nil {
		return nil, err
	}

	loc := c.Interp.loc
	offset := wildcard.HasDirectory(pattern)
	if offset {
		text, pattern = loc.OffsetHome(text), loc.OffsetHome(pattern)
	}
	compiled, err := wildcard.Compile(pattern)
	if err != nil {
		return nil, c.ParamError(2, err.Error())
	}
	relative := func(s string) string {
		if offset && s != "" {
			return loc.RelativeHome(s)
		}
		return s
	}

	if c.Name() == "wildcard-splice" {
		into, err := c.Text(3, AllowScalarExpression)
		if err != nil {
			return nil, err
		}
		spliced, ok := compiled.Splice(into, text)
		if !ok {
			return "", nil
		}
		return relative(spliced), nil
	}

	m := compiled.Match(text)
	if c.Arity() == 2 {
		return Scalarize(m != nil), nil
	}
	if m == nil {
		return "", nil
	}
	fillMatch(c, m.Groups)
	replacement, err := c.Text(3, AllowLiteralExpression)
	if err != nil {
		return nil, err
	}
	return relative(m.Pre + replacement + m.Post), nil
}
