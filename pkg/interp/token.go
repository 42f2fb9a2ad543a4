package interp

import (
	"strings"

	"github.com/tapestry/tapestry/pkg/fault"
)

// Token is a node of the parse tree: either a string or a list of tokens,
// tagged with where it was read from.
type Token struct {
	Text     string
	Items    []*Token
	File     string
	Line     int
	Position int

	list bool
}

// NewString creates a string token.
func NewString(text, file string, line, position int) *Token {
	return &Token{Text: text, File: file, Line: line, Position: position}
}

// NewList creates a list token.
func NewList(file string, line, position int, items ...*Token) *Token {
	return &Token{Items: items, File: file, Line: line, Position: position, list: true}
}

// IsList reports whether the token is a list.
func (t *Token) IsList() bool {
	return t.list
}

// Origin returns the token's provenance for error reports.
func (t *Token) Origin() fault.Origin {
	return fault.Origin{File: t.File, Line: t.Line, Position: t.Position}
}

// Value converts the token to data: a string, or a List of the converted
// items.
func (t *Token) Value() Value {
	if !t.list {
		return t.Text
	}
	l := make(List, len(t.Items))
	for i, item := range t.Items {
		l[i] = item.Value()
	}
	return l
}

// String renders the token as source text.
func (t *Token) String() string {
	if !t.list {
		return quote(t.Text)
	}
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Render renders the items of a top level token, one per line, so that
// tokenizing the result yields an equivalent tree.
func Render(t *Token) string {
	if !t.list {
		return t.String()
	}
	var b strings.Builder
	for _, item := range t.Items {
		b.WriteString(item.String())
		b.WriteString("\n")
	}
	return b.String()
}

// TokenOf converts data back into a token tree, borrowing provenance from
// origin.
func TokenOf(v Value, origin *Token) *Token {
	var file string
	var line, position int
	if origin != nil {
		file, line, position = origin.File, origin.Line, origin.Position
	}
	if tok, ok := v.(*Token); ok {
		return tok
	}
	l, ok := v.(List)
	if !ok {
		return NewString(Scalarize(v), file, line, position)
	}
	items := make([]*Token, len(l))
	for i, e := range l {
		items[i] = TokenOf(e, origin)
	}
	return NewList(file, line, position, items...)
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\r\n()\"") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// stripComments removes every list whose first element is "--". Quoted
// data, the arguments of q and ', is left alone.
func stripComments(t *Token) {
	if !t.list {
		return
	}
	if len(t.Items) > 0 && !t.Items[0].list && quoting[t.Items[0].Text] {
		return
	}
	kept := t.Items[:0]
	for _, item := range t.Items {
		if item.list && len(item.Items) > 0 && !item.Items[0].list && item.Items[0].Text == "--" {
			continue
		}
		kept = append(kept, item)
	}
	t.Items = kept
	for _, item := range t.Items {
		stripComments(item)
	}
}

var quoting = map[string]bool{"q": true, "'": true}
