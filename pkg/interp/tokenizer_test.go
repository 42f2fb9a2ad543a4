package interp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lithammer/dedent"

	"github.com/tapestry/tapestry/pkg/fault"
)

func TestTokenizeStructure(t *testing.T) {
	program, err := TokenizeString(`(a b) c "d e"`, "test")
	if err != nil {
		t.Fatalf("TokenizeString() error = %v", err)
	}

	want := List{List{"a", "b"}, "c", "d e"}
	if diff := cmp.Diff(want, program.Value()); diff != "" {
		t.Errorf("Value() mismatch (-want +got):\n%s", diff)
	}

	positions := []struct {
		tok      *Token
		line     int
		position int
	}{
		{program.Items[0], 1, 1},
		{program.Items[0].Items[0], 1, 2},
		{program.Items[0].Items[1], 1, 4},
		{program.Items[1], 1, 7},
		{program.Items[2], 1, 9},
	}
	for i, p := range positions {
		if p.tok.Line != p.line || p.tok.Position != p.position {
			t.Errorf("token %d at %d:%d, want %d:%d", i, p.tok.Line, p.tok.Position, p.line, p.position)
		}
		if p.tok.File != "test" {
			t.Errorf("token %d file = %q, want test", i, p.tok.File)
		}
	}
}

func TestTokenizeLines(t *testing.T) {
	src := dedent.Dedent(`
		(first)
		  (second "multi
		line" last)
	`)
	program, err := TokenizeString(src, "Buildfile")
	if err != nil {
		t.Fatalf("TokenizeString() error = %v", err)
	}
	if len(program.Items) != 2 {
		t.Fatalf("got %d top level items, want 2", len(program.Items))
	}
	second := program.Items[1]
	if second.Line != 3 || second.Position != 3 {
		t.Errorf("second list at %d:%d, want 3:3", second.Line, second.Position)
	}
	if got := second.Items[1]; got.Text != "multi\nline" || got.Line != 3 {
		t.Errorf("quoted token = %q at line %d", got.Text, got.Line)
	}
	if got := second.Items[2]; got.Line != 4 {
		t.Errorf("token after multi-line string at line %d, want 4", got.Line)
	}
}

func TestTokenizeEscapes(t *testing.T) {
	program, err := TokenizeString(`"a \"quoted\" \\ word" bare`, "")
	if err != nil {
		t.Fatalf("TokenizeString() error = %v", err)
	}
	if diff := cmp.Diff(List{`a "quoted" \ word`, "bare"}, program.Value()); diff != "" {
		t.Errorf("Value() mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		details string
		line    int
	}{
		{"unclosed list", "(a (b c)", "expected closing parenthesis", 1},
		{"trailing input", "(a)\n) b", "unexpected closing parenthesis", 2},
		{"extra close", "(a))", "unexpected closing parenthesis", 1},
		{"close without open", "a)", "unexpected closing parenthesis", 1},
		{"extra close after newline", "(def-sources a.c))\n", "unexpected closing parenthesis", 1},
		{"unterminated quote", "(a \"b c)", "unterminated quoted string", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TokenizeString(tt.src, "f")
			e, ok := fault.As(err)
			if !ok {
				t.Fatalf("error = %v, want *fault.Error", err)
			}
			if e.Kind != fault.KindSyntax || e.Details != tt.details {
				t.Errorf("error = %s %q, want syntax error %q", e.Kind, e.Details, tt.details)
			}
			if e.Origin == nil || e.Origin.Line != tt.line {
				t.Errorf("origin = %+v, want line %d", e.Origin, tt.line)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	src := dedent.Dedent(`
		(def-production cc 0 *.c *.o)
		(set $msg "hello (world)")
		(echo "" "tab	here" (l a (l b "c d")))
	`)
	first, err := TokenizeString(src, "")
	if err != nil {
		t.Fatalf("TokenizeString() error = %v", err)
	}
	second, err := TokenizeString(Render(first), "")
	if err != nil {
		t.Fatalf("TokenizeString(Render()) error = %v", err)
	}
	if diff := cmp.Diff(first.Value(), second.Value()); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
}

func TestParseStripsComments(t *testing.T) {
	src := `(echo a) (-- a comment (nested)) (q (-- kept) (x (-- also kept))) (do (-- dropped) (echo b))`
	program, err := parse(strings.NewReader(src), "", "do")
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}

	want := List{
		"do",
		List{"echo", "a"},
		List{"q", List{"--", "kept"}, List{"x", List{"--", "also", "kept"}}},
		List{"do", List{"echo", "b"}},
	}
	if diff := cmp.Diff(want, program.Value()); diff != "" {
		t.Errorf("parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestBalanced(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"(a b)", true},
		{"(a (b", false},
		{`(a ")")`, true},
		{`(a "(`, false},
		{`(a "\")" (b))`, true},
	}
	for _, tt := range tests {
		if got := Balanced(tt.src); got != tt.want {
			t.Errorf("Balanced(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}
