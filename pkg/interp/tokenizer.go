package interp

import (
	"io"
	"strings"

	"github.com/tapestry/tapestry/pkg/fault"
)

// Tokenize parses a program into a top level list token. file labels the
// tokens for diagnostics. Lines count from 1, positions within a line from
// the first character at 1.
func Tokenize(r io.Reader, file string) (*Token, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fault.Wrap(fault.KindLoad, "unable to read instructions", err).With("instructions-file", file)
	}
	return TokenizeString(string(src), file)
}

// TokenizeString parses a program held in a string.
func TokenizeString(src, file string) (*Token, error) {
	tz := &tokenizer{src: src, file: file, line: 1}
	return tz.list(true)
}

// tokenizer consumes src through one shared cursor, so nested lists resume
// where the inner list stopped.
type tokenizer struct {
	src      string
	file     string
	pos      int
	line     int
	position int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (tz *tokenizer) syntaxError(details string) *fault.Error {
	return fault.New(fault.KindSyntax, details).
		With("line", tz.line).
		At(fault.Origin{File: tz.file, Line: tz.line, Position: tz.position})
}

func (tz *tokenizer) list(top bool) (*Token, error) {
	tokens := NewList(tz.file, tz.line, tz.position)

	var current strings.Builder
	var instring, inquote, inescape bool
	inset := true
	startLine, start := 0, 0

	flush := func() {
		tokens.Items = append(tokens.Items, NewString(current.String(), tz.file, startLine, start))
		current.Reset()
	}

scan:
	for tz.pos < len(tz.src) {
		c := tz.src[tz.pos]
		tz.pos++
		tz.position++

		if instring {
			if !isSpace(c) && c != '(' && c != ')' {
				current.WriteByte(c)
				continue
			}
			flush()
			instring = false
		}

		if inquote {
			switch {
			case !inescape && c == '"':
				flush()
				inquote = false
			case !inescape && c == '\\':
				inescape = true
			default:
				current.WriteByte(c)
				inescape = false
				if c == '\n' {
					tz.line++
					tz.position = 0
				}
			}
			continue
		}

		switch {
		case c == '\n':
			tz.line++
			tz.position = 0
		case c == ')':
			if top {
				return nil, tz.syntaxError("unexpected closing parenthesis")
			}
			inset = false
			break scan
		case c == '(':
			child, err := tz.list(false)
			if err != nil {
				return nil, err
			}
			tokens.Items = append(tokens.Items, child)
		case isSpace(c):
		case c == '"':
			inquote = true
			startLine, start = tz.line, tz.position
		default:
			instring = true
			startLine, start = tz.line, tz.position
			current.WriteByte(c)
		}
	}

	if instring {
		flush()
	}
	if inquote {
		return nil, tz.syntaxError("unterminated quoted string")
	}

	if !top && inset {
		return nil, tz.syntaxError("expected closing parenthesis")
	}

	return tokens, nil
}

// parse tokenizes a program, wraps it in an implicit call to style and
// strips comments.
func parse(src io.Reader, file, style string) (*Token, error) {
	program, err := Tokenize(src, file)
	if err != nil {
		return nil, err
	}
	program.Items = append([]*Token{NewString(style, "", 0, 0)}, program.Items...)
	stripComments(program)
	return program, nil
}

// Balanced reports whether every list opened in src is closed, ignoring
// parentheses inside quoted strings. Interactive readers use it to decide
// whether more input is needed.
func Balanced(src string) bool {
	depth := 0
	inquote, inescape := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inquote {
			switch {
			case inescape:
				inescape = false
			case c == '\\':
				inescape = true
			case c == '"':
				inquote = false
			}
			continue
		}
		switch c {
		case '"':
			inquote = true
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth <= 0 && !inquote
}
