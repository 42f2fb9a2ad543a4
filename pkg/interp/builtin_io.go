package interp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/tapestry/tapestry/pkg/fault"
)

func registerIO(r Registry) {
	r.Add("echo", 0, Unbounded, `(echo [<any-expression>...])
Prints the flattened values separated by spaces and terminated by a
newline. Returns the number of values printed.`, commandLike(func(c *Call, tokens []string) (Value, error) {
		return c.Interp.print(tokens, " ", "\n")
	}))

	r.Add("print", 1, 1, `(print <any-expression>)
Prints the flattened value, separated by (option print-separator) and
terminated by (option print-terminator). Returns the number of values
printed.`, builtinPrint)

	r.Add("system", 1, Unbounded, `(system <any-expression:command> [<any-expression:param>...])
Assembles a quoted command line from the values and runs it with the shell
in the current directory. Returns true if the command succeeded.
Each value is read as a vector, so values that read as false ("", false,
0) are dropped from the command line.`, commandLike(func(c *Call, tokens []string) (Value, error) {
		return c.Interp.system(c, assembleCommand(tokens)), nil
	}))

	r.Add("pipe-in", 1, Unbounded, `(pipe-in <any-expression:command> [<any-expression:param>...])
Runs the assembled command and returns the lines of its output.`, commandLike(func(c *Call, tokens []string) (Value, error) {
		return c.Interp.pipeIn(c, assembleCommand(tokens))
	}))

	r.Add("pipe-out", 2, Unbounded, `(pipe-out <any-expression:command> [<any-expression:param>...] <any-expression:lines>)
Runs the assembled command and writes the lines to its input. Returns the
number of lines written.`, builtinPipeOut)

	r.Add("read", 1, 1, `(read <literal-expression:file>)
Returns the lines of the file.`, func(c *Call) (Value, error) {
		path, err := c.path(1)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, streamError(path, err)
		}
		defer f.Close()
		return readLines(f, path)
	})

	r.Add("write", 2, 3, `(write <literal-expression:file> <any-expression:lines> [<any-expression:truncate>])
Writes the lines to the file, appending unless truncate is true. Returns
the number of lines written.`, builtinWrite)

	r.Add("touch", 1, 1, `(touch <literal-expression:file>)
Updates the file's modification time, creating it if needed. Returns false
on failure.`, func(c *Call) (Value, error) {
		path, err := c.path(1)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		if err := os.Chtimes(path, now, now); err == nil {
			return "true", nil
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return "false", nil
		}
		return Scalarize(f.Close() == nil), nil
	})

	r.Add("delete", 1, 1, `(delete <literal-expression:file>)
Deletes the file. Returns false on failure.`, func(c *Call) (Value, error) {
		path, err := c.path(1)
		if err != nil {
			return nil, err
		}
		return Scalarize(os.Remove(path) == nil), nil
	})

	r.Add("exists?", 1, 1, `(exists? <literal-expression:file>)
Returns true if the file exists.`, func(c *Call) (Value, error) {
		path, err := c.path(1)
		if err != nil {
			return nil, err
		}
		_, err = os.Stat(path)
		return Scalarize(err == nil), nil
	})
}

// path processes parameter i as a file name relative to the current
// directory.
func (c *Call) path(i int) (string, error) {
	name, err := c.Text(i, AllowLiteralExpression)
	if err != nil {
		return "", err
	}
	return c.Interp.loc.OffsetCurrent(name), nil
}

// commandLike gathers the flattened values of every parameter.
func commandLike(fn func(c *Call, tokens []string) (Value, error)) Handler {
	return func(c *Call) (Value, error) {
		tokens, err := gather(c, c.Arity())
		if err != nil {
			return nil, err
		}
		return fn(c, tokens)
	}
}

func gather(c *Call, limit int) ([]string, error) {
	var tokens []string
	for i := 1; i <= limit; i++ {
		v, err := c.Vector(i)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, Strings(v)...)
	}
	return tokens, nil
}

func builtinPrint(c *Call) (Value, error) {
	v, err := c.Vector(1)
	if err != nil {
		return nil, err
	}
	tokens := Strings(v)
	if len(tokens) == 0 {
		tokens = []string{"false"}
	}
	separator, _ := c.Interp.Option(OptionPrintSeparator)
	terminator, _ := c.Interp.Option(OptionPrintTerminator)
	return c.Interp.print(tokens, String(separator), String(terminator))
}

func (ip *Interpreter) print(tokens []string, separator, terminator string) (Value, error) {
	if _, err := io.WriteString(ip.stdout, strings.Join(tokens, separator)+terminator); err != nil {
		return nil, fault.Wrap(fault.KindRuntime, "unable to write output", err)
	}
	return Scalarize(len(tokens)), nil
}

func (ip *Interpreter) command(c *Call, line string) *exec.Cmd {
	cmd := exec.CommandContext(c.Context(), "sh", "-c", line)
	cmd.Dir = ip.loc.Current()
	cmd.Stderr = ip.stderr
	ip.logger.Debug().Str("command", line).Str("dir", cmd.Dir).Msg("running command")
	return cmd
}

func (ip *Interpreter) system(c *Call, line string) Value {
	cmd := ip.command(c, line)
	cmd.Stdout = ip.stdout
	if err := cmd.Run(); err != nil {
		ip.logger.Debug().Err(err).Str("command", line).Msg("command failed")
		return "false"
	}
	return "true"
}

func (ip *Interpreter) pipeIn(c *Call, line string) (Value, error) {
	cmd := ip.command(c, line)
	out, err := cmd.Output()
	if err != nil {
		return nil, streamError("| "+line, err)
	}
	return readLines(bytes.NewReader(out), "| "+line)
}

func builtinPipeOut(c *Call) (Value, error) {
	tokens, err := gather(c, c.Arity()-1)
	if err != nil {
		return nil, err
	}
	lines, err := c.Vector(c.Arity())
	if err != nil {
		return nil, err
	}

	line := assembleCommand(tokens)
	cmd := c.Interp.command(c, line)
	cmd.Stdout = c.Interp.stdout
	var input bytes.Buffer
	written := writeLines(&input, Strings(lines))
	cmd.Stdin = &input
	if err := cmd.Run(); err != nil {
		return nil, streamError("| "+line, err)
	}
	return Scalarize(written), nil
}

func builtinWrite(c *Call) (Value, error) {
	path, err := c.path(1)
	if err != nil {
		return nil, err
	}
	lines, err := c.Vector(2)
	if err != nil {
		return nil, err
	}
	truncate := false
	if c.Arity() == 3 {
		if truncate, err = c.Boolean(3); err != nil {
			return nil, err
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, streamError(path, err)
	}
	w := bufio.NewWriter(f)
	written := writeLines(w, Strings(lines))
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, streamError(path, err)
	}
	if err := f.Close(); err != nil {
		return nil, streamError(path, err)
	}
	return Scalarize(written), nil
}

func readLines(r io.Reader, name string) (Value, error) {
	out := List{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		out = append(out, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, streamError(name, err)
	}
	return out, nil
}

func writeLines(w io.Writer, lines []string) int {
	written := 0
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			break
		}
		written++
	}
	return written
}

func streamError(name string, err error) *fault.Error {
	return fault.Wrap(fault.KindRuntime, "unable to open stream", err).With("name", name)
}

var needsQuoting = regexp.MustCompile(`[\s"]`)

// assembleCommand joins tokens into a shell command line, quoting tokens
// that hold whitespace or double quotes.
func assembleCommand(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, token := range tokens {
		if needsQuoting.MatchString(token) {
			token = `"` + strings.ReplaceAll(token, `"`, `\"`) + `"`
		}
		parts[i] = token
	}
	return strings.Join(parts, " ")
}
