package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/interp"
)

const (
	replHistoryFile = ".tapestry_history"
	promptMain      = "tapestry> "
	promptCont      = "...       "
)

func newReplCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate expressions in the root zone",
		Long: `Load every zone, then read expressions and evaluate them in the root
zone's global scope. Input continues over several lines until its
parentheses balance.

Type :quit or press Ctrl+D to leave.`,
		Example: `  tapestry repl
  tapestry> (get-alias @all-targets)
  tapestry> (wildcard-glob *.c)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			s, err := env.loaded(cmd, nil)
			if err != nil {
				return err
			}
			return runREPL(cmd, s.Root().Interpreter())
		},
	}
	return cmd
}

func runREPL(cmd *cobra.Command, ip *interp.Interpreter) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, replHistoryFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readBalanced(ln)
		if !ok {
			fmt.Fprintln(out)
			break
		}
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if code == ":quit" || code == ":q" {
			break
		}

		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		v, err := ip.Eval(cmd.Context(), code, "repl")
		if err != nil {
			fault.Report(errOut, err)
			if cmd.Context().Err() != nil {
				break
			}
			continue
		}
		fmt.Fprintln(out, interp.Format(v))
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readBalanced reads lines until the parentheses of the input balance.
// It returns false at end of input.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if depth(b.String()) <= 0 {
			return b.String(), true
		}
	}
}

// depth counts unclosed parentheses outside double quoted strings.
func depth(src string) int {
	n := 0
	quoted, escaped := false, false
	for _, c := range src {
		switch {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case !quoted && c == '(':
			n++
		case !quoted && c == ')':
			n--
		}
	}
	return n
}
