package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/build"
	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/interp"
	"github.com/tapestry/tapestry/pkg/location"
)

func newTargetsCommand() *cobra.Command {
	var end bool

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the targets of every zone",
		Long: `Load every zone and list the targets their productions defined, relative
to the root zone. Nothing is built.`,
		Example: `  # List every target
  tapestry targets

  # List only the targets nothing else is built from
  tapestry targets --end`,
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
			alias := build.AliasAllTargets
			if end {
				alias = build.AliasEndTargets
			}
			var targets []string
			for _, z := range s.Zones() {
				names, _ := z.Alias(alias)
				for _, t := range names {
					targets = append(targets, location.Contract(t, s.Home()))
				}
			}
			return printList(cmd.OutOrStdout(), targets)
		},
	}

	cmd.Flags().BoolVar(&end, "end", false, "list only end targets")
	return cmd
}

func newAliasesCommand() *cobra.Command {
	var builtin bool

	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "List the aliases of every zone",
		Long: `Load every zone and list its aliases with the targets they stand for.
Aliases every zone maintains itself begin with @ and are listed with --builtin.`,
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
			aliases := make(map[string][]string)
			var order []string
			for _, z := range s.Zones() {
				for _, name := range z.Aliases() {
					if strings.HasPrefix(name, "@") && !builtin {
						continue
					}
					targets, _ := z.Alias(name)
					key := location.Contract(z.Locations().OffsetHome(name), s.Home())
					aliases[key] = targets
					order = append(order, key)
				}
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), aliases)
			}
			for _, name := range order {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(aliases[name], " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&builtin, "builtin", false, "include the aliases every zone maintains")
	return cmd
}

func newFunctionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions [names...]",
		Short: "Describe the functions a Buildfile can call",
		Long: `List every function available to Buildfiles, including functions the
root Buildfile defines itself. With names, print their full usage.

The Buildfile is read for its definitions only; sources are not processed.
Without a Buildfile the builtin functions are listed.`,
		Example: `  # List every function
  tapestry functions

  # Show how to declare a production rule
  tapestry functions def-production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			s, err := env.session(cmd, func(o *build.Options) { o.HelpOnly = true })
			if err != nil {
				return err
			}
			if err := s.Load(cmd.Context()); err != nil && s.Root() != nil {
				return err
			}
			registry := s.Functions()

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				for _, name := range args {
					f, ok := registry[name]
					if !ok {
						return fault.New(fault.KindRuntime, "undefined function").With("function", name)
					}
					fmt.Fprintf(out, "%s\n\n", f.Usage)
				}
				return nil
			}
			for _, f := range registry.Sorted() {
				fmt.Fprintf(out, "%-24s %-8s %s\n", f.Name, arity(f), summary(f))
			}
			return nil
		},
	}
	return cmd
}

func arity(f *interp.Function) string {
	switch {
	case f.Max == interp.Unbounded:
		return fmt.Sprintf("%d..", f.Min)
	case f.Min == f.Max:
		return fmt.Sprintf("%d", f.Min)
	default:
		return fmt.Sprintf("%d..%d", f.Min, f.Max)
	}
}

// summary is the first line of a function's usage after its signatures.
func summary(f *interp.Function) string {
	kind := "builtin"
	if !f.Builtin {
		kind = "user"
	}
	for _, line := range strings.Split(f.Usage, "\n") {
		if line != "" && !strings.HasPrefix(line, "(") {
			return kind + ": " + line
		}
	}
	return kind
}

func printList(w io.Writer, items []string) error {
	if jsonOutput {
		if items == nil {
			items = []string{}
		}
		return writeJSON(w, items)
	}
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
