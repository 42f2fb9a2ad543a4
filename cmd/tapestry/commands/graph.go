package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/build"
	"github.com/tapestry/tapestry/pkg/graph"
	"github.com/tapestry/tapestry/pkg/location"
)

// graphSession loads every zone and, when targets are given, builds them
// so that analyzers have discovered their references.
func graphSession(cmd *cobra.Command, targets []string, analyze bool) (*build.Session, func(), error) {
	env, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := env.session(cmd, func(o *build.Options) { o.LoadOnly = true })
	if err == nil {
		err = s.Load(cmd.Context())
	}
	if err == nil && analyze {
		_, err = s.Build(cmd.Context(), targets)
	}
	if err != nil {
		env.close()
		return nil, nil, err
	}
	return s, env.close, nil
}

func relativeLabel(s *build.Session) func(*graph.Node) string {
	return func(n *graph.Node) string {
		return location.Contract(n.Logical(), s.Home())
	}
}

func newTreeCommand() *cobra.Command {
	var analyze bool

	cmd := &cobra.Command{
		Use:   "tree <target>",
		Short: "Print the dependency tree of a target",
		Long: `Print what a target depends on: the files it refers to and the components
it is built from, recursively.

References are only known once analyzers have run; --build builds the target
first so that they are included.`,
		Example: `  # Show what main.o is built from
  tapestry tree main.o

  # Include the headers found by analyzers
  tapestry tree --build main.o`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := graphSession(cmd, args, analyze)
			if err != nil {
				return err
			}
			defer done()

			n, err := s.Graph().Find(s.Root().Locations().OffsetHome(args[0]), true)
			if err != nil {
				return err
			}
			return graph.WriteTree(cmd.OutOrStdout(), n, relativeLabel(s))
		},
	}

	cmd.Flags().BoolVar(&analyze, "build", false, "build the target first so references are known")
	return cmd
}

func newDotCommand() *cobra.Command {
	var analyze bool

	cmd := &cobra.Command{
		Use:   "dot [targets...]",
		Short: "Print the dependency graph in Graphviz format",
		Long: `Print the whole dependency graph in Graphviz DOT format. Production edges
are solid and labelled with their action, references are dashed and other
components are dotted.`,
		Example: `  # Render the graph
  tapestry dot | dot -Tsvg > graph.svg

  # Build the default targets first to include analyzed references
  tapestry dot --build`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := graphSession(cmd, args, analyze)
			if err != nil {
				return err
			}
			defer done()

			_, err = fmt.Fprint(cmd.OutOrStdout(), s.Graph().ToDOT(relativeLabel(s)))
			return err
		},
	}

	cmd.Flags().BoolVar(&analyze, "build", false, "build targets first so references are known")
	return cmd
}
