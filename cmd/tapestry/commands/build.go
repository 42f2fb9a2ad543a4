package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/fault"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "Build targets",
		Long: `Load every zone and bring the named targets up to date.

A target may be a file produced from sources, an alias, a macro, or a
wildcard matching any of these. Targets with a directory part are looked up
in the zone owning that directory.`,
		Example: `  # Build the default targets
  tapestry build

  # Build two targets, tolerating up to 20 failed actions
  tapestry build -k 20 main.o lib/util.o

  # Build every object file in every zone below src
  tapestry build 'src/*/*.o'`,
		RunE: runBuild,
	}
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	s, err := env.session(cmd, nil)
	if err != nil {
		return err
	}
	count, err := s.Run(cmd.Context(), args)
	if env.settings.Verbosity > 0 && !env.settings.LoadOnly {
		fmt.Fprintf(cmd.ErrOrStderr(), "%sbuilt %d target(s)\n", fault.Marker, count)
	}
	return err
}
