package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		target string
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded builds",
		Long: `Show the runs recorded in the build history. With a run ID, show the
actions that run executed and the errors it reported.

Runs are recorded when history is enabled in the settings or --history is
given to a build.`,
		Example: `  # List the last runs
  tapestry history

  # Show one run
  tapestry history 3f0c9a52-6d1e-4a51-9f3b-2b8e7c1d0a44

  # Show when a target was last built
  tapestry history --target main.o`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), settings.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case target != "":
				b, err := store.LastBuild(ctx, target)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, b)
				}
				printTargetBuilds(out, []*stores.TargetBuild{b})
				return nil

			case len(args) == 1 && remove:
				return store.DeleteRun(ctx, args[0])

			case len(args) == 1:
				return showRun(cmd, store, args[0])
			}

			runs, err := store.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []*stores.Run{}
				}
				return writeJSON(out, runs)
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-9s  %s  built %-4d %8s  %s\n",
					r.ID, r.Status, r.StartedAt.Local().Format(time.DateTime), r.Built,
					r.Duration().Round(time.Millisecond), strings.Join(r.Targets, " "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().StringVar(&target, "target", "", "show the last build of this target")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the given run")
	return cmd
}

func showRun(cmd *cobra.Command, store *stores.SQLiteStore, id string) error {
	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	builds, err := store.ListTargetBuilds(ctx, id)
	if err != nil {
		return err
	}
	errs, err := store.ListErrors(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, struct {
			*stores.Run
			Builds []*stores.TargetBuild `json:"builds"`
			Errors []*stores.RunError    `json:"errors"`
		}{run, builds, errs})
	}

	fmt.Fprintf(out, "run:      %s\n", run.ID)
	fmt.Fprintf(out, "root:     %s\n", run.Root)
	fmt.Fprintf(out, "targets:  %s\n", strings.Join(run.Targets, " "))
	fmt.Fprintf(out, "status:   %s\n", run.Status)
	fmt.Fprintf(out, "started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "duration: %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "built:    %d\n", run.Built)

	if len(builds) > 0 {
		fmt.Fprintln(out)
		printTargetBuilds(out, builds)
	}
	for _, e := range errs {
		fmt.Fprintf(out, "\n%s: %s\n", e.Kind, e.Details)
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %s\n", k, e.Fields[k])
		}
	}
	return nil
}

func printTargetBuilds(w io.Writer, builds []*stores.TargetBuild) {
	for _, b := range builds {
		fmt.Fprintf(w, "%-6s %8s  %s  (%s in %s)\n",
			b.Outcome, b.Duration.Round(time.Millisecond), b.Target, b.Action, b.Zone)
	}
}
