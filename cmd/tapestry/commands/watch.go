package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tapestry/tapestry/pkg/fault"
)

const rebuildDelay = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [targets...]",
		Short: "Rebuild whenever a file in a zone changes",
		Long: `Build the targets, then watch every zone directory and build them again
with freshly loaded Buildfiles whenever a file changes. Changes to targets
and hidden directories are ignored.

When metrics are enabled in the settings they are served for as long as
the command runs.`,
		Example: `  # Keep the default targets up to date
  tapestry watch

  # Keep one target up to date
  tapestry watch app`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			if env.settings.Metrics.Enabled {
				env.tel.Metrics.StartMetricsServer(ctx, func(err error) {
					log.Error().Err(err).Msg("Metrics server failed")
				})
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			w := &rebuilder{env: env, cmd: cmd, targets: args, watcher: watcher, watched: make(map[string]bool)}
			w.rebuild()

			var pending <-chan time.Time
			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !w.relevant(event) {
						continue
					}
					log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("File changed")
					pending = time.After(rebuildDelay)

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("Watcher error")

				case <-pending:
					pending = nil
					w.rebuild()
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
	return cmd
}

// rebuilder runs a fresh session per change and keeps the watcher on the
// directories of the zones it loaded.
type rebuilder struct {
	env     *environment
	cmd     *cobra.Command
	targets []string
	watcher *fsnotify.Watcher
	watched map[string]bool
	outputs map[string]bool
}

func (w *rebuilder) rebuild() {
	ctx := w.cmd.Context()
	stderr := w.cmd.ErrOrStderr()

	s, err := w.env.session(w.cmd, nil)
	if err != nil {
		fault.Report(stderr, err)
		w.watch(directory)
		return
	}
	count, err := s.Run(ctx, w.targets)
	if err != nil {
		fault.Report(stderr, err)
	} else if w.env.settings.Verbosity > 0 {
		fmt.Fprintf(stderr, fault.Marker+"built %d target(s)\n", count)
	}

	w.outputs = make(map[string]bool)
	for _, n := range s.Graph().Nodes() {
		if n.Target() {
			w.outputs[filepath.Clean(n.Actual())] = true
		}
	}
	for _, z := range s.Zones() {
		w.watch(z.Home())
	}
	if len(s.Zones()) == 0 {
		w.watch(directory)
	}
	log.Info().Int("directories", len(w.watched)).Msg("Watching for changes")
}

// watch adds dir and every directory below it that is not hidden.
func (w *rebuilder) watch(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && hidden(path) {
			return filepath.SkipDir
		}
		path = filepath.Clean(path)
		if w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			return nil
		}
		w.watched[path] = true
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to walk directory")
	}
}

func (w *rebuilder) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if hidden(name) || w.outputs[name] {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			w.watch(name)
		}
	}
	return true
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
