// pipsmoke watch — verify fresh artifacts as they land in a directory.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/internal/verifier"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

// defaultWatchPatterns matches the artifacts a Python build drops into dist/.
var defaultWatchPatterns = []string{"*.tar.gz", "*.whl"}

func NewWatchCmd() *cobra.Command {
	var (
		debounce   time.Duration
		patterns   []string
		keep       bool
		importName string
		host       string
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and verify artifacts as they are written",
		Args:  cobra.MaximumNArgs(1),
		Example: `  pipsmoke watch dist
  pipsmoke watch dist --patterns '*.whl'
  pipsmoke watch . --debounce 5s --runner docker`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			dir := "dist"
			if len(args) > 0 {
				dir = args[0]
			}
			if st, err := os.Stat(dir); err != nil || !st.IsDir() {
				return fmt.Errorf("watch target %q is not a directory", dir)
			}

			if len(patterns) == 0 {
				patterns = rt.Config.Watch.Patterns
			}
			if len(patterns) == 0 {
				patterns = defaultWatchPatterns
			}
			if debounce <= 0 {
				debounce = rt.Config.Watch.Debounce
			}
			if debounce <= 0 {
				debounce = 2 * time.Second
			}

			kind := rt.RunnerKind()
			runner, hostInfo, cleanup, err := buildRunner(cmd.Context(), rt, kind, host)
			if err != nil {
				return err
			}
			defer cleanup()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			defer watcher.Close()
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %q: %w", dir, err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle Ctrl+C
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				cancel()
			}()

			base := verifier.Options{
				Runner:     runner,
				ImportName: importName,
				Sandbox: sandbox.Options{
					Python: rt.Config.Python.Binary,
					Image:  rt.Config.Docker.Image,
					Host:   hostInfo,
					Keep:   keep || rt.Config.Sandbox.Keep,
				},
			}
			v := verifier.New(rt.Config, rt.State, rt.Plugins, rt.Log)

			pprint.Header("Watching " + dir)
			pprint.KV("Patterns", strings.Join(patterns, ", "))
			pprint.KV("Runner", kind)
			pprint.KV("Debounce", debounce.String())
			pprint.Info("Ctrl+C to stop")
			fmt.Println()

			// Writes arrive in bursts; each path gets a timer that resets on
			// every event and fires only after the file has gone quiet.
			timers := map[string]*time.Timer{}
			ready := make(chan string)

			for {
				select {
				case <-ctx.Done():
					return nil

				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
						continue
					}
					if !matchAny(patterns, filepath.Base(ev.Name)) {
						continue
					}
					if t, exists := timers[ev.Name]; exists {
						t.Stop()
					}
					name := ev.Name
					timers[name] = time.AfterFunc(debounce, func() {
						select {
						case ready <- name:
						case <-ctx.Done():
						}
					})

				case werr, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					pprint.Warn("watch: %v", werr)

				case path := <-ready:
					delete(timers, path)
					opts := base
					opts.Progress = func(format string, fargs ...any) {
						fmt.Printf(format+"\n", fargs...)
					}
					rec, verr := v.Verify(ctx, path, opts)
					if verr != nil {
						pprint.Error("%s", userError(verr))
					} else {
						pprint.Success("%s verified in %s (run %s)",
							rec.Artifact.Base, fmtRunDuration(rec.DurationMS), shortRunID(rec.ID))
					}
					fmt.Println()
				}
			}
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a changed file is verified (default from config)")
	cmd.Flags().StringSliceVar(&patterns, "patterns", nil, "Filename globs to react to (default *.tar.gz, *.whl)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep sandbox workspaces after each run")
	cmd.Flags().StringVar(&importName, "import-name", "", "Module name imported by the checks")
	cmd.Flags().StringVar(&host, "host", "", "Registered host name for the ssh runner")
	return cmd
}

// matchAny reports whether base matches one of the glob patterns.
func matchAny(patterns []string, base string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
