// pipsmoke clean — remove kept sandboxes and prune old run records.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/internal/remote"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

func NewCleanCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove kept sandboxes and prune old run records",
		Long: `Deletes every workspace kept by --keep or a failed verification, then
prunes run records beyond the configured history limit.`,
		Example: `  pipsmoke clean
  pipsmoke clean --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			ctx := cmd.Context()

			workspaces, err := rt.State.ListWorkspaces()
			if err != nil {
				return err
			}

			if dryRun {
				if len(workspaces) == 0 {
					fmt.Println("Nothing to clean.")
					return nil
				}
				for _, ws := range workspaces {
					fmt.Printf("would remove %s workspace %s (run %s)\n",
						ws.Runner, ws.Path, shortRunID(ws.RunID))
				}
				return nil
			}

			// Docker client and SSH pool are only dialed if a workspace needs them.
			var docker *sandbox.DockerRunner
			var pool *remote.Pool
			defer func() {
				if docker != nil {
					docker.Close()
				}
				if pool != nil {
					pool.Close()
				}
			}()

			removed := 0
			for _, ws := range workspaces {
				var rmErr error
				switch ws.Runner {
				case sandbox.KindDocker:
					if docker == nil {
						docker, rmErr = sandbox.NewDocker(rt.Config.Docker.Host, rt.Log)
					}
					if rmErr == nil {
						id := strings.TrimPrefix(ws.Path, "docker://")
						rmErr = docker.RemoveContainer(ctx, id)
					}
				case sandbox.KindSSH:
					rmErr = removeRemoteWorkspace(cmd, rt, &pool, ws.Path)
				default:
					rmErr = os.RemoveAll(ws.Path)
				}

				if rmErr != nil {
					pprint.Warn("Could not remove %s: %s", ws.Path, userError(rmErr))
					continue
				}
				if err := rt.State.DeleteWorkspace(ws.Path); err != nil {
					return err
				}
				removed++
			}

			pruned, err := rt.State.PruneRuns(rt.Config.History.Limit)
			if err != nil {
				return err
			}

			pprint.Success("Removed %d workspace(s), pruned %d old run record(s)", removed, pruned)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without removing it")
	return cmd
}

// removeRemoteWorkspace deletes a kept "host:dir" workspace over SSH.
func removeRemoteWorkspace(cmd *cobra.Command, rt *Runtime, pool **remote.Pool, path string) error {
	name, dir, ok := strings.Cut(path, ":")
	if !ok || !strings.HasPrefix(dir, "/") {
		return fmt.Errorf("malformed remote workspace path %q", path)
	}

	registry := remote.NewRegistry(rt.State)
	info, err := registry.Get(name)
	if err != nil {
		return err
	}

	if *pool == nil {
		*pool = remote.NewPool(rt.Log)
	}
	_, _, err = (*pool).Run(cmd.Context(), info, "rm -rf "+dir)
	return err
}
