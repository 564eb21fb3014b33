// pipsmoke images — manage the Python images the docker runner provisions from.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

func NewImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage local Python docker images",
	}

	cmd.AddCommand(
		newImagesPullCmd(),
		newImagesLsCmd(),
		newImagesRmCmd(),
	)
	return cmd
}

func newImagesPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [image]",
		Short: "Pull a Python image for the docker runner",
		Args:  cobra.MaximumNArgs(1),
		Example: `  pipsmoke images pull
  pipsmoke images pull python:3.12-slim`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			img := rt.Config.Docker.Image
			if len(args) == 1 {
				img = args[0]
			}

			docker, err := sandbox.NewDocker(rt.Config.Docker.Host, rt.Log)
			if err != nil {
				return fmt.Errorf("docker: %s", userError(err))
			}
			defer docker.Close()

			sp := pprint.NewSpinner(fmt.Sprintf("Pulling %s", img))
			sp.Start()
			if err := docker.PullImage(cmd.Context(), img); err != nil {
				sp.Stop(false)
				return fmt.Errorf("pull %s: %s", img, userError(err))
			}
			sp.Stop(true)

			pprint.Success("Image %s ready", img)
			return nil
		},
	}
}

func newImagesLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List local Python images",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			docker, err := sandbox.NewDocker(rt.Config.Docker.Host, rt.Log)
			if err != nil {
				return fmt.Errorf("docker: %s", userError(err))
			}
			defer docker.Close()

			images, err := docker.ListImages(cmd.Context(), "python:*")
			if err != nil {
				return fmt.Errorf("list images: %s", userError(err))
			}

			if rt.Flags.JSONOutput {
				return json.NewEncoder(os.Stdout).Encode(images)
			}

			if len(images) == 0 {
				fmt.Println("No python images found. Pull one with 'pipsmoke images pull'.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTAGS\tSIZE\tCREATED")
			for _, img := range images {
				id := strings.TrimPrefix(img.ID, "sha256:")
				if len(id) > 12 {
					id = id[:12]
				}
				tags := "<none>"
				if len(img.RepoTags) > 0 {
					tags = strings.Join(img.RepoTags, ", ")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s ago\n",
					id, tags,
					fmtBytes(img.Size),
					fmtSince(time.Unix(img.Created, 0)),
				)
			}
			return w.Flush()
		},
	}
}

func newImagesRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <image>",
		Short: "Remove a local image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			docker, err := sandbox.NewDocker(rt.Config.Docker.Host, rt.Log)
			if err != nil {
				return fmt.Errorf("docker: %s", userError(err))
			}
			defer docker.Close()

			if err := docker.RemoveImage(cmd.Context(), args[0], force); err != nil {
				return fmt.Errorf("remove %s: %s", args[0], userError(err))
			}
			fmt.Printf("✓ Image %s removed\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Force removal even when containers reference the image")
	return cmd
}
