// pipsmoke runs — browse and manage the recorded run history.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse recorded verification runs",
		Long:  "List, show, and delete verification run records from the local history.",
	}
	cmd.AddCommand(newRunsLsCmd(), newRunsShowCmd(), newRunsRmCmd())
	return cmd
}

func newRunsLsCmd() *cobra.Command {
	var artifactFilter, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List recorded runs, newest first",
		Example: `  pipsmoke runs ls
  pipsmoke runs ls --status failed
  pipsmoke runs ls --artifact chromadb-0.4.13.tar.gz --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			runs, err := rt.State.ListRuns(artifactFilter, v1.RunStatus(status))
			if err != nil {
				return err
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}

			if rt.Flags.JSONOutput {
				return json.NewEncoder(os.Stdout).Encode(runs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "RUN\tARTIFACT\tSTATUS\tRUNNER\tPYTHON\tDURATION\tSTARTED")
			for _, r := range runs {
				py := r.PythonVersion
				if py == "" {
					py = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s ago\n",
					shortRunID(r.ID), r.Artifact.Base, statusGlyph(r.Status),
					r.Runner, py, fmtRunDuration(r.DurationMS), fmtSince(r.StartedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&artifactFilter, "artifact", "", "Only runs for this artifact basename")
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status: passed | failed | error")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to print (0 = all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in full (ID prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		Example: `  pipsmoke runs show 4f9c2a1b
  pipsmoke runs show 4f9c --yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			rec, err := rt.State.FindRun(args[0])
			if err != nil {
				return err
			}

			if rt.Flags.JSONOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			if asYAML {
				data, yerr := yaml.Marshal(rec)
				if yerr != nil {
					return yerr
				}
				fmt.Print(string(data))
				return nil
			}

			pprint.Header("Run " + shortRunID(rec.ID))
			pprint.KV("Artifact", rec.Artifact.Base)
			pprint.KV("Path", rec.Artifact.Path)
			pprint.KV("Status", string(rec.Status))
			target := rec.Runner
			if rec.Host != "" {
				target += " (" + rec.Host + ")"
			}
			if rec.Image != "" {
				target += " (" + rec.Image + ")"
			}
			pprint.KV("Runner", target)
			if rec.PythonVersion != "" {
				pprint.KV("Python", rec.PythonVersion)
			}
			pprint.KV("Started", rec.StartedAt.Local().Format(time.RFC1123))
			pprint.KV("Duration", fmtRunDuration(rec.DurationMS))
			if rec.KeptWorkspace != "" {
				pprint.KV("Workspace", rec.KeptWorkspace)
			}
			if rec.Error != "" {
				pprint.KV("Error", rec.Error)
			}

			if len(rec.Checks) > 0 {
				fmt.Println()
				pprint.Rule(60)
				for _, c := range rec.Checks {
					switch c.Status {
					case v1.CheckPassed:
						pprint.Success("%s (%s) in %dms", c.Name, c.Type, c.DurationMS)
						if c.Output != "" {
							pprint.Info("%s", c.Output)
						}
					case v1.CheckFailed:
						pprint.Error("%s (%s) after %dms", c.Name, c.Type, c.DurationMS)
						if c.Error != "" {
							pprint.Info("%s", c.Error)
						}
						if c.Output != "" {
							pprint.Info("%s", c.Output)
						}
					default:
						pprint.Warn("%s (%s) skipped", c.Name, c.Type)
					}
				}
			}

			if rec.InstallOutput != "" {
				fmt.Println()
				pprint.Panel("pip install output", rec.InstallOutput)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the full record as YAML")
	return cmd
}

func newRunsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <run-id>",
		Short: "Delete a run record from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			rec, err := rt.State.FindRun(args[0])
			if err != nil {
				return err
			}
			if err := rt.State.DeleteRun(rec.ID); err != nil {
				return err
			}
			fmt.Printf("✓ Run %s removed\n", shortRunID(rec.ID))
			return nil
		},
	}
}

// fmtSince renders how long ago t was, in the largest sensible unit.
func fmtSince(t time.Time) string {
	d := time.Since(t)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
