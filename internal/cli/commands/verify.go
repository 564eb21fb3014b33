// pipsmoke verify — install built artifacts into fresh sandboxes and smoke-test them.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/internal/verifier"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

func NewVerifyCmd() *cobra.Command {
	var (
		keep       bool
		strict     bool
		importName string
		report     string
		parallel   int
		timeout    time.Duration
		python     string
		image      string
		host       string
	)

	cmd := &cobra.Command{
		Use:   "verify <artifact>...",
		Short: "Install built artifacts into fresh sandboxes and run smoke checks",
		Args:  cobra.MinimumNArgs(1),
		Example: `  pipsmoke verify dist/chromadb-0.4.13.tar.gz
  pipsmoke verify dist/chromadb_client-0.4.13.tar.gz --strict
  pipsmoke verify dist/*.tar.gz --parallel 4
  pipsmoke verify dist/chromadb-0.4.13.tar.gz --runner docker --keep`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			kind := rt.RunnerKind()
			runner, hostInfo, cleanup, err := buildRunner(cmd.Context(), rt, kind, host)
			if err != nil {
				return err
			}
			defer cleanup()

			if python == "" {
				python = rt.Config.Python.Binary
			}
			if image == "" {
				image = rt.Config.Docker.Image
			}

			base := verifier.Options{
				Runner:     runner,
				Strict:     strict,
				ImportName: importName,
				Timeout:    timeout,
				Sandbox: sandbox.Options{
					Python: python,
					Image:  image,
					Host:   hostInfo,
					Keep:   keep || rt.Config.Sandbox.Keep,
				},
			}

			pprint.Header("Package Verification")
			pprint.KV("Runner", kind)
			switch kind {
			case sandbox.KindDocker:
				pprint.KV("Image", image)
			case sandbox.KindSSH:
				pprint.KV("Host", hostInfo.Spec.Name)
			default:
				pprint.KV("Python", python)
			}
			if len(args) > 1 {
				pprint.KV("Artifacts", fmt.Sprintf("%d", len(args)))
			}
			fmt.Println()

			v := verifier.New(rt.Config, rt.State, rt.Plugins, rt.Log)

			records := make([]v1.RunRecord, len(args))
			runErrs := make([]error, len(args))

			if parallel > 1 && len(args) > 1 {
				// Serialize the announce lines so concurrent runs never
				// interleave mid-line.
				var outMu sync.Mutex
				g, gctx := errgroup.WithContext(cmd.Context())
				g.SetLimit(parallel)
				for i, path := range args {
					i, path := i, path
					g.Go(func() error {
						opts := base
						opts.Progress = func(format string, fargs ...any) {
							outMu.Lock()
							defer outMu.Unlock()
							fmt.Printf(format+"\n", fargs...)
						}
						rec, rerr := v.Verify(gctx, path, opts)
						records[i], runErrs[i] = rec, rerr
						return nil
					})
				}
				_ = g.Wait()

				for i, rerr := range runErrs {
					if rerr != nil {
						pprint.Error("%s: %s", artifactLabel(records[i], args[i]), userError(rerr))
					}
				}
			} else {
				for i, path := range args {
					opts := base
					opts.Progress = func(format string, fargs ...any) {
						fmt.Printf(format+"\n", fargs...)
					}
					rec, rerr := v.Verify(cmd.Context(), path, opts)
					records[i], runErrs[i] = rec, rerr

					if rerr != nil {
						pprint.Error("%s", userError(rerr))
					} else {
						pprint.Success("%s verified in %s (run %s)",
							rec.Artifact.Base, fmtRunDuration(rec.DurationMS), shortRunID(rec.ID))
					}
					if rec.KeptWorkspace != "" {
						pprint.Info("Workspace kept at %s", rec.KeptWorkspace)
					}
					if i < len(args)-1 {
						fmt.Println()
					}
				}
			}

			failures := 0
			for _, rerr := range runErrs {
				if rerr != nil {
					failures++
				}
			}

			if len(args) > 1 {
				table := pprint.NewTable("ARTIFACT", "STATUS", "DURATION", "RUN ID")
				for i, rec := range records {
					table.AddRow(artifactLabel(rec, args[i]), statusGlyph(rec.Status),
						fmtRunDuration(rec.DurationMS), shortRunID(rec.ID))
				}
				table.Render()
			}

			if report != "" {
				if werr := writeReport(report, records); werr != nil {
					return fmt.Errorf("write report: %w", werr)
				}
				pprint.Info("Report written to %s", report)
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d artifact(s) failed verification", failures, len(args))
			}
			if len(args) > 1 {
				pprint.Success("All %d artifacts verified ◉", len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the sandbox workspace after the run for debugging")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of continuing when the artifact file is missing")
	cmd.Flags().StringVar(&importName, "import-name", "", "Module name imported by the checks (overrides the derived name)")
	cmd.Flags().StringVar(&report, "report", "", "Write a run report to this file (.json for JSON, else YAML)")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Number of artifacts to verify concurrently")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall per-run timeout (default from config)")
	cmd.Flags().StringVar(&python, "python", "", "Interpreter for the venv runner (e.g. python3.11)")
	cmd.Flags().StringVar(&image, "image", "", "Docker image for the docker runner")
	cmd.Flags().StringVar(&host, "host", "", "Registered host name for the ssh runner")
	return cmd
}

// artifactLabel prefers the resolved basename, falling back to the argument
// when resolution never got that far.
func artifactLabel(rec v1.RunRecord, arg string) string {
	if rec.Artifact.Base != "" {
		return rec.Artifact.Base
	}
	return filepath.Base(arg)
}

// writeReport marshals the run records into a report file. The extension
// picks the encoding: .json for JSON, anything else YAML.
func writeReport(path string, records []v1.RunRecord) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = yaml.Marshal(records)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
