// pipsmoke matrix — verify one artifact across several Python versions.
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/internal/verifier"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

func NewMatrixCmd() *cobra.Command {
	var (
		versions   []string
		parallel   int
		keep       bool
		strict     bool
		importName string
	)

	cmd := &cobra.Command{
		Use:   "matrix <artifact>",
		Short: "Verify one artifact against a whole row of Python versions",
		Args:  cobra.ExactArgs(1),
		Example: `  pipsmoke matrix dist/chromadb-0.4.13.tar.gz
  pipsmoke matrix dist/chromadb-0.4.13.tar.gz --versions 3.10,3.11,3.12
  pipsmoke matrix dist/chromadb-0.4.13.tar.gz --runner docker --parallel 3`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			kind := rt.RunnerKind()
			if kind == sandbox.KindSSH {
				return fmt.Errorf("matrix mode supports the venv and docker runners (got ssh)")
			}

			if len(versions) == 0 {
				versions = rt.Config.Python.Versions
			}
			if len(versions) == 0 {
				return fmt.Errorf("no versions to test: pass --versions or set python.versions in pipsmoke.yaml")
			}

			runner, _, cleanup, err := buildRunner(cmd.Context(), rt, kind, "")
			if err != nil {
				return err
			}
			defer cleanup()

			base := verifier.Options{
				Runner:     runner,
				Strict:     strict,
				ImportName: importName,
				Sandbox: sandbox.Options{
					Keep: keep || rt.Config.Sandbox.Keep,
				},
			}

			pprint.Header("Python Matrix")
			pprint.KV("Artifact", args[0])
			pprint.KV("Runner", kind)
			pprint.KV("Versions", strings.Join(versions, ", "))
			fmt.Println()

			v := verifier.New(rt.Config, rt.State, rt.Plugins, rt.Log)

			sp := pprint.NewSpinner(fmt.Sprintf("Verifying against %d interpreter(s)", len(versions)))
			sp.Start()
			results := v.Matrix(cmd.Context(), args[0], versions, parallel, base)

			failures := 0
			for _, res := range results {
				if res.Err != nil {
					failures++
				}
			}
			sp.Stop(failures == 0)

			table := pprint.NewTable("VERSION", "STATUS", "PYTHON", "DURATION", "RUN ID")
			for _, res := range results {
				py := res.Record.PythonVersion
				if py == "" {
					py = "-"
				}
				table.AddRow(res.Version, statusGlyph(res.Record.Status), py,
					fmtRunDuration(res.Record.DurationMS), shortRunID(res.Record.ID))
			}
			table.Render()

			for _, res := range results {
				if res.Err != nil && res.Record.Status == v1.RunError {
					pprint.Error("%s: %s", res.Version, userError(res.Err))
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d version(s) failed verification", failures, len(versions))
			}
			pprint.Success("All %d versions passed ◉", len(versions))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&versions, "versions", nil, "Python versions to test (default: python.versions from config)")
	cmd.Flags().IntVar(&parallel, "parallel", verifier.DefaultMatrixParallel, "Number of versions to verify concurrently")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the sandbox workspaces after the runs")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of continuing when the artifact file is missing")
	cmd.Flags().StringVar(&importName, "import-name", "", "Module name imported by the checks")
	return cmd
}
