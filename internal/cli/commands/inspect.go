// pipsmoke inspect — resolve an artifact and report its identity without installing it.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/artifact"
	"github.com/hacker-4-good/chroma/pkg/pprint"
)

func NewInspectCmd() *cobra.Command {
	var importName string

	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Show how pipsmoke would classify and check an artifact",
		Args:  cobra.ExactArgs(1),
		Example: `  pipsmoke inspect dist/chromadb-0.4.13.tar.gz
  pipsmoke inspect dist/chromadb_client-0.4.13-py3-none-any.whl --json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			override := importName
			if override == "" {
				override = rt.Config.Package.ImportName
			}

			info, err := artifact.Resolve(args[0], override)
			if err != nil {
				return err
			}

			var meta *artifact.Metadata
			if info.Exists {
				meta, _ = artifact.ReadMetadata(info.Path) // advisory
			}

			if rt.Flags.JSONOutput {
				out := struct {
					Artifact v1.ArtifactInfo    `json:"artifact"`
					Metadata *artifact.Metadata `json:"metadata,omitempty"`
				}{info, meta}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			pprint.Header("Artifact — " + info.Base)
			pprint.KV("Path", info.Path)
			if info.Exists {
				pprint.KV("Size", fmtBytes(info.SizeBytes))
			} else {
				pprint.KV("Exists", "no (verify would report it and record an error)")
			}
			pprint.KV("Dist", info.Dist)
			if info.Version != "" {
				pprint.KV("Version", info.Version)
			}
			format := "sdist"
			if info.Wheel {
				format = "wheel"
			}
			pprint.KV("Format", format)
			pprint.KV("Import", info.ImportName)
			pprint.KV("Default check", defaultCheckFor(info.Kind))

			if meta != nil {
				body := fmt.Sprintf("Name:            %s\nVersion:         %s", meta.Name, meta.Version)
				if meta.Summary != "" {
					body += "\nSummary:         " + meta.Summary
				}
				if meta.RequiresPython != "" {
					body += "\nRequires-Python: " + meta.RequiresPython
				}
				if len(meta.Dependencies) > 0 {
					shown := meta.Dependencies
					if len(shown) > 8 {
						shown = shown[:8]
					}
					body += fmt.Sprintf("\nDependencies:    %d (%s", len(meta.Dependencies), strings.Join(shown, ", "))
					if len(meta.Dependencies) > 8 {
						body += ", …"
					}
					body += ")"
				}
				body += "\nSource:          " + meta.Source
				fmt.Println()
				pprint.Panel("Package metadata", body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&importName, "import-name", "", "Module name the checks would import")
	return cmd
}

// defaultCheckFor names the check the release heuristic selects.
func defaultCheckFor(kind v1.ArtifactKind) string {
	if kind == v1.KindClient {
		return "version (client artifact)"
	}
	return "heartbeat (full artifact)"
}

func fmtBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
