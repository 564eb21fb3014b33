// pipsmoke init — scaffold a new pipsmoke.yaml in the target directory.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/internal/core/config"
)

func NewInitCmd() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new pipsmoke.yaml in the current (or specified) directory",
		Example: `  pipsmoke init
  pipsmoke init --path ./my-package`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetPath == "" {
				targetPath = "."
			}
			outFile := filepath.Join(targetPath, "pipsmoke.yaml")
			if _, err := os.Stat(outFile); err == nil {
				return fmt.Errorf("pipsmoke.yaml already exists at %s — delete it first to reinitialise", outFile)
			}

			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("create dir %q: %w", targetPath, err)
			}

			content := config.DefaultConfigTemplate
			if name := detectProjectName(targetPath); name != "" {
				content = strings.Replace(content, "name: my-package", "name: "+name, 1)
			}

			if err := os.WriteFile(outFile, []byte(content), 0644); err != nil {
				return fmt.Errorf("write pipsmoke.yaml: %w", err)
			}

			fmt.Printf("✓ Created %s\n", outFile)
			fmt.Println("  Edit it to match your package, then run: pipsmoke verify dist/*.tar.gz")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", ".", "Target directory for pipsmoke.yaml")
	return cmd
}

// detectProjectName reads [project].name from the directory's pyproject.toml
// so the scaffold starts with the real package name. Returns "" when there is
// no manifest to read.
func detectProjectName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return ""
	}
	var doc struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.Project.Name
}
