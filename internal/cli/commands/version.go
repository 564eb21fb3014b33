// pipsmoke version — print version information.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/pkg/pprint"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// BuildSummary returns the one-line form used by --short and the debug
// startup line.
func BuildSummary() string {
	return fmt.Sprintf("pipsmoke version=%s commit=%s date=%s", Version, Commit, BuildDate)
}

func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:          "version",
		Short:        "Print pipsmoke version information",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				fmt.Println(BuildSummary())
				return nil
			}

			info := map[string]string{
				"version":    Version,
				"commit":     Commit,
				"build_date": BuildDate,
				"go_version": runtime.Version(),
				"os_arch":    runtime.GOOS + "/" + runtime.GOARCH,
			}

			jsonFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
			if jsonFlag {
				return json.NewEncoder(os.Stdout).Encode(info)
			}

			pprint.PrintBanner(Version, BuildDate)

			pprint.KV("Version  ", Version)
			pprint.KV("Commit   ", Commit)
			pprint.KV("Built    ", BuildDate)
			pprint.KV("Go       ", runtime.Version())
			pprint.KV("Platform ", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print a single-line build summary")
	return cmd
}
