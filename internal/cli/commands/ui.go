// pipsmoke ui — launch the interactive TUI dashboard.
package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hacker-4-good/chroma/internal/remote"
	"github.com/hacker-4-good/chroma/internal/tui"
)

func NewUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Launch the interactive TUI dashboard",
		Example: `  pipsmoke ui`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			registry := remote.NewRegistry(rt.State)
			hosts, err := registry.List()
			if err != nil {
				return fmt.Errorf("load hosts: %w", err)
			}

			// Liveness probing only runs while the dashboard is open.
			var monitor *remote.Monitor
			if len(hosts) > 0 {
				pool := remote.NewPool(rt.Log)
				defer pool.Close()

				monitor = remote.NewMonitor(pool, registry, rt.Log)
				defer monitor.StopAll()
				for _, h := range hosts {
					monitor.Watch(h)
				}
			}

			// Build initial app model
			app := tui.New(tui.Config{
				State:   rt.State,
				Log:     rt.Log,
				Smoke:   rt.Config,
				Monitor: monitor,
			})

			p := tea.NewProgram(app,
				tea.WithAltScreen(),       // use alternate screen buffer
				tea.WithMouseCellMotion(), // enable mouse support
			)

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		},
	}
	return cmd
}
