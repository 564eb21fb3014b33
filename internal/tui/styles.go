// Package tui: Lipgloss style constants for the "Smoke Dark" theme.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all theme-aware Lipgloss styles.
type Styles struct {
	// Colors
	Background lipgloss.Color
	Surface    lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Danger     lipgloss.Color
	Warning    lipgloss.Color
	Success    lipgloss.Color
	Muted      lipgloss.Color
	Text       lipgloss.Color

	// Component styles
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	Sidebar        lipgloss.Style
	HostItem       lipgloss.Style
	HostSelected   lipgloss.Style
	PanelTitle     lipgloss.Style
	TableHeader    lipgloss.Style
	TableRow       lipgloss.Style
	TableRowSel    lipgloss.Style
	DetailViewport lipgloss.Style
	Footer         lipgloss.Style
	FooterKey      lipgloss.Style
	Modal          lipgloss.Style
	ModalTitle     lipgloss.Style
	ModalInput     lipgloss.Style
	StatusOK       lipgloss.Style
	StatusWarn     lipgloss.Style
	StatusErr      lipgloss.Style
	Border         lipgloss.Style
}

// newStyles returns the "Smoke Dark" theme styles.
func newStyles() Styles {
	bg := lipgloss.Color("#16161E")
	surface := lipgloss.Color("#1F2335")
	primary := lipgloss.Color("#7AA2F7")
	accent := lipgloss.Color("#2AC3DE")
	danger := lipgloss.Color("#F7768E")
	warning := lipgloss.Color("#E0AF68")
	success := lipgloss.Color("#9ECE6A")
	muted := lipgloss.Color("#565F89")
	text := lipgloss.Color("#C0CAF5")

	border := lipgloss.Border{
		Top: "─", Bottom: "─", Left: "│", Right: "│",
		TopLeft: "┌", TopRight: "┐", BottomLeft: "└", BottomRight: "┘",
	}

	return Styles{
		Background: bg, Surface: surface, Primary: primary,
		Accent: accent, Danger: danger, Warning: warning,
		Success: success, Muted: muted, Text: text,

		Header: lipgloss.NewStyle().
			Background(primary).Foreground(bg).
			Bold(true).Padding(0, 1),

		HeaderTitle: lipgloss.NewStyle().
			Foreground(accent).Bold(true),

		Sidebar: lipgloss.NewStyle().
			Background(surface).Foreground(text).
			BorderStyle(border).BorderRight(true).
			BorderForeground(muted).
			Padding(1, 1),

		HostItem: lipgloss.NewStyle().
			Foreground(text).PaddingLeft(2),

		HostSelected: lipgloss.NewStyle().
			Foreground(accent).Bold(true).PaddingLeft(1),

		PanelTitle: lipgloss.NewStyle().
			Foreground(primary).Bold(true).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).
			BorderForeground(muted).Padding(0, 1),

		TableHeader: lipgloss.NewStyle().
			Foreground(muted).Bold(true).Padding(0, 1),

		TableRow: lipgloss.NewStyle().
			Foreground(text).Padding(0, 1),

		TableRowSel: lipgloss.NewStyle().
			Background(surface).Foreground(accent).Bold(true).Padding(0, 1),

		DetailViewport: lipgloss.NewStyle().
			Background(bg).Foreground(text).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Background(surface).Foreground(muted).
			Padding(0, 1),

		FooterKey: lipgloss.NewStyle().
			Foreground(primary).Bold(true),

		Modal: lipgloss.NewStyle().
			Background(surface).Foreground(text).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(1, 2),

		ModalTitle: lipgloss.NewStyle().
			Foreground(warning).Bold(true),

		ModalInput: lipgloss.NewStyle().
			Foreground(text).Background(bg).
			Border(lipgloss.NormalBorder()).BorderForeground(muted),

		StatusOK:   lipgloss.NewStyle().Foreground(success),
		StatusWarn: lipgloss.NewStyle().Foreground(warning),
		StatusErr:  lipgloss.NewStyle().Foreground(danger),

		Border: lipgloss.NewStyle().BorderStyle(border).BorderForeground(muted),
	}
}
