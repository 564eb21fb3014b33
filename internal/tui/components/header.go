// Package components: TUI sub-components for pipsmoke's dashboard.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ─────────────────────────────────────────────────────────────────────────────
// Header component
// ─────────────────────────────────────────────────────────────────────────────

// Header renders the top status bar.
type Header struct {
	runCount    int
	passRate    float64
	hostsOnline int
	hostCount   int
}

// NewHeader creates a Header.
func NewHeader() Header {
	return Header{}
}

func (h *Header) SetRunStats(count int, passRate float64) {
	h.runCount = count
	h.passRate = passRate
}

func (h *Header) SetHostCounts(online, total int) {
	h.hostsOnline = online
	h.hostCount = total
}

// View renders the header bar. Accepts total terminal width.
func (h *Header) View(width int) string {
	left := " ◉ PIPSMOKE "
	right := fmt.Sprintf(" %d runs · %.0f%% pass · %d/%d hosts ",
		h.runCount, h.passRate, h.hostsOnline, h.hostCount)
	gap := width - len(left) - len(right)
	if gap < 0 {
		gap = 0
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("#7AA2F7")).
		Foreground(lipgloss.Color("#16161E")).
		Bold(true).
		Width(width).
		Render(left + spaces(gap) + right)
}

// ─────────────────────────────────────────────────────────────────────────────
// Sidebar component
// ─────────────────────────────────────────────────────────────────────────────

// HostEntry is one row in the host navigator.
type HostEntry struct {
	Name   string
	Status string // online | offline | degraded
}

// Sidebar renders the host navigator.
type Sidebar struct {
	selected int
	items    []HostEntry
}

// NewSidebar creates an empty Sidebar.
func NewSidebar() Sidebar { return Sidebar{} }

// SetHosts replaces the host list.
func (s *Sidebar) SetHosts(entries []HostEntry) {
	s.items = entries
	if s.selected >= len(entries) {
		s.selected = 0
	}
}

// View renders the sidebar.
func (s *Sidebar) View(width, height int) string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7AA2F7")).Bold(true).
		Render("HOSTS")

	content := title + "\n"

	if len(s.items) == 0 {
		content += lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565F89")).
			Render("  (no hosts)")
	}

	for i, item := range s.items {
		icon := hostIcon(item.Status)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#C0CAF5")).PaddingLeft(2)
		if i == s.selected {
			style = style.Foreground(lipgloss.Color("#2AC3DE")).Bold(true)
		}
		content += style.Render(icon+" "+item.Name) + "\n"
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color("#1F2335")).
		Width(width).Height(height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(lipgloss.Color("#565F89")).
		Padding(1, 1).
		Render(content)
}

func hostIcon(status string) string {
	switch status {
	case "online":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A")).Render("●")
	case "degraded":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E0AF68")).Render("◐")
	case "offline":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E")).Render("○")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#565F89")).Render("?")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Footer component
// ─────────────────────────────────────────────────────────────────────────────

// Footer renders the bottom hint bar.
type Footer struct {
	err error
}

// NewFooter creates a Footer.
func NewFooter() Footer { return Footer{} }

// SetError sets an error message to display.
func (f *Footer) SetError(err error) { f.err = err }

// View renders the footer.
func (f *Footer) View(width int) string {
	hints := []struct{ key, desc string }{
		{"↑↓", "navigate"}, {"enter", "detail"}, {"x", "delete"},
		{"r", "refresh"}, {"tab", "panels"}, {"?", "help"}, {"q", "quit"},
	}

	content := ""
	for _, h := range hints {
		content += lipgloss.NewStyle().Foreground(lipgloss.Color("#7AA2F7")).Bold(true).Render(h.key)
		content += lipgloss.NewStyle().Foreground(lipgloss.Color("#565F89")).Render(" " + h.desc + "  ")
	}

	if f.err != nil {
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E")).
			Render("Error: " + f.err.Error())
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color("#1F2335")).
		Width(width).Padding(0, 1).
		Render(content)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func spaces(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += " "
	}
	return s
}
