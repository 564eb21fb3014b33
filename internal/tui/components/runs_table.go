// Package components: runs table, hosts panel, and modal rendering.
package components

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/hacker-4-good/chroma/api/v1"
)

// ─────────────────────────────────────────────────────────────────────────────
// Runs Table
// ─────────────────────────────────────────────────────────────────────────────

// RenderRunsTable renders the verification run history table.
func RenderRunsTable(runs []v1.RunRecord, selected int, styles interface{}, width, height int) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#565F89")).Bold(true).Padding(0, 1)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#C0CAF5")).Padding(0, 1)
	selStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#1F2335")).
		Foreground(lipgloss.Color("#2AC3DE")).Bold(true).Padding(0, 1)

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7AA2F7")).Bold(true).
		Padding(0, 1).
		Render("RUNS")

	hdr := headerStyle.Render(
		fmt.Sprintf("%-28s %-10s %-7s %-8s %-8s %-9s %s",
			"ARTIFACT", "STATUS", "KIND", "RUNNER", "PYTHON", "DURATION", "AGE"),
	)

	rows := ""
	for i, rec := range runs {
		name := rec.Artifact.Base
		if len(name) > 26 {
			name = "..." + name[len(name)-23:]
		}

		py := rec.PythonVersion
		if py == "" {
			py = "-"
		}

		kind := string(rec.Artifact.Kind)
		if kind == "" {
			kind = "-"
		}

		line := fmt.Sprintf("%-28s %-10s %-7s %-8s %-8s %-9s %s",
			truncate(name, 26), statusBadge(rec.Status),
			kind, rec.Runner, truncate(py, 8),
			fmtDuration(rec.DurationMS), fmtAge(rec.StartedAt),
		)

		if i == selected {
			rows += selStyle.Render("▶ "+line) + "\n"
		} else {
			rows += rowStyle.Render("  "+line) + "\n"
		}
	}

	if len(runs) == 0 {
		rows = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565F89")).
			Padding(2, 2).
			Render("No runs recorded. Run 'pipsmoke verify <artifact>' to start.")
	}

	return lipgloss.NewStyle().Width(width).Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, hdr, rows))
}

// ─────────────────────────────────────────────────────────────────────────────
// Hosts Panel
// ─────────────────────────────────────────────────────────────────────────────

// RenderHostsPanel renders the registered host table.
func RenderHostsPanel(hosts []v1.HostInfo, styles interface{}, width, height int) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#565F89")).Bold(true).Padding(0, 1)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#C0CAF5")).Padding(0, 1)

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7AA2F7")).Bold(true).
		Padding(0, 1).Render("HOSTS")

	hdr := headerStyle.Render(
		fmt.Sprintf("%-14s %-24s %-10s %-10s %s",
			"NAME", "ADDRESS", "STATUS", "PYTHON", "LAST SEEN"),
	)

	rows := ""
	for _, h := range hosts {
		addr := fmt.Sprintf("%s@%s", h.Spec.User, h.Spec.Host)
		if h.Spec.Port != 0 && h.Spec.Port != 22 {
			addr = fmt.Sprintf("%s:%d", addr, h.Spec.Port)
		}

		py := h.PythonVersion
		if py == "" {
			py = "-"
		}

		seen := "never"
		if !h.LastSeen.IsZero() {
			seen = fmtAge(h.LastSeen)
		}

		rows += rowStyle.Render(fmt.Sprintf("%-14s %-24s %-10s %-10s %s",
			truncate(h.Spec.Name, 14), truncate(addr, 24),
			hostBadge(h.Status), truncate(py, 10), seen)) + "\n"
	}

	if len(hosts) == 0 {
		rows = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565F89")).
			Padding(2, 2).
			Render("No hosts registered. Run 'pipsmoke hosts add' to register one.")
	}

	return lipgloss.NewStyle().Width(width).Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, hdr, rows))
}

// ─────────────────────────────────────────────────────────────────────────────
// Modal
// ─────────────────────────────────────────────────────────────────────────────

// Modal is a pop-over dialog.
type Modal struct {
	title     string
	body      string
	style     lipgloss.Style
	onConfirm func() tea.Cmd
	input     string
	typ       modalType
}

type modalType int

const (
	modalConfirm modalType = iota
	modalHelp
)

// NewConfirmModal creates a destructive-action confirmation modal.
func NewConfirmModal(title, body string, style lipgloss.Style, onConfirm func() tea.Cmd) *Modal {
	return &Modal{
		title:     title,
		body:      body,
		style:     style,
		onConfirm: onConfirm,
		typ:       modalConfirm,
	}
}

// NewHelpModal creates the keyboard help modal.
func NewHelpModal(style lipgloss.Style) *Modal {
	return &Modal{
		title: "Keyboard Shortcuts",
		body: `
  Tab / Shift+Tab    Cycle panels        x    Delete run
  ↑↓  /  j k        Navigate            r    Refresh
  Enter              Open run detail     h    Hosts panel
  Esc                Back to runs        q    Quit
`,
		style: style,
		typ:   modalHelp,
	}
}

// HandleKey processes a key for the modal. Returns (cmd, done).
func (m *Modal) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "esc", "q":
		return nil, true
	case "enter":
		if m.typ == modalConfirm && m.onConfirm != nil {
			return m.onConfirm(), true
		}
		return nil, true
	default:
		if m.typ == modalConfirm {
			m.input += msg.String()
		}
	}
	return nil, false
}

// Overlay renders the modal centred over the background content.
func (m *Modal) Overlay(bg string, width, height int) string {
	content := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0AF68")).Bold(true).
		Render("⚠  "+m.title) + "\n\n"
	content += m.body

	if m.typ == modalConfirm {
		content += "\n\n  > " + m.input + "█"
		content += "\n\n  [Enter] Confirm   [Esc] Cancel"
	} else {
		content += "\n\n  [Esc] Close"
	}

	box := m.style.Render(content)
	boxLines := strings.Split(box, "\n")
	boxWidth := 0
	for _, l := range boxLines {
		if len(l) > boxWidth {
			boxWidth = len(l)
		}
	}
	boxHeight := len(boxLines)

	// Simple centre overlay (approximate — production would use overlay library)
	topPad := (height - boxHeight) / 2
	leftPad := (width - boxWidth) / 2
	if topPad < 0 {
		topPad = 0
	}
	if leftPad < 0 {
		leftPad = 0
	}

	_ = bg // In a full implementation, we'd composite over bg
	padding := strings.Repeat("\n", topPad)
	indent := strings.Repeat(" ", leftPad)
	out := padding
	for _, l := range boxLines {
		out += indent + l + "\n"
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func statusBadge(status v1.RunStatus) string {
	switch status {
	case v1.RunPassed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A")).Render("● PASS")
	case v1.RunFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E")).Render("✗ FAIL")
	case v1.RunError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E0AF68")).Render("! ERR")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#565F89")).Render("? UNK")
	}
}

func hostBadge(status v1.HostStatus) string {
	switch status {
	case v1.HostOnline:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A")).Render("● UP")
	case v1.HostDegraded:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E0AF68")).Render("◐ DEG")
	case v1.HostOffline:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E")).Render("○ DOWN")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#565F89")).Render("? UNK")
	}
}

func fmtDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", ms)
	}
}

func fmtAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
