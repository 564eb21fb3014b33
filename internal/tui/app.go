// Package tui defines the Bubble Tea model for pipsmoke's interactive dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/config"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/state"
	"github.com/hacker-4-good/chroma/internal/remote"
	"github.com/hacker-4-good/chroma/internal/stats"
	"github.com/hacker-4-good/chroma/internal/tui/components"
)

// Config carries dependencies into the TUI app.
type Config struct {
	State   *state.DB
	Log     *logger.Logger
	Smoke   *config.Config
	Monitor *remote.Monitor // nil when no hosts are being watched
}

// ActivePanel identifies which main panel has focus.
type ActivePanel int

const (
	PanelRuns ActivePanel = iota
	PanelDetail
	PanelHosts
)

// Model is the root Bubble Tea model (Elm architecture).
type Model struct {
	cfg Config

	// Dimensions
	width  int
	height int

	// Panels
	panel   ActivePanel
	runs    []v1.RunRecord
	hosts   []v1.HostInfo
	summary stats.Summary
	detail  viewport.Model

	// Sub-components
	header  components.Header
	sidebar components.Sidebar
	footer  components.Footer
	modal   *components.Modal

	// Selected run for the detail view
	selectedRun int

	// Collector
	collector *stats.Collector

	// Error state
	lastError error

	// Theme
	styles Styles
}

// tickMsg is emitted by the refresh ticker.
type tickMsg time.Time

// statsMsg carries a fresh run list with its aggregate summary.
type statsMsg struct {
	summary stats.Summary
	runs    []v1.RunRecord
}

// hostListMsg carries an updated host list.
type hostListMsg []v1.HostInfo

// hostEventMsg carries a host status transition from the monitor.
type hostEventMsg remote.HostEvent

// errMsg carries an error to display in the status bar.
type errMsg error

// New constructs a new TUI Model.
func New(cfg Config) *Model {
	styles := newStyles()
	dv := viewport.New(0, 0)
	dv.Style = styles.DetailViewport

	collector := stats.NewCollector(cfg.State, cfg.Log)

	return &Model{
		cfg:       cfg,
		detail:    dv,
		styles:    styles,
		header:    components.NewHeader(),
		sidebar:   components.NewSidebar(),
		footer:    components.NewFooter(),
		collector: collector,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Init
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.loadRunsCmd(),
		m.loadHostsCmd(),
		m.startCollectorCmd(),
		m.waitHostEventCmd(),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = m.width - 22 // sidebar width
		m.detail.Height = m.height - 10

	case tea.KeyMsg:
		// Modal intercepts key events when open
		if m.modal != nil {
			cmd, done := m.modal.HandleKey(msg)
			if done {
				m.modal = nil
			}
			return m, cmd
		}
		cmds = append(cmds, m.handleKey(msg))

	case tickMsg:
		cmds = append(cmds, m.tickCmd(), m.snapshotCmd(), m.loadHostsCmd())

	case statsMsg:
		m.runs = msg.runs
		m.summary = msg.summary
		m.header.SetRunStats(m.summary.Total, m.summary.PassRate)
		if m.selectedRun >= len(m.runs) {
			m.selectedRun = 0
		}
		if m.panel == PanelDetail && m.selectedRun < len(m.runs) {
			m.detail.SetContent(renderRunDetail(m.runs[m.selectedRun], m.styles))
		}

	case hostListMsg:
		m.hosts = msg
		m.syncHosts()

	case hostEventMsg:
		for i := range m.hosts {
			if m.hosts[i].Spec.Name == msg.Host {
				m.hosts[i].Status = msg.Status
			}
		}
		m.syncHosts()
		cmds = append(cmds, m.waitHostEventCmd())

	case errMsg:
		m.lastError = msg
		m.footer.SetError(msg)
	}

	// Propagate to viewport
	var dvCmd tea.Cmd
	m.detail, dvCmd = m.detail.Update(msg)
	cmds = append(cmds, dvCmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input when no modal is open.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	kb := defaultKeymap()

	switch msg.String() {
	case kb.Quit, "ctrl+c":
		return tea.Quit

	case kb.TabNext:
		m.panel = (m.panel + 1) % 3

	case kb.TabPrev:
		m.panel = (m.panel + 2) % 3 // wrap backwards

	case kb.NavDown, "j":
		if m.panel == PanelRuns && m.selectedRun < len(m.runs)-1 {
			m.selectedRun++
		}

	case kb.NavUp, "k":
		if m.panel == PanelRuns && m.selectedRun > 0 {
			m.selectedRun--
		}

	case kb.Select:
		if m.panel == PanelRuns && m.selectedRun < len(m.runs) {
			m.detail.SetContent(renderRunDetail(m.runs[m.selectedRun], m.styles))
			m.detail.GotoTop()
			m.panel = PanelDetail
		}

	case "esc":
		if m.panel == PanelDetail {
			m.panel = PanelRuns
		}

	case kb.Hosts:
		m.panel = PanelHosts

	case kb.Refresh:
		return tea.Batch(m.loadRunsCmd(), m.loadHostsCmd())

	case kb.Help:
		m.modal = components.NewHelpModal(m.styles.Modal)

	case kb.Delete:
		if m.panel == PanelRuns && len(m.runs) > 0 && m.selectedRun < len(m.runs) {
			rec := m.runs[m.selectedRun]
			m.modal = components.NewConfirmModal(
				fmt.Sprintf("Delete run %s?", shortID(rec.ID)),
				fmt.Sprintf("This removes the %s record from history", rec.Artifact.Base),
				m.styles.Modal,
				func() tea.Cmd { return m.deleteRunCmd(rec.ID) },
			)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// View
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.header.View(m.width)
	sidebar := m.sidebar.View(20, m.height-4)
	mainPanel := m.renderMain()
	footer := m.footer.View(m.width)

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, mainPanel)

	view := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)

	if m.modal != nil {
		view = m.modal.Overlay(view, m.width, m.height)
	}

	return view
}

func (m *Model) renderMain() string {
	mainWidth := m.width - 22

	switch m.panel {
	case PanelRuns:
		return components.RenderRunsTable(m.runs, m.selectedRun, m.styles, mainWidth, m.height-6)
	case PanelDetail:
		title := m.styles.PanelTitle.Render("RUN DETAIL")
		return lipgloss.JoinVertical(lipgloss.Left, title, m.detail.View())
	case PanelHosts:
		return components.RenderHostsPanel(m.hosts, m.styles, mainWidth, m.height-6)
	}
	return ""
}

// syncHosts refreshes the sidebar and header from the current host list.
func (m *Model) syncHosts() {
	entries := make([]components.HostEntry, len(m.hosts))
	online := 0
	for i, h := range m.hosts {
		entries[i] = components.HostEntry{Name: h.Spec.Name, Status: string(h.Status)}
		if h.Status == v1.HostOnline {
			online++
		}
	}
	m.sidebar.SetHosts(entries)
	m.header.SetHostCounts(online, len(m.hosts))
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands (async data fetchers)
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadRunsCmd reads run history straight from the state store.
func (m *Model) loadRunsCmd() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.cfg.State.ListRuns("", "")
		if err != nil {
			return errMsg(err)
		}
		return statsMsg{summary: stats.Aggregate(runs), runs: runs}
	}
}

// snapshotCmd reads the collector's cached view, avoiding a store hit per tick.
func (m *Model) snapshotCmd() tea.Cmd {
	return func() tea.Msg {
		summary, runs := m.collector.Snapshot().Get()
		return statsMsg{summary: summary, runs: runs}
	}
}

func (m *Model) loadHostsCmd() tea.Cmd {
	return func() tea.Msg {
		hosts, err := m.cfg.State.ListHosts()
		if err != nil {
			return errMsg(err)
		}
		return hostListMsg(hosts)
	}
}

func (m *Model) deleteRunCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.cfg.State.DeleteRun(id); err != nil {
			return errMsg(err)
		}
		runs, err := m.cfg.State.ListRuns("", "")
		if err != nil {
			return errMsg(err)
		}
		return statsMsg{summary: stats.Aggregate(runs), runs: runs}
	}
}

func (m *Model) startCollectorCmd() tea.Cmd {
	return func() tea.Msg {
		// Poller lives for the program's lifetime.
		go m.collector.Run(context.Background())
		return nil
	}
}

// waitHostEventCmd blocks on the next monitor event. Re-armed after each message.
func (m *Model) waitHostEventCmd() tea.Cmd {
	if m.cfg.Monitor == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-m.cfg.Monitor.Events()
		if !ok {
			return nil
		}
		return hostEventMsg(ev)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Run detail rendering
// ─────────────────────────────────────────────────────────────────────────────

// renderRunDetail builds the scrollable detail view for one run.
func renderRunDetail(rec v1.RunRecord, styles Styles) string {
	key := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Width(12)
	section := lipgloss.NewStyle().Foreground(styles.Accent).Bold(true)
	dim := lipgloss.NewStyle().Foreground(styles.Muted)

	var b strings.Builder

	b.WriteString(key.Render("Run") + shortID(rec.ID) + "\n")
	b.WriteString(key.Render("Artifact") + rec.Artifact.Base + "\n")
	b.WriteString(key.Render("Path") + rec.Artifact.Path + "\n")
	b.WriteString(key.Render("Status") + statusLine(rec.Status, styles) + "\n")

	target := rec.Runner
	if rec.Host != "" {
		target += " (" + rec.Host + ")"
	}
	if rec.Image != "" {
		target += " (" + rec.Image + ")"
	}
	b.WriteString(key.Render("Runner") + target + "\n")

	if rec.PythonVersion != "" {
		b.WriteString(key.Render("Python") + rec.PythonVersion + "\n")
	}
	b.WriteString(key.Render("Started") + rec.StartedAt.Local().Format("2006-01-02 15:04:05") + "\n")
	b.WriteString(key.Render("Duration") + fmt.Sprintf("%.1fs", float64(rec.DurationMS)/1000) + "\n")
	if rec.KeptWorkspace != "" {
		b.WriteString(key.Render("Workspace") + rec.KeptWorkspace + "\n")
	}
	if rec.Error != "" {
		b.WriteString(key.Render("Error") + styles.StatusErr.Render(rec.Error) + "\n")
	}

	if len(rec.Checks) > 0 {
		b.WriteString("\n" + section.Render("CHECKS") + "\n")
		for _, c := range rec.Checks {
			icon := checkIcon(c.Status, styles)
			b.WriteString(fmt.Sprintf("  %s %-16s %-10s %6dms\n", icon, c.Name, c.Type, c.DurationMS))
			if c.Output != "" {
				b.WriteString(indent(c.Output, "      ") + "\n")
			}
			if c.Error != "" {
				b.WriteString(styles.StatusErr.Render(indent(c.Error, "      ")) + "\n")
			}
		}
	}

	if rec.InstallOutput != "" {
		b.WriteString("\n" + section.Render("INSTALL OUTPUT") + "\n")
		b.WriteString(dim.Render(indent(rec.InstallOutput, "  ")) + "\n")
	}

	return b.String()
}

func statusLine(status v1.RunStatus, styles Styles) string {
	switch status {
	case v1.RunPassed:
		return styles.StatusOK.Render(string(status))
	case v1.RunFailed:
		return styles.StatusErr.Render(string(status))
	default:
		return styles.StatusWarn.Render(string(status))
	}
}

func checkIcon(status v1.CheckStatus, styles Styles) string {
	switch status {
	case v1.CheckPassed:
		return styles.StatusOK.Render("✓")
	case v1.CheckFailed:
		return styles.StatusErr.Render("✗")
	default:
		return styles.StatusWarn.Render("-")
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
