// Package tui: keyboard binding configuration.
package tui

// Keymap defines all keyboard shortcuts for the TUI.
type Keymap struct {
	Quit    string
	TabNext string
	TabPrev string
	NavUp   string
	NavDown string
	Select  string
	Delete  string
	Refresh string
	Hosts   string
	Help    string
}

// defaultKeymap returns the default pipsmoke TUI key bindings.
func defaultKeymap() Keymap {
	return Keymap{
		Quit:    "q",
		TabNext: "tab",
		TabPrev: "shift+tab",
		NavUp:   "up",
		NavDown: "down",
		Select:  "enter",
		Delete:  "x",
		Refresh: "r",
		Hosts:   "h",
		Help:    "?",
	}
}

// HelpText returns the keyboard shortcut reference displayed in the help modal.
func HelpText() string {
	return `
  NAVIGATION
  ──────────────────────────────────────
  Tab / Shift+Tab    Cycle panels
  ↑↓  /  j k        Navigate run list

  ACTIONS
  ──────────────────────────────────────
  Enter              Open run detail
  x                  Delete selected run
  r                  Refresh runs & hosts
  h                  Jump to hosts panel

  MISC
  ──────────────────────────────────────
  ?                  Toggle this help
  q                  Quit
  Ctrl+C             Force quit
`
}
