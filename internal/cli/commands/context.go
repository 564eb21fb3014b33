// Package commands provides the shared context type and all CLI subcommands.
package commands

import (
	"context"

	"github.com/hacker-4-good/chroma/internal/core/config"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/plugin"
	"github.com/hacker-4-good/chroma/internal/core/state"
)

// contextKey is the key type for values stored in a command context.
type contextKey string

const runtimeContextKey contextKey = "pipsmoke.runtime"

// GlobalFlags holds the parsed global flags for use by subcommands.
type GlobalFlags struct {
	Runner     string
	Debug      bool
	JSONOutput bool
	ConfigFile string
}

// Runtime is the shared dependency bundle injected into each subcommand via context.
type Runtime struct {
	Config  *config.Config
	Log     *logger.Logger
	State   *state.DB
	Plugins *plugin.Host
	Flags   GlobalFlags
}

// RunnerKind returns the effective sandbox runner: flag, then config, then venv.
func (rt *Runtime) RunnerKind() string {
	if rt.Flags.Runner != "" {
		return rt.Flags.Runner
	}
	if rt.Config.Sandbox.Runner != "" {
		return rt.Config.Sandbox.Runner
	}
	return "venv"
}

// NewContext returns a new context carrying the Runtime.
func NewContext(parent context.Context, rt *Runtime) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, runtimeContextKey, rt)
}

// FromContext extracts the Runtime from ctx. Panics if not present (programming error).
func FromContext(ctx context.Context) *Runtime {
	rt, ok := ctx.Value(runtimeContextKey).(*Runtime)
	if !ok || rt == nil {
		panic("pipsmoke: Runtime not found in context — missing PersistentPreRunE?")
	}
	return rt
}
