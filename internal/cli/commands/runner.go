// Package commands: sandbox runner construction shared by the verify family.
package commands

import (
	"context"
	"fmt"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/remote"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

// buildRunner constructs the sandbox runner for the requested kind. The
// returned cleanup releases whatever client or pool the runner owns, and the
// HostInfo is non-nil only for the ssh kind.
func buildRunner(ctx context.Context, rt *Runtime, kind, hostName string) (sandbox.Runner, *v1.HostInfo, func(), error) {
	switch kind {
	case "", sandbox.KindVenv:
		return sandbox.NewLocal(rt.Log), nil, func() {}, nil

	case sandbox.KindDocker:
		docker, err := sandbox.NewDocker(rt.Config.Docker.Host, rt.Log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := docker.Ping(ctx); err != nil {
			_ = docker.Close()
			return nil, nil, nil, err
		}
		return docker, nil, func() { _ = docker.Close() }, nil

	case sandbox.KindSSH:
		if hostName == "" {
			return nil, nil, nil, fmt.Errorf("the ssh runner needs a target: pass --host <name>")
		}
		info, err := resolveHost(rt, hostName)
		if err != nil {
			return nil, nil, nil, err
		}
		pool := remote.NewPool(rt.Log)
		return sandbox.NewSSH(pool, rt.Log), info, func() { pool.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown runner %q (want venv, docker or ssh)", kind)
	}
}

// resolveHost looks the host up in the registry first, then in pipsmoke.yaml.
func resolveHost(rt *Runtime, name string) (*v1.HostInfo, error) {
	registry := remote.NewRegistry(rt.State)
	info, err := registry.Get(name)
	if err == nil {
		return &info, nil
	}
	if spec := rt.Config.HostByName(name); spec != nil {
		return &v1.HostInfo{Spec: *spec}, nil
	}
	return nil, err
}

// userError formats an error for terminal display, preferring the structured
// message with remediation advice when one is attached.
func userError(err error) string {
	if se := errs.AsSmoke(err); se != nil {
		return se.UserMessage()
	}
	return err.Error()
}

// shortRunID returns the 8-char prefix used in tables and hints.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// statusGlyph decorates a run status for table cells.
func statusGlyph(status v1.RunStatus) string {
	switch status {
	case v1.RunPassed:
		return "● passed"
	case v1.RunFailed:
		return "✗ failed"
	case v1.RunError:
		return "! error"
	default:
		return "? " + string(status)
	}
}

// fmtRunDuration renders a run's wall-clock time for tables.
func fmtRunDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	if ms >= 60_000 {
		return fmt.Sprintf("%dm%02ds", ms/60_000, (ms%60_000)/1000)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
