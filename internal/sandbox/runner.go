// Package sandbox provides disposable Python environments for verification runs.
//
// A Runner provisions an Env from an artifact; the verifier drives the install
// and check steps through the Env and releases it with Close. All runners
// expose the same provision / exec / release contract so the pipeline never
// branches on the backend.
package sandbox

import (
	"context"
	"strings"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
)

// Runner kinds selectable via config or --runner.
const (
	KindVenv   = "venv"
	KindDocker = "docker"
	KindSSH    = "ssh"
)

// DefaultStepTimeout bounds a single step when Options.StepTimeout is zero.
const DefaultStepTimeout = 5 * time.Minute

// Options configures a single provisioning request.
type Options struct {
	Python      string        // interpreter used to create the venv (venv runner)
	Image       string        // base image (docker runner)
	Host        *v1.HostInfo  // target host (ssh runner)
	Root        string        // workspace parent directory (venv runner)
	Keep        bool          // retain the workspace after Close
	StepTimeout time.Duration // per-step deadline
	ServePort   int           // in-env TCP port to expose for serve checks, 0 = none
}

// ExecResult is the captured outcome of one step inside a sandbox.
type ExecResult struct {
	Step     string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout and stderr joined into one trimmed block, the way
// the underlying tool output would have appeared on a terminal.
func (r ExecResult) Combined() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Env is one provisioned verification environment.
//
// Close must be called exactly once, normally under defer, and releases the
// workspace unless Keep was requested at provision time.
type Env interface {
	// Runner returns the kind of runner that produced this Env.
	Runner() string

	// Workspace identifies the sandbox root: a directory for venv, a
	// container reference for docker, "host:dir" for ssh.
	Workspace() string

	// Python and Pip return interpreter and installer paths valid inside the Env.
	Python() string
	Pip() string

	// ArtifactPath returns the artifact path as visible inside the Env.
	ArtifactPath() string

	// Run executes one step to completion and captures its output. A non-zero
	// exit status is reported in ExecResult, not as an error; a returned error
	// means the step could not be executed at all.
	Run(ctx context.Context, step string, argv ...string) (ExecResult, error)

	// StartBackground launches a long-lived process for serve checks. The
	// returned stop function terminates it where the backend supports that;
	// Close always reaps whatever is left behind.
	StartBackground(ctx context.Context, step string, argv ...string) (stop func() error, err error)

	// Endpoint maps an in-env TCP port to a host-reachable address.
	Endpoint(port int) (host string, hostPort int)

	// Close releases the sandbox. With Keep set the workspace survives and
	// KeptPath reports where it lives.
	Close(ctx context.Context) error

	// KeptPath returns the retained workspace location after Close when Keep
	// was requested, or "" otherwise.
	KeptPath() string
}

// Runner provisions environments of one kind.
type Runner interface {
	Kind() string
	Provision(ctx context.Context, art v1.ArtifactInfo, opts Options) (Env, error)
}
