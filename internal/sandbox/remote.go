// Package sandbox: ssh runner executing steps on a registered remote host.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/remote"
	"github.com/hacker-4-good/chroma/pkg/errs"
	"github.com/hacker-4-good/chroma/pkg/sshutil"
)

// SSHRunner provisions workspaces on remote hosts through the shared
// connection pool. The artifact is uploaded into a remote mktemp directory
// and every step runs through one exec channel per step.
type SSHRunner struct {
	pool *remote.Pool
	log  *logger.Logger
}

// NewSSH creates the ssh runner on top of an existing connection pool.
func NewSSH(pool *remote.Pool, log *logger.Logger) *SSHRunner {
	return &SSHRunner{pool: pool, log: log}
}

// Kind implements Runner.
func (r *SSHRunner) Kind() string { return KindSSH }

// Provision creates a remote workspace, uploads the artifact and builds a
// venv with the host's configured interpreter. The workspace is removed
// again if any provisioning step fails.
func (r *SSHRunner) Provision(ctx context.Context, art v1.ArtifactInfo, opts Options) (Env, error) {
	if opts.Host == nil {
		return nil, errs.Newf(errs.ErrHostNotFound, "sandbox.provision",
			"ssh runner requires a registered host").
			WithAdvice("pass --host or register one with 'pipsmoke hosts add'")
	}
	host := *opts.Host
	python := host.Spec.Python
	if python == "" {
		python = "python3"
	}

	out, code, err := r.pool.Run(ctx, host, "mktemp -d /tmp/pipsmoke.XXXXXX")
	if err != nil || code != 0 {
		return nil, errs.Newf(errs.ErrSandboxProvision, "sandbox.provision",
			"remote mktemp on %s failed: %s", host.Spec.Name, strings.TrimSpace(out))
	}
	ws := strings.TrimSpace(out)

	env := &sshEnv{
		pool:        r.pool,
		host:        host,
		ws:          ws,
		artifact:    ws + "/" + art.Base,
		keep:        opts.Keep,
		stepTimeout: opts.StepTimeout,
		log:         r.log,
	}

	if art.Exists {
		f, err := os.Open(art.Path)
		if err != nil {
			_ = env.removeRemote(ctx)
			return nil, errs.Wrap(err, errs.ErrSandboxProvision, "sandbox.provision").WithArtifact(art.Base)
		}
		uploadErr := r.pool.Upload(ctx, host, f, env.artifact)
		f.Close()
		if uploadErr != nil {
			_ = env.removeRemote(ctx)
			return nil, uploadErr
		}
		r.log.Debug("artifact uploaded", "host", host.Spec.Name, "path", env.artifact)
	}

	res, err := env.Run(ctx, "venv", python, "-m", "venv", ws+"/venv")
	if err != nil {
		_ = env.removeRemote(ctx)
		return nil, err
	}
	if res.ExitCode != 0 {
		_ = env.removeRemote(ctx)
		return nil, errs.Newf(errs.ErrSandboxProvision, "sandbox.provision",
			"venv creation on %s failed (exit %d): %s", host.Spec.Name, res.ExitCode, res.Combined()).
			WithAdvice(fmt.Sprintf("check that %s exists on the host (hosts add --python)", python))
	}
	return env, nil
}

// sshEnv is a provisioned remote workspace.
type sshEnv struct {
	pool        *remote.Pool
	host        v1.HostInfo
	ws          string
	artifact    string
	keep        bool
	stepTimeout time.Duration
	log         *logger.Logger
	closed      bool
	kept        string
}

func (e *sshEnv) Runner() string    { return KindSSH }
func (e *sshEnv) Workspace() string { return e.host.Spec.Name + ":" + e.ws }
func (e *sshEnv) KeptPath() string  { return e.kept }

func (e *sshEnv) Python() string { return e.ws + "/venv/bin/python" }
func (e *sshEnv) Pip() string    { return e.ws + "/venv/bin/pip" }

func (e *sshEnv) ArtifactPath() string { return e.artifact }

// Run executes one step remotely. SSH sessions deliver a single combined
// stream, which lands in Stdout.
func (e *sshEnv) Run(ctx context.Context, step string, argv ...string) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{Step: step}, errs.Newf(errs.ErrSandboxExec, "sandbox.exec", "empty command for step %q", step)
	}
	timeout := e.stepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := fmt.Sprintf("cd %s && PATH=%s:$PATH VIRTUAL_ENV=%s %s",
		sshutil.Quote(e.ws),
		sshutil.Quote(e.ws+"/venv/bin"),
		sshutil.Quote(e.ws+"/venv"),
		sshutil.QuoteArgs(argv))

	start := time.Now()
	out, code, err := e.pool.Run(stepCtx, e.host, cmd)
	res := ExecResult{
		Step:     step,
		Stdout:   out,
		ExitCode: code,
		Duration: time.Since(start),
	}
	if err != nil && code < 0 {
		return res, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step).WithArtifact(e.host.Spec.Name)
	}
	// non-zero remote exit is a result, not a transport error
	return res, nil
}

// StartBackground is not supported over SSH; serve checks need a local or
// docker sandbox.
func (e *sshEnv) StartBackground(_ context.Context, step string, _ ...string) (func() error, error) {
	return nil, errs.Newf(errs.ErrCheckUnsupported, "sandbox.exec."+step,
		"background processes are not supported by the ssh runner").
		WithAdvice("run serve checks with --runner venv or --runner docker")
}

// Endpoint points at the remote host itself, which is where any probed
// service would be listening.
func (e *sshEnv) Endpoint(port int) (string, int) { return e.host.Spec.Host, port }

// Close removes the remote workspace unless Keep was requested.
func (e *sshEnv) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.keep {
		e.kept = e.host.Spec.Name + ":" + e.ws
		e.log.Debug("keeping remote workspace", "host", e.host.Spec.Name, "path", e.ws)
		return nil
	}
	return e.removeRemote(ctx)
}

func (e *sshEnv) removeRemote(ctx context.Context) error {
	out, code, err := e.pool.Run(ctx, e.host, "rm -rf "+sshutil.Quote(e.ws))
	if err != nil || code != 0 {
		return errs.Newf(errs.ErrSandboxRelease, "sandbox.release",
			"remote cleanup on %s failed: %s", e.host.Spec.Name, strings.TrimSpace(out))
	}
	return nil
}
