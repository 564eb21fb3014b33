// Package sandbox: venv runner backed by the host interpreter.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

// LocalRunner provisions throwaway virtualenvs under the OS temp directory
// (or Options.Root) using the host's Python interpreter.
type LocalRunner struct {
	log *logger.Logger
}

// NewLocal creates the venv runner.
func NewLocal(log *logger.Logger) *LocalRunner {
	return &LocalRunner{log: log}
}

// Kind implements Runner.
func (r *LocalRunner) Kind() string { return KindVenv }

// Provision creates a fresh workspace with a virtualenv inside it. The
// workspace is removed again if venv creation fails, so a provisioning error
// never leaks a directory.
func (r *LocalRunner) Provision(ctx context.Context, art v1.ArtifactInfo, opts Options) (Env, error) {
	python := opts.Python
	if python == "" {
		python = "python3"
	}
	pyBin, err := exec.LookPath(python)
	if err != nil {
		return nil, errs.Newf(errs.ErrSandboxNoPython, "sandbox.provision",
			"interpreter %q not found on PATH", python).
			WithAdvice("install it or point sandbox.python at an existing interpreter")
	}

	root := opts.Root
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errs.Wrap(err, errs.ErrSandboxProvision, "sandbox.provision")
	}
	ws, err := os.MkdirTemp(root, "pipsmoke-")
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSandboxProvision, "sandbox.provision")
	}

	env := &localEnv{
		ws:          ws,
		venv:        filepath.Join(ws, "venv"),
		artifact:    art.Path,
		keep:        opts.Keep,
		stepTimeout: opts.StepTimeout,
		log:         r.log,
	}
	r.log.Debug("provisioning virtualenv", "workspace", ws, "python", pyBin)

	res, err := env.Run(ctx, "venv", pyBin, "-m", "venv", env.venv)
	if err != nil {
		_ = os.RemoveAll(ws)
		return nil, err
	}
	if res.ExitCode != 0 {
		_ = os.RemoveAll(ws)
		return nil, errs.Newf(errs.ErrSandboxProvision, "sandbox.provision",
			"venv creation failed (exit %d): %s", res.ExitCode, res.Combined())
	}
	return env, nil
}

// localEnv is a provisioned virtualenv plus its workspace directory.
type localEnv struct {
	ws          string
	venv        string
	artifact    string
	keep        bool
	stepTimeout time.Duration
	log         *logger.Logger

	mu     sync.Mutex
	procs  []*localProc
	closed bool
	kept   string
}

type localProc struct {
	cmd  *exec.Cmd
	out  *os.File
	once sync.Once
}

func (p *localProc) stop() error {
	var err error
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		err = p.cmd.Wait()
		if p.out != nil {
			_ = p.out.Close()
		}
		// killed on purpose, not a failure
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = nil
		}
	})
	return err
}

func (e *localEnv) Runner() string    { return KindVenv }
func (e *localEnv) Workspace() string { return e.ws }
func (e *localEnv) KeptPath() string  { return e.kept }

func (e *localEnv) Python() string { return exePath(filepath.Join(venvBin(e.venv), "python")) }
func (e *localEnv) Pip() string    { return exePath(filepath.Join(venvBin(e.venv), "pip")) }

func (e *localEnv) ArtifactPath() string { return e.artifact }

// Run executes one step with stdout and stderr captured separately. The step
// runs from the workspace with the venv's bin directory first on PATH, so
// scripts installed by pip resolve the way they would in an activated venv.
func (e *localEnv) Run(ctx context.Context, step string, argv ...string) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{Step: step}, errs.Newf(errs.ErrSandboxExec, "sandbox.exec", "empty command for step %q", step)
	}
	stepCtx := ctx
	timeout := e.stepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	var cancel context.CancelFunc
	stepCtx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, argv[0], argv[1:]...)
	cmd.Dir = e.ws
	cmd.Env = e.environ()

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := ExecResult{
		Step:     step,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if runErr != nil {
		if stepCtx.Err() != nil {
			res.ExitCode = -1
			return res, errs.Wrap(stepCtx.Err(), errs.ErrSandboxExec, "sandbox.exec."+step).
				WithAdvice("raise sandbox.step_timeout if the step legitimately needs longer")
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, errs.Wrap(runErr, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	return res, nil
}

// StartBackground launches a long-lived process with output teed to a log
// file inside the workspace. Close reaps it if the stop function never ran.
func (e *localEnv) StartBackground(ctx context.Context, step string, argv ...string) (func() error, error) {
	if len(argv) == 0 {
		return nil, errs.Newf(errs.ErrSandboxExec, "sandbox.exec", "empty command for step %q", step)
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.ws
	cmd.Env = e.environ()

	logFile, err := os.Create(filepath.Join(e.ws, step+".log"))
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	proc := &localProc{cmd: cmd, out: logFile}

	e.mu.Lock()
	e.procs = append(e.procs, proc)
	e.mu.Unlock()

	e.log.Debug("background step started", "step", step, "pid", cmd.Process.Pid)
	return proc.stop, nil
}

// Endpoint is the identity mapping: the env shares the host network.
func (e *localEnv) Endpoint(port int) (string, int) { return "127.0.0.1", port }

// Close reaps background processes and removes the workspace unless Keep was
// requested. Calling it more than once is a no-op.
func (e *localEnv) Close(_ context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	procs := e.procs
	e.procs = nil
	e.mu.Unlock()

	for _, p := range procs {
		_ = p.stop()
	}
	if e.keep {
		e.kept = e.ws
		e.log.Debug("keeping workspace", "path", e.ws)
		return nil
	}
	if err := os.RemoveAll(e.ws); err != nil {
		return errs.Wrap(err, errs.ErrSandboxRelease, "sandbox.release")
	}
	return nil
}

// environ returns the host environment with the venv activated: its bin
// directory first on PATH and VIRTUAL_ENV set.
func (e *localEnv) environ() []string {
	base := os.Environ()
	env := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "PATH=") || strings.HasPrefix(kv, "VIRTUAL_ENV=") {
			continue
		}
		env = append(env, kv)
	}
	path := venvBin(e.venv)
	if host := os.Getenv("PATH"); host != "" {
		path += string(os.PathListSeparator) + host
	}
	return append(env, "PATH="+path, "VIRTUAL_ENV="+e.venv)
}

func venvBin(venv string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venv, "Scripts")
	}
	return filepath.Join(venv, "bin")
}

func exePath(p string) string {
	if runtime.GOOS == "windows" {
		return p + ".exe"
	}
	return p
}

// LookupInterpreter resolves "3.11" style version selectors to a python
// binary on PATH, used by the matrix fan-out.
func LookupInterpreter(version string) (string, error) {
	candidates := []string{"python" + version}
	if strings.HasPrefix(version, "python") {
		// already a binary name, e.g. "python3.11"
		candidates = []string{version}
	} else {
		candidates = append(candidates, version)
	}
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", errs.Newf(errs.ErrSandboxNoPython, "sandbox.lookup",
		"no interpreter found for %q", version).
		WithAdvice(fmt.Sprintf("install python%s or use the docker runner", version))
}
