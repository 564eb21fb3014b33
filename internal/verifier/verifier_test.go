package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/config"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/plugin"
	"github.com/hacker-4-good/chroma/internal/core/state"
	"github.com/hacker-4-good/chroma/internal/sandbox"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// scriptedEnv plays back configured step results so pipeline behaviour can be
// asserted without a real interpreter.
type scriptedEnv struct {
	mu       sync.Mutex
	artifact string
	exits    map[string]int    // step → exit code, default 0
	outs     map[string]string // step → stdout
	hardErrs map[string]error  // step → execution error
	steps    []string
	argv     map[string][]string
	closed   int
	keepPath string // non-empty = workspace survives Close
}

func newScriptedEnv() *scriptedEnv {
	return &scriptedEnv{
		exits:    map[string]int{},
		outs:     map[string]string{"python-version": "Python 3.11.9"},
		hardErrs: map[string]error{},
		argv:     map[string][]string{},
	}
}

func (s *scriptedEnv) Runner() string       { return "venv" }
func (s *scriptedEnv) Workspace() string    { return "/tmp/scripted" }
func (s *scriptedEnv) Python() string       { return "/sb/venv/bin/python" }
func (s *scriptedEnv) Pip() string          { return "/sb/venv/bin/pip" }
func (s *scriptedEnv) ArtifactPath() string { return s.artifact }

func (s *scriptedEnv) Run(_ context.Context, step string, argv ...string) (sandbox.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
	s.argv[step] = argv
	if err := s.hardErrs[step]; err != nil {
		return sandbox.ExecResult{Step: step, ExitCode: -1}, err
	}
	return sandbox.ExecResult{
		Step:     step,
		Stdout:   s.outs[step],
		ExitCode: s.exits[step],
	}, nil
}

func (s *scriptedEnv) StartBackground(context.Context, string, ...string) (func() error, error) {
	return func() error { return nil }, nil
}

func (s *scriptedEnv) Endpoint(port int) (string, int) { return "127.0.0.1", port }

func (s *scriptedEnv) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *scriptedEnv) KeptPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return s.keepPath
	}
	return ""
}

func (s *scriptedEnv) stepArgv(step string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.argv[step]
}

func (s *scriptedEnv) stepOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

// fakeRunner hands out one scripted env per Provision call.
type fakeRunner struct {
	mu           sync.Mutex
	kind         string
	provisionErr error
	envs         []*scriptedEnv
	opts         []sandbox.Options
	arts         []v1.ArtifactInfo
	makeEnv      func() *scriptedEnv
}

func (r *fakeRunner) Kind() string {
	if r.kind == "" {
		return sandbox.KindVenv
	}
	return r.kind
}

func (r *fakeRunner) Provision(_ context.Context, art v1.ArtifactInfo, opts sandbox.Options) (sandbox.Env, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	r.arts = append(r.arts, art)
	if r.provisionErr != nil {
		return nil, r.provisionErr
	}
	env := newScriptedEnv()
	if r.makeEnv != nil {
		env = r.makeEnv()
	}
	env.artifact = art.Path
	r.envs = append(r.envs, env)
	return env, nil
}

func (r *fakeRunner) provisions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opts)
}

func (r *fakeRunner) env(i int) *scriptedEnv {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envs[i]
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type harness struct {
	v      *Verifier
	db     *state.DB
	runner *fakeRunner
	lines  *[]string
	opts   Options
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	log, err := logger.Init("error", "text", "", "", false)
	require.NoError(t, err)

	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if cfg == nil {
		cfg = &config.Config{}
		cfg.History.Enabled = true
	}

	runner := &fakeRunner{}
	lines := &[]string{}
	return &harness{
		v:      New(cfg, db, plugin.NewHost(log), log),
		db:     db,
		runner: runner,
		lines:  lines,
		opts: Options{
			Runner: runner,
			Progress: func(format string, args ...any) {
				*lines = append(*lines, fmt.Sprintf(format, args...))
			},
		},
	}
}

// writeArtifact drops a placeholder artifact file and returns its path.
func writeArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("tarball bytes"), 0644))
	return path
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline behaviour
// ─────────────────────────────────────────────────────────────────────────────

func TestVerifyFullArtifactPasses(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.NoError(t, err)

	assert.Equal(t, v1.RunPassed, rec.Status)
	assert.Equal(t, "venv", rec.Runner)
	assert.Equal(t, "3.11.9", rec.PythonVersion)
	assert.False(t, rec.CompletedAt.IsZero())

	// The announcement line mirrors the resolved absolute path.
	require.NotEmpty(t, *h.lines)
	assert.Equal(t, "Testing PIP package: "+rec.Artifact.Path, (*h.lines)[0])

	// Full artifacts get the heartbeat check by default.
	require.Len(t, rec.Checks, 1)
	assert.Equal(t, "heartbeat", rec.Checks[0].Name)
	assert.Equal(t, v1.CheckPassed, rec.Checks[0].Status)

	env := h.runner.env(0)
	assert.Equal(t,
		[]string{"/sb/venv/bin/pip", "install", rec.Artifact.Path},
		env.stepArgv("install"))
	assert.Equal(t,
		"import demo; api = demo.Client(); print(api.heartbeat())",
		env.stepArgv("heartbeat")[2])
	assert.Equal(t, 1, env.closed)

	// History is on, so the run landed in the store.
	stored, err := h.db.GetRun(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, v1.RunPassed, stored.Status)
}

func TestVerifyClientArtifactGetsVersionCheck(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo_client-1.0.0.tar.gz")

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.NoError(t, err)

	assert.Equal(t, v1.KindClient, rec.Artifact.Kind)
	require.Len(t, rec.Checks, 1)
	assert.Equal(t, "version", rec.Checks[0].Name)

	// Client builds install the full package's module.
	env := h.runner.env(0)
	assert.Equal(t,
		"import demo; print(demo.__version__)",
		env.stepArgv("version")[2])
}

func TestVerifyMissingArtifactKeepsGoing(t *testing.T) {
	h := newHarness(t, nil)
	missing := filepath.Join(t.TempDir(), "ghost-1.0.0.tar.gz")
	h.runner.makeEnv = func() *scriptedEnv {
		env := newScriptedEnv()
		env.exits["install"] = 1
		env.outs["install"] = "ERROR: no such file"
		return env
	}

	rec, err := h.v.Verify(context.Background(), missing, h.opts)
	require.Error(t, err)

	// Missing is announced but the pipeline still provisions and lets pip fail.
	assert.Equal(t, "Could not find PIP package: "+rec.Artifact.Path, (*h.lines)[0])
	assert.Equal(t, 1, h.runner.provisions())
	assert.Equal(t, v1.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "pip install exited 1")
	assert.Equal(t, "ERROR: no such file", rec.InstallOutput)
	assert.Empty(t, rec.Checks)
}

func TestVerifyStrictAbortsOnMissingArtifact(t *testing.T) {
	h := newHarness(t, nil)
	h.opts.Strict = true

	rec, err := h.v.Verify(context.Background(), filepath.Join(t.TempDir(), "ghost-1.0.0.tar.gz"), h.opts)
	require.Error(t, err)

	assert.Equal(t, v1.RunError, rec.Status)
	assert.Contains(t, rec.Error, "could not find PIP package")
	assert.Zero(t, h.runner.provisions(), "strict mode must not provision a sandbox")

	// The aborted run is still recorded.
	stored, err := h.db.GetRun(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, v1.RunError, stored.Status)
}

func TestVerifyFirstCheckFailureSkipsTheRest(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	h.opts.Checks = []v1.CheckSpec{
		{Type: "import"},
		{Name: "smoke-cli", Type: "cmd", Command: "demo --help"},
	}
	h.runner.makeEnv = func() *scriptedEnv {
		env := newScriptedEnv()
		env.exits["heartbeat"] = 1
		env.outs["heartbeat"] = "Traceback: ConnectionError"
		return env
	}

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat check failed")

	assert.Equal(t, v1.RunFailed, rec.Status)
	require.Len(t, rec.Checks, 3)
	assert.Equal(t, v1.CheckFailed, rec.Checks[0].Status)
	assert.Equal(t, v1.CheckSkipped, rec.Checks[1].Status)
	assert.Equal(t, "import", rec.Checks[1].Name)
	assert.Equal(t, v1.CheckSkipped, rec.Checks[2].Status)
	assert.Equal(t, "smoke-cli", rec.Checks[2].Name)

	// Skipped checks never reached the sandbox.
	env := h.runner.env(0)
	assert.NotContains(t, env.stepOrder(), "import")
	assert.NotContains(t, env.stepOrder(), "smoke-cli")
}

func TestVerifyKeepTracksWorkspace(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	h.opts.Sandbox.Keep = true
	h.runner.makeEnv = func() *scriptedEnv {
		env := newScriptedEnv()
		env.keepPath = "/tmp/pipsmoke-kept-001"
		return env
	}

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pipsmoke-kept-001", rec.KeptWorkspace)

	wss, err := h.db.ListWorkspaces()
	require.NoError(t, err)
	require.Len(t, wss, 1)
	assert.Equal(t, rec.ID, wss[0].RunID)
	assert.Equal(t, "kept", wss[0].Reason)
	assert.Equal(t, "venv", wss[0].Runner)
}

func TestVerifyProvisionFailureIsRunError(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	h.runner.provisionErr = errors.New("no docker daemon")

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.Error(t, err)
	assert.Equal(t, v1.RunError, rec.Status)
	assert.Contains(t, rec.Error, "no docker daemon")
}

func TestVerifyInstallExecutionErrorIsRunError(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	h.runner.makeEnv = func() *scriptedEnv {
		env := newScriptedEnv()
		env.hardErrs["install"] = errors.New("sandbox died")
		return env
	}

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.Error(t, err)
	// Could not execute at all → error, not a package failure.
	assert.Equal(t, v1.RunError, rec.Status)
}

func TestVerifyInstallerConfigShapesArgv(t *testing.T) {
	cfg := &config.Config{}
	cfg.History.Enabled = true
	cfg.Installer = config.InstallerConfig{
		IndexURL:  "https://pypi.internal/simple",
		ExtraArgs: []string{"--pre"},
		NoCache:   true,
		Quiet:     true,
	}
	h := newHarness(t, cfg)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/sb/venv/bin/pip", "install",
		"--no-cache-dir", "--quiet",
		"--index-url", "https://pypi.internal/simple",
		"--pre",
		rec.Artifact.Path,
	}, h.runner.env(0).stepArgv("install"))
}

func TestVerifyConfiguredChecksAndImportName(t *testing.T) {
	cfg := &config.Config{}
	cfg.History.Enabled = true
	cfg.Package.ImportName = "demopkg"
	cfg.Checks = []v1.CheckSpec{{Type: "import"}}
	h := newHarness(t, cfg)
	path := writeArtifact(t, "some-dist-name-1.0.0.tar.gz")

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.NoError(t, err)

	require.Len(t, rec.Checks, 2)
	assert.Equal(t, "heartbeat", rec.Checks[0].Name)
	assert.Equal(t, "import", rec.Checks[1].Name)

	env := h.runner.env(0)
	assert.Equal(t, "import demopkg; api = demopkg.Client(); print(api.heartbeat())", env.stepArgv("heartbeat")[2])
	assert.Equal(t, "import demopkg", env.stepArgv("import")[2])
}

func TestVerifyServeCheckExposesPort(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	h.opts.Checks = []v1.CheckSpec{{
		Type:       "serve",
		Entrypoint: "demo.server run",
		Port:       19999,
		Timeout:    40 * time.Millisecond,
		Interval:   10 * time.Millisecond,
		Retries:    1,
	}}

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.Error(t, err) // nothing listens on the probe port

	require.Equal(t, 1, h.runner.provisions())
	assert.Equal(t, 19999, h.runner.opts[0].ServePort)
	assert.Equal(t, v1.RunFailed, rec.Status)
	require.Len(t, rec.Checks, 2)
	assert.Equal(t, v1.CheckFailed, rec.Checks[1].Status)
}

func TestVerifyHistoryDisabledSkipsStore(t *testing.T) {
	cfg := &config.Config{} // History.Enabled false
	h := newHarness(t, cfg)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")

	rec, err := h.v.Verify(context.Background(), path, h.opts)
	require.NoError(t, err)

	stored, err := h.db.GetRun(rec.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

// ─────────────────────────────────────────────────────────────────────────────
// Matrix fan-out
// ─────────────────────────────────────────────────────────────────────────────

func TestMatrixVenvSelectsInterpreters(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")

	results := h.v.Matrix(context.Background(), path, []string{"3.10", "3.11"}, 1, h.opts)
	require.Len(t, results, 2)

	assert.Equal(t, "3.10", results[0].Version)
	assert.Equal(t, "3.11", results[1].Version)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, v1.RunPassed, res.Record.Status)
	}

	// parallel=1 keeps provisioning order aligned with versions.
	require.Equal(t, 2, h.runner.provisions())
	assert.Equal(t, "python3.10", h.runner.opts[0].Python)
	assert.Equal(t, "python3.11", h.runner.opts[1].Python)
}

func TestMatrixDockerSelectsImages(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	h.runner.kind = sandbox.KindDocker

	results := h.v.Matrix(context.Background(), path, []string{"3.12"}, 1, h.opts)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	require.Equal(t, 1, h.runner.provisions())
	assert.Equal(t, "python:3.12-slim", h.runner.opts[0].Image)
	assert.Equal(t, "python:3.12-slim", results[0].Record.Image)
}

func TestMatrixFailingCellDoesNotCancelSiblings(t *testing.T) {
	h := newHarness(t, nil)
	path := writeArtifact(t, "demo-1.0.0.tar.gz")
	var cell int
	h.runner.makeEnv = func() *scriptedEnv {
		env := newScriptedEnv()
		cell++
		if cell == 1 {
			env.exits["install"] = 1
		}
		return env
	}

	results := h.v.Matrix(context.Background(), path, []string{"3.10", "3.11", "3.12"}, 1, h.opts)
	require.Len(t, results, 3)

	assert.Error(t, results[0].Err)
	assert.Equal(t, v1.RunFailed, results[0].Record.Status)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestMatrixImage(t *testing.T) {
	assert.Equal(t, "python:3.11-slim", MatrixImage("3.11"))
}
