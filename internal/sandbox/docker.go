// Package sandbox: docker runner backed by the Docker Engine API.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	networktypes "github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

// Container labels marking sandboxes created by this tool.
const (
	LabelRun      = "pipsmoke.run"
	LabelArtifact = "pipsmoke.artifact"
)

// DefaultImage is used when neither config nor flags select a base image.
const DefaultImage = "python:3.12-slim"

// mount point of the artifact's directory inside the container
const distMount = "/mnt/dist"

// DockerRunner provisions one container per verification run. The artifact's
// directory is bind-mounted read-only and every step executes through the
// exec API inside a venv created at /work/venv.
type DockerRunner struct {
	docker *dockerclient.Client
	log    *logger.Logger
}

// NewDocker creates a Docker API client. An empty host uses the environment
// (DOCKER_HOST et al.).
func NewDocker(host string, log *logger.Logger) (*DockerRunner, error) {
	opts := []dockerclient.Opt{
		dockerclient.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, dockerclient.WithHost(host))
	} else {
		opts = append(opts, dockerclient.FromEnv)
	}

	dc, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrDockerConnect, "docker.client")
	}
	return &DockerRunner{docker: dc, log: log}, nil
}

// Kind implements Runner.
func (r *DockerRunner) Kind() string { return KindDocker }

// Ping verifies Docker daemon connectivity.
func (r *DockerRunner) Ping(ctx context.Context) error {
	if _, err := r.docker.Ping(ctx); err != nil {
		return errs.Wrap(err, errs.ErrDockerConnect, "docker.ping").
			WithAdvice("is the Docker daemon running?")
	}
	return nil
}

// Close releases the Docker API client resources.
func (r *DockerRunner) Close() error {
	return r.docker.Close()
}

// PullImage pulls the specified image and streams progress to the logger.
func (r *DockerRunner) PullImage(ctx context.Context, img string) error {
	r.log.Info("pulling image", "image", img)
	rc, err := r.docker.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return errs.Wrap(err, errs.ErrDockerPull, "docker.pull").WithArtifact(img)
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	for {
		var msg struct {
			Status   string `json:"status"`
			Progress string `json:"progress"`
			Error    string `json:"error"`
		}
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return errs.Wrap(err, errs.ErrDockerPull, "docker.pull")
		}
		if msg.Error != "" {
			return errs.Newf(errs.ErrDockerPull, "docker.pull", "image pull error: %s", msg.Error)
		}
		if msg.Status != "" {
			r.log.Debug("pull", "status", msg.Status, "progress", msg.Progress)
		}
	}
	return nil
}

// EnsureImage pulls the image only when it is not already present locally.
func (r *DockerRunner) EnsureImage(ctx context.Context, img string) error {
	if _, _, err := r.docker.ImageInspectWithRaw(ctx, img); err == nil {
		return nil
	}
	return r.PullImage(ctx, img)
}

// ListImages returns local images matching the reference pattern (for example
// "python:*"). An empty pattern lists everything.
func (r *DockerRunner) ListImages(ctx context.Context, refPattern string) ([]image.Summary, error) {
	f := filters.NewArgs()
	if refPattern != "" {
		f.Add("reference", refPattern)
	}
	imgs, err := r.docker.ImageList(ctx, image.ListOptions{Filters: f})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrDockerConnect, "docker.images")
	}
	return imgs, nil
}

// RemoveImage deletes a local image by reference or id.
func (r *DockerRunner) RemoveImage(ctx context.Context, ref string, force bool) error {
	if _, err := r.docker.ImageRemove(ctx, ref, image.RemoveOptions{Force: force, PruneChildren: true}); err != nil {
		return errs.Wrap(err, errs.ErrDockerRemove, "docker.rmi").WithArtifact(ref)
	}
	return nil
}

// RemoveContainer force-removes a sandbox container, used by clean for kept
// workspaces.
func (r *DockerRunner) RemoveContainer(ctx context.Context, idOrName string) error {
	if err := r.docker.ContainerRemove(ctx, idOrName, containertypes.RemoveOptions{Force: true}); err != nil {
		return errs.Wrap(err, errs.ErrDockerRemove, "docker.rm").WithArtifact(idOrName)
	}
	return nil
}

// ListSandboxes returns containers carrying the pipsmoke run label.
func (r *DockerRunner) ListSandboxes(ctx context.Context) ([]types.Container, error) {
	f := filters.NewArgs()
	f.Add("label", LabelRun)
	cts, err := r.docker.ContainerList(ctx, containertypes.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrDockerConnect, "docker.ps")
	}
	return cts, nil
}

// Provision starts a fresh container from the base image, mounts the
// artifact's directory read-only and creates a venv inside. On any failure
// the container is removed before returning.
func (r *DockerRunner) Provision(ctx context.Context, art v1.ArtifactInfo, opts Options) (Env, error) {
	img := opts.Image
	if img == "" {
		img = DefaultImage
	}
	if err := r.Ping(ctx); err != nil {
		return nil, err
	}
	if err := r.EnsureImage(ctx, img); err != nil {
		return nil, err
	}

	runID := strings.SplitN(uuid.NewString(), "-", 2)[0]
	name := "pipsmoke-" + runID

	containerCfg := &containertypes.Config{
		Image:      img,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: "/work",
		Labels: map[string]string{
			LabelRun:      runID,
			LabelArtifact: art.Base,
		},
	}
	hostCfg := &containertypes.HostConfig{}

	if dir := filepath.Dir(art.Path); dirExists(dir) {
		hostCfg.Binds = []string{dir + ":" + distMount + ":ro"}
	}

	var servePort nat.Port
	if opts.ServePort > 0 {
		servePort = nat.Port(fmt.Sprintf("%d/tcp", opts.ServePort))
		containerCfg.ExposedPorts = nat.PortSet{servePort: struct{}{}}
		hostCfg.PortBindings = nat.PortMap{
			servePort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		}
	}

	netCfg := &networktypes.NetworkingConfig{}

	resp, err := r.docker.ContainerCreate(ctx, containerCfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSandboxProvision, "sandbox.provision").WithArtifact(art.Base)
	}
	if err := r.docker.ContainerStart(ctx, resp.ID, containertypes.StartOptions{}); err != nil {
		_ = r.docker.ContainerRemove(ctx, resp.ID, containertypes.RemoveOptions{Force: true})
		return nil, errs.Wrap(err, errs.ErrSandboxProvision, "sandbox.provision").WithArtifact(art.Base)
	}
	r.log.Info("sandbox container started", "name", name, "id", resp.ID[:12], "image", img)

	env := &dockerEnv{
		runner:      r,
		id:          resp.ID,
		name:        name,
		artifact:    distMount + "/" + art.Base,
		keep:        opts.Keep,
		stepTimeout: opts.StepTimeout,
	}

	if opts.ServePort > 0 {
		info, err := r.docker.ContainerInspect(ctx, resp.ID)
		if err != nil {
			_ = env.remove(ctx)
			return nil, errs.Wrap(err, errs.ErrSandboxProvision, "sandbox.provision")
		}
		if bindings := info.NetworkSettings.Ports[servePort]; len(bindings) > 0 {
			if p, err := strconv.Atoi(bindings[0].HostPort); err == nil {
				env.servePort = opts.ServePort
				env.hostPort = p
			}
		}
	}

	res, err := env.Run(ctx, "venv", "python", "-m", "venv", "/work/venv")
	if err != nil {
		_ = env.remove(ctx)
		return nil, err
	}
	if res.ExitCode != 0 {
		_ = env.remove(ctx)
		return nil, errs.Newf(errs.ErrSandboxProvision, "sandbox.provision",
			"venv creation failed in %s (exit %d): %s", img, res.ExitCode, res.Combined())
	}
	return env, nil
}

// dockerEnv is one sandbox container with a venv at /work/venv.
type dockerEnv struct {
	runner      *DockerRunner
	id          string
	name        string
	artifact    string
	keep        bool
	stepTimeout time.Duration
	servePort   int
	hostPort    int
	closed      bool
	kept        string
}

func (e *dockerEnv) Runner() string    { return KindDocker }
func (e *dockerEnv) Workspace() string { return "docker://" + e.id }
func (e *dockerEnv) KeptPath() string  { return e.kept }

func (e *dockerEnv) Python() string { return "/work/venv/bin/python" }
func (e *dockerEnv) Pip() string    { return "/work/venv/bin/pip" }

func (e *dockerEnv) ArtifactPath() string { return e.artifact }

func (e *dockerEnv) execEnv() []string {
	return []string{
		"PATH=/work/venv/bin:/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		"VIRTUAL_ENV=/work/venv",
	}
}

// Run executes one step through the exec API with stdout and stderr demuxed
// from the attached stream.
func (e *dockerEnv) Run(ctx context.Context, step string, argv ...string) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{Step: step}, errs.Newf(errs.ErrSandboxExec, "sandbox.exec", "empty command for step %q", step)
	}
	timeout := e.stepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCfg := types.ExecConfig{
		Cmd:          argv,
		Env:          e.execEnv(),
		WorkingDir:   "/work",
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := e.runner.docker.ContainerExecCreate(stepCtx, e.id, execCfg)
	if err != nil {
		return ExecResult{Step: step, ExitCode: -1}, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	attach, err := e.runner.docker.ContainerExecAttach(stepCtx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return ExecResult{Step: step, ExitCode: -1}, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	defer attach.Close()

	var stdout, stderr strings.Builder
	copied := make(chan error, 1)
	go func() {
		_, cpErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copied <- cpErr
	}()

	start := time.Now()
	select {
	case <-stepCtx.Done():
		res := ExecResult{Step: step, Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1, Duration: time.Since(start)}
		return res, errs.Wrap(stepCtx.Err(), errs.ErrSandboxExec, "sandbox.exec."+step).
			WithAdvice("raise sandbox.step_timeout if the step legitimately needs longer")
	case cpErr := <-copied:
		res := ExecResult{Step: step, Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
		if cpErr != nil {
			res.ExitCode = -1
			return res, errs.Wrap(cpErr, errs.ErrSandboxExec, "sandbox.exec."+step)
		}
		inspect, err := e.runner.docker.ContainerExecInspect(ctx, created.ID)
		if err != nil {
			res.ExitCode = -1
			return res, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
		}
		res.ExitCode = inspect.ExitCode
		return res, nil
	}
}

// StartBackground launches a detached exec. Docker offers no exec-level kill,
// so the stop function is a no-op; the process dies with the container when
// Close removes it.
func (e *dockerEnv) StartBackground(ctx context.Context, step string, argv ...string) (func() error, error) {
	if len(argv) == 0 {
		return nil, errs.Newf(errs.ErrSandboxExec, "sandbox.exec", "empty command for step %q", step)
	}
	execCfg := types.ExecConfig{
		Cmd:        argv,
		Env:        e.execEnv(),
		WorkingDir: "/work",
		Detach:     true,
	}
	created, err := e.runner.docker.ContainerExecCreate(ctx, e.id, execCfg)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	if err := e.runner.docker.ContainerExecStart(ctx, created.ID, types.ExecStartCheck{Detach: true}); err != nil {
		return nil, errs.Wrap(err, errs.ErrSandboxExec, "sandbox.exec."+step)
	}
	e.runner.log.Debug("background step started", "step", step, "container", e.id[:12])
	return func() error { return nil }, nil
}

// Endpoint reports the published host port for the serve port; other ports
// map straight through and are only reachable when the container shares the
// host network.
func (e *dockerEnv) Endpoint(port int) (string, int) {
	if port == e.servePort && e.hostPort != 0 {
		return "127.0.0.1", e.hostPort
	}
	return "127.0.0.1", port
}

// Close removes the container, or leaves it running when Keep was requested
// so the installed environment can be inspected with docker exec.
func (e *dockerEnv) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.keep {
		e.kept = "docker://" + e.id
		e.runner.log.Info("keeping sandbox container", "name", e.name, "id", e.id[:12])
		return nil
	}
	return e.remove(ctx)
}

func (e *dockerEnv) remove(ctx context.Context) error {
	if err := e.runner.docker.ContainerRemove(ctx, e.id, containertypes.RemoveOptions{Force: true}); err != nil {
		return errs.Wrap(err, errs.ErrSandboxRelease, "sandbox.release").WithArtifact(e.name)
	}
	return nil
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
