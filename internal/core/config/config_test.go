package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory so a developer's real
// ~/.pipsmoke/config.yaml cannot leak into assertions.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipsmoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(writeConfig(t, "version: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Python.Binary)
	assert.Equal(t, "venv", cfg.Sandbox.Runner)
	assert.Equal(t, 5*time.Minute, cfg.Sandbox.StepTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Sandbox.RunTimeout)
	assert.Equal(t, "python:3.12-slim", cfg.Docker.Image)
	assert.Equal(t, "Client", cfg.Package.Factory)
	assert.Equal(t, "heartbeat", cfg.Package.Method)
	assert.Equal(t, "__version__", cfg.Package.VersionAttribute)
	assert.True(t, cfg.Installer.NoCache)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 200, cfg.History.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadProjectFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
version: "1"
project:
  name: chromadb
python:
  binary: python3.12
  versions: ["3.10", "3.12"]
sandbox:
  runner: docker
  step_timeout: 90s
installer:
  index_url: https://test.pypi.org/simple/
  extra_args: ["--pre"]
checks:
  - name: server boots
    type: serve
    entrypoint: chromadb.cli run
    port: 8000
hosts:
  - name: build-02
    host: 192.168.1.20
    user: smoke
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "chromadb", cfg.Project.Name)
	assert.Equal(t, "python3.12", cfg.Python.Binary)
	assert.Equal(t, []string{"3.10", "3.12"}, cfg.Python.Versions)
	assert.Equal(t, "docker", cfg.Sandbox.Runner)
	assert.Equal(t, 90*time.Second, cfg.Sandbox.StepTimeout)
	assert.Equal(t, []string{"--pre"}, cfg.Installer.ExtraArgs)

	require.Len(t, cfg.Checks, 1)
	assert.Equal(t, "serve", cfg.Checks[0].Type)
	assert.Equal(t, 8000, cfg.Checks[0].Port)

	require.NotNil(t, cfg.HostByName("build-02"))
	assert.Equal(t, "smoke", cfg.HostByName("build-02").User)
	assert.Nil(t, cfg.HostByName("nope"))
}

// The scaffold written by `pipsmoke init` must load back cleanly.
func TestDefaultTemplateLoads(t *testing.T) {
	isolate(t)

	cfg, err := Load(writeConfig(t, DefaultConfigTemplate))
	require.NoError(t, err)

	assert.Equal(t, "my-package", cfg.Project.Name)
	assert.Equal(t, "venv", cfg.Sandbox.Runner)
	assert.Equal(t, []string{"3.10", "3.11", "3.12"}, cfg.Python.Versions)
	assert.Equal(t, 5*time.Minute, cfg.Sandbox.StepTimeout)
	assert.Equal(t, "python:3.12-slim", cfg.Docker.Image)
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("PIPSMOKE_LOG_LEVEL", "debug")
	t.Setenv("PIPSMOKE_DOCKER_IMAGE", "python:3.11-alpine")

	cfg, err := Load(writeConfig(t, "version: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "python:3.11-alpine", cfg.Docker.Image)
}

func TestExpandEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SMOKE_KEY_DIR", "/keys")

	path := writeConfig(t, `
hosts:
  - name: build-02
    host: 10.0.0.5
    key: ${SMOKE_KEY_DIR}/id_ed25519
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/keys/id_ed25519", cfg.Hosts[0].Key)
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad runner",
			yaml:    "sandbox:\n  runner: chroot\n",
			wantErr: "sandbox.runner",
		},
		{
			name:    "duplicate host",
			yaml:    "hosts:\n  - name: a\n    host: h1\n  - name: a\n    host: h2\n",
			wantErr: "duplicate host name",
		},
		{
			name:    "host without address",
			yaml:    "hosts:\n  - name: a\n",
			wantErr: "host address is required",
		},
		{
			name:    "unknown check type",
			yaml:    "checks:\n  - name: x\n    type: teleport\n",
			wantErr: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsSensitiveKey(t *testing.T) {
	assert.True(t, IsSensitiveKey("installer.index_token"))
	assert.True(t, IsSensitiveKey("hosts.0.key"))
	assert.False(t, IsSensitiveKey("log.level"))
}
