package commands

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/config"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

func TestStatusGlyph(t *testing.T) {
	cases := []struct {
		status v1.RunStatus
		want   string
	}{
		{v1.RunPassed, "● passed"},
		{v1.RunFailed, "✗ failed"},
		{v1.RunError, "! error"},
		{v1.RunStatus("pending"), "? pending"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusGlyph(tc.status))
	}
}

func TestShortRunID(t *testing.T) {
	assert.Equal(t, "4f9c2a1b", shortRunID("4f9c2a1b-77aa-4e1d-9c3f-000000000000"))
	assert.Equal(t, "4f9c", shortRunID("4f9c"))
	assert.Equal(t, "", shortRunID(""))
}

func TestFmtRunDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "-"},
		{-5, "-"},
		{500, "0.5s"},
		{1500, "1.5s"},
		{60_000, "1m00s"},
		{90_500, "1m30s"},
		{125_000, "2m05s"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, fmtRunDuration(tc.ms))
	}
}

func TestUserErrorPrefersStructuredMessage(t *testing.T) {
	err := errs.New(errs.ErrInstallFailed, "verify.install", errors.New("boom")).
		WithAdvice("retry with --keep to inspect the venv")

	msg := userError(err)
	assert.Contains(t, msg, "verify.install")
	assert.Contains(t, msg, "retry with --keep")

	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, "dial tcp: connection refused", userError(plain))
}

func TestRunnerKindPrecedence(t *testing.T) {
	rt := &Runtime{Config: &config.Config{}}
	assert.Equal(t, "venv", rt.RunnerKind())

	rt.Config.Sandbox.Runner = "docker"
	assert.Equal(t, "docker", rt.RunnerKind())

	rt.Flags.Runner = "ssh"
	assert.Equal(t, "ssh", rt.RunnerKind())
}

func TestParseUserAtHost(t *testing.T) {
	user, host := parseUserAtHost("deploy@10.0.0.5")
	assert.Equal(t, "deploy", user)
	assert.Equal(t, "10.0.0.5", host)

	user, host = parseUserAtHost("build-03.internal")
	assert.Equal(t, "root", user)
	assert.Equal(t, "build-03.internal", host)
}

func TestParsePythonVersion(t *testing.T) {
	out := "Python 3.11.9\nLinux 6.1.0-18-amd64"
	assert.Equal(t, "3.11.9", parsePythonVersion(out))

	assert.Equal(t, "", parsePythonVersion("Linux 6.1.0-18-amd64"))
	assert.Equal(t, "3.12.1", parsePythonVersion("  Python 3.12.1  "))
}

func TestHostStatusIcon(t *testing.T) {
	assert.Equal(t, "● ", hostStatusIcon(v1.HostOnline))
	assert.Equal(t, "◐ ", hostStatusIcon(v1.HostDegraded))
	assert.Equal(t, "○ ", hostStatusIcon(v1.HostOffline))
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"*.tar.gz", "*.whl"}

	assert.True(t, matchAny(patterns, "chromadb-0.4.13.tar.gz"))
	assert.True(t, matchAny(patterns, "chromadb_client-0.4.13-py3-none-any.whl"))
	assert.False(t, matchAny(patterns, "chromadb-0.4.13.tar.gz.asc"))
	assert.False(t, matchAny(patterns, "notes.txt"))
	assert.False(t, matchAny(nil, "anything.whl"))
}

func TestFmtBytes(t *testing.T) {
	assert.Equal(t, "512 B", fmtBytes(512))
	assert.Equal(t, "2.0 KiB", fmtBytes(2048))
	assert.Equal(t, "1.5 MiB", fmtBytes(3<<19))
}

func TestFmtSince(t *testing.T) {
	assert.Equal(t, "30s", fmtSince(time.Now().Add(-30*time.Second)))
	assert.Equal(t, "5m", fmtSince(time.Now().Add(-5*time.Minute)))
	assert.Equal(t, "3h", fmtSince(time.Now().Add(-3*time.Hour)))
	assert.Equal(t, "2d", fmtSince(time.Now().Add(-49*time.Hour)))
}

func TestDefaultCheckFor(t *testing.T) {
	assert.Equal(t, "version (client artifact)", defaultCheckFor(v1.KindClient))
	assert.Equal(t, "heartbeat (full artifact)", defaultCheckFor(v1.KindFull))
}
