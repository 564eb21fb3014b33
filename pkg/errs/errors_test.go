package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	cause := errors.New("pip exited with status 1")
	err := New(ErrInstallFailed, "verify.install", cause).WithArtifact("chromadb-1.0.0.tar.gz")

	assert.Equal(t, "[ERR-INSTALL-001] verify.install (chromadb-1.0.0.tar.gz): pip exited with status 1", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestUserMessage(t *testing.T) {
	err := Newf(ErrSandboxNoPython, "sandbox.provision", "no python3 on PATH").
		WithAdvice("install Python 3.8+ or set python.binary in pipsmoke.yaml")

	msg := err.UserMessage()
	assert.Contains(t, msg, "ERR-SANDBOX-004")
	assert.Contains(t, msg, "sandbox.provision")
	assert.Contains(t, msg, "→ install Python 3.8+")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal, "noop"))
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCheckTimeout, "check.serve", errors.New("deadline exceeded"))
	outer := fmt.Errorf("run aborted: %w", inner)

	assert.True(t, IsCode(outer, ErrCheckTimeout))
	assert.False(t, IsCode(outer, ErrCheckFailed))
	assert.False(t, IsCode(errors.New("plain"), ErrCheckTimeout))
}

func TestAsSmoke(t *testing.T) {
	inner := New(ErrHostConnect, "hosts.test", errors.New("dial tcp: refused")).WithArtifact("build-02")
	wrapped := fmt.Errorf("remote run: %w", inner)

	se := AsSmoke(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, ErrHostConnect, se.Code)
	assert.Equal(t, "build-02", se.Artifact)

	assert.Nil(t, AsSmoke(errors.New("plain")))
}
