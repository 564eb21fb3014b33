package remote

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/state"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRegistry(db)
}

func buildHost(name string) v1.HostInfo {
	return v1.HostInfo{
		Spec: v1.HostSpec{Name: name, Host: "10.0.0.5", User: "smoke", Port: 22, Key: "/home/smoke/.ssh/id_ed25519"},
	}
}

func TestRegistryAddAndGet(t *testing.T) {
	r := testRegistry(t)

	require.NoError(t, r.Add(buildHost("build-02")))

	got, err := r.Get("build-02")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", got.Spec.Host)
	// Fresh hosts start offline until a probe proves otherwise.
	assert.Equal(t, v1.HostOffline, got.Status)
	assert.False(t, got.LastSeen.IsZero())

	_, err = r.Get("ghost")
	assert.True(t, errs.IsCode(err, errs.ErrHostNotFound))
}

func TestRegistryAddRejectsDuplicates(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add(buildHost("build-02")))

	err := r.Add(buildHost("build-02"))
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryAddPreservesTrustedKey(t *testing.T) {
	r := testRegistry(t)

	// hosts add gathers the key before registering, so Add must not wipe it.
	info := buildHost("build-02")
	info.KeyFingerprint = "aa:bb:cc"
	info.HostKey = "10.0.0.5 ssh-ed25519 AAAA..."
	info.HostKeyKnown = true
	require.NoError(t, r.Add(info))

	got, err := r.Get("build-02")
	require.NoError(t, err)
	assert.True(t, got.HostKeyKnown)
	assert.Equal(t, "aa:bb:cc", got.KeyFingerprint)
	assert.Equal(t, "10.0.0.5 ssh-ed25519 AAAA...", got.HostKey)
}

func TestRegistryRemove(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add(buildHost("build-02")))

	require.NoError(t, r.Remove("build-02"))

	hosts, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, hosts)

	err = r.Remove("build-02")
	assert.True(t, errs.IsCode(err, errs.ErrHostNotFound))
}

func TestRegistryTrust(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add(buildHost("build-02")))

	require.NoError(t, r.Trust("build-02", "dd:ee:ff", "10.0.0.5 ssh-rsa BBBB..."))

	got, err := r.Get("build-02")
	require.NoError(t, err)
	assert.True(t, got.HostKeyKnown)
	assert.Equal(t, "dd:ee:ff", got.KeyFingerprint)

	err = r.Trust("ghost", "x", "y")
	assert.True(t, errs.IsCode(err, errs.ErrHostNotFound))
}

func TestRegistryRecordProbe(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add(buildHost("build-02")))
	require.NoError(t, r.MarkOffline("build-02", 2))

	require.NoError(t, r.RecordProbe("build-02", "3.11.4"))

	got, err := r.Get("build-02")
	require.NoError(t, err)
	assert.Equal(t, v1.HostOnline, got.Status)
	assert.Equal(t, "3.11.4", got.PythonVersion)
	assert.Zero(t, got.FailCount)
}

func TestRegistryMarkOfflineThreshold(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add(buildHost("build-02")))
	require.NoError(t, r.MarkOnline("build-02"))

	// Two misses degrade, the third takes the host offline.
	require.NoError(t, r.MarkOffline("build-02", 1))
	got, _ := r.Get("build-02")
	assert.Equal(t, v1.HostDegraded, got.Status)
	assert.Equal(t, 1, got.FailCount)

	require.NoError(t, r.MarkOffline("build-02", 2))
	got, _ = r.Get("build-02")
	assert.Equal(t, v1.HostDegraded, got.Status)

	require.NoError(t, r.MarkOffline("build-02", 3))
	got, _ = r.Get("build-02")
	assert.Equal(t, v1.HostOffline, got.Status)
	assert.Equal(t, 3, got.FailCount)
}
