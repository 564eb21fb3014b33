package artifact

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/hacker-4-good/chroma/api/v1"
)

func TestResolveExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chromadb-1.4.0.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not a real tarball"), 0644))

	info, err := Resolve(path, "")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(info.Path))
	assert.Equal(t, "chromadb-1.4.0.tar.gz", info.Base)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(18), info.SizeBytes)
	assert.Equal(t, "chromadb", info.Dist)
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, v1.KindFull, info.Kind)
	assert.Equal(t, "chromadb", info.ImportName)
	assert.False(t, info.Wheel)
}

func TestResolveMissingFileIsNotAnError(t *testing.T) {
	info, err := Resolve(filepath.Join(t.TempDir(), "ghost-2.0.0.tar.gz"), "")
	require.NoError(t, err)

	assert.False(t, info.Exists)
	assert.Zero(t, info.SizeBytes)
	// The name heuristics still run so the caller can report something useful.
	assert.Equal(t, "ghost", info.Dist)
	assert.Equal(t, "2.0.0", info.Version)
}

func TestResolveClientKindAndImportName(t *testing.T) {
	info, err := Resolve("/dist/chromadb_client-0.9.1.tar.gz", "")
	require.NoError(t, err)

	assert.Equal(t, v1.KindClient, info.Kind)
	assert.Equal(t, "chromadb_client", info.Dist)
	// Client builds install the same top-level module as the full package.
	assert.Equal(t, "chromadb", info.ImportName)
}

func TestResolveImportOverrideWins(t *testing.T) {
	info, err := Resolve("/dist/chromadb_client-0.9.1.tar.gz", "chromadb.api")
	require.NoError(t, err)
	assert.Equal(t, "chromadb.api", info.ImportName)
}

func TestResolveWheel(t *testing.T) {
	info, err := Resolve("/dist/chromadb-1.4.0-py3-none-any.whl", "")
	require.NoError(t, err)

	assert.True(t, info.Wheel)
	assert.Equal(t, "chromadb", info.Dist)
	assert.Equal(t, "1.4.0", info.Version)
}

// ─────────────────────────────────────────────────────────────────────────────
// Metadata extraction
// ─────────────────────────────────────────────────────────────────────────────

// writeSdist builds a minimal tar.gz with the given root-relative entries.
func writeSdist(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "demo-1.0.0.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// writeWheel builds a minimal zip with the given entries.
func writeWheel(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "demo-1.0.0-py3-none-any.whl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

const samplePKGINFO = `Metadata-Version: 2.1
Name: demo
Version: 1.0.0
Summary: A demo package
Requires-Python: >=3.9
Requires-Dist: numpy>=1.22
Requires-Dist: requests

The long description starts after the blank line.
Name: should-be-ignored
`

func TestReadMetadataSdistPKGINFO(t *testing.T) {
	path := writeSdist(t, map[string]string{
		"demo-1.0.0/PKG-INFO": samplePKGINFO,
	})

	md, err := ReadMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", md.Name)
	assert.Equal(t, "1.0.0", md.Version)
	assert.Equal(t, "A demo package", md.Summary)
	assert.Equal(t, ">=3.9", md.RequiresPython)
	assert.Equal(t, []string{"numpy>=1.22", "requests"}, md.Dependencies)
	assert.Equal(t, "PKG-INFO", md.Source)
}

func TestReadMetadataSdistPyprojectWins(t *testing.T) {
	pyproject := `
[project]
name = "demo"
description = "From pyproject"
requires-python = ">=3.10"
dynamic = ["version"]
`
	path := writeSdist(t, map[string]string{
		"demo-1.0.0/pyproject.toml": pyproject,
		"demo-1.0.0/PKG-INFO":       samplePKGINFO,
	})

	md, err := ReadMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "pyproject.toml", md.Source)
	assert.Equal(t, "From pyproject", md.Summary)
	assert.Equal(t, ">=3.10", md.RequiresPython)
	// Dynamic fields fall back to PKG-INFO values
	assert.Equal(t, "1.0.0", md.Version)
	assert.Equal(t, []string{"numpy>=1.22", "requests"}, md.Dependencies)
}

func TestReadMetadataIgnoresNestedFiles(t *testing.T) {
	path := writeSdist(t, map[string]string{
		"demo-1.0.0/vendor/other/PKG-INFO": samplePKGINFO,
	})

	_, err := ReadMetadata(path)
	assert.ErrorContains(t, err, "no pyproject.toml or PKG-INFO")
}

func TestReadMetadataWheel(t *testing.T) {
	metadata := `Metadata-Version: 2.1
Name: demo
Version: 1.0.0
Summary: Wheel metadata
`
	path := writeWheel(t, map[string]string{
		"demo/__init__.py":              "",
		"demo-1.0.0.dist-info/METADATA": metadata,
		"demo-1.0.0.dist-info/RECORD":   "",
	})

	md, err := ReadMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", md.Name)
	assert.Equal(t, "Wheel metadata", md.Summary)
	assert.Equal(t, "METADATA", md.Source)
}

func TestReadMetadataWheelWithoutDistInfo(t *testing.T) {
	path := writeWheel(t, map[string]string{"demo/__init__.py": ""})

	_, err := ReadMetadata(path)
	assert.ErrorContains(t, err, "no dist-info METADATA")
}

func TestReadMetadataUnknownExtension(t *testing.T) {
	_, err := ReadMetadata("/dist/demo-1.0.0.rpm")
	assert.ErrorContains(t, err, "unrecognised archive type")
}
