package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitScaffoldsManifest(t *testing.T) {
	dir := t.TempDir()

	cmd := NewInitCmd()
	cmd.SetArgs([]string{"--path", dir})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(dir, "pipsmoke.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "runner: venv")
	assert.Contains(t, string(data), "name: my-package")
}

func TestInitRefusesToClobber(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipsmoke.yaml"), []byte("version: \"1\"\n"), 0o644))

	cmd := NewInitCmd()
	cmd.SetArgs([]string{"--path", dir})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitPrefillsProjectName(t *testing.T) {
	dir := t.TempDir()
	pyproject := "[project]\nname = \"chromadb\"\nversion = \"1.0.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(pyproject), 0o644))

	cmd := NewInitCmd()
	cmd.SetArgs([]string{"--path", dir})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(dir, "pipsmoke.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: chromadb")
	assert.NotContains(t, string(data), "my-package")
}

func TestDetectProjectName(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", detectProjectName(dir), "no pyproject.toml")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte("not toml at {{"), 0o644))
	assert.Equal(t, "", detectProjectName(dir), "unparseable manifest")

	good := "[build-system]\nrequires = [\"hatchling\"]\n\n[project]\nname = \"smoke-widgets\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(good), 0o644))
	assert.Equal(t, "smoke-widgets", detectProjectName(dir))
}
