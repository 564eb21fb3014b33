// Package artifact resolves distribution artifacts and reads their metadata.
package artifact

import (
	"os"
	"path/filepath"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/pkg/distname"
)

// Resolve turns a user-supplied path into an ArtifactInfo. The path is made
// absolute and stat'ed; a missing file is NOT an error, it is recorded in the
// Exists field so the caller can report it and carry on. importOverride, when
// non-empty, wins over the name derived from the filename.
func Resolve(path, importOverride string) (v1.ArtifactInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return v1.ArtifactInfo{}, err
	}

	info := v1.ArtifactInfo{Path: abs, Base: filepath.Base(abs)}
	if st, err := os.Stat(abs); err == nil && !st.IsDir() {
		info.Exists = true
		info.SizeBytes = st.Size()
	}

	d := distname.Parse(abs)
	info.Dist = d.Name
	info.Version = d.Version
	info.Wheel = d.Wheel
	info.Kind = v1.ArtifactKind(d.Kind)

	info.ImportName = importOverride
	if info.ImportName == "" {
		info.ImportName = distname.ImportName(d.Name)
	}
	return info, nil
}
