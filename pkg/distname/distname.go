// Package distname parses Python distribution artifact filenames.
package distname

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Kind classifies an artifact by the naming heuristic used in release
// pipelines: a basename containing "client" is the thin client build,
// anything else is the full package.
type Kind string

const (
	KindClient Kind = "client"
	KindFull   Kind = "full"
)

// Dist holds the fields recovered from an artifact filename.
type Dist struct {
	Base    string // original basename, e.g. "chromadb_client-1.0.0.tar.gz"
	Name    string // distribution name, e.g. "chromadb_client"
	Version string // version string, e.g. "1.0.0"
	Wheel   bool   // true for .whl, false for sdists
	Kind    Kind
}

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// Parse extracts distribution name, version and kind from an artifact path.
// It never fails: filenames that don't follow sdist/wheel conventions
// degrade to an empty version with the whole stem as the name, and the kind
// heuristic still applies to the raw basename.
func Parse(path string) Dist {
	base := filepath.Base(path)
	d := Dist{Base: base, Kind: KindFull}
	if IsClient(base) {
		d.Kind = KindClient
	}

	stem := base
	for _, suffix := range []string{".tar.gz", ".tgz", ".zip"} {
		if s, ok := strings.CutSuffix(stem, suffix); ok {
			stem = s
			break
		}
	}
	if s, ok := strings.CutSuffix(stem, ".whl"); ok {
		stem = s
		d.Wheel = true
	}

	if d.Wheel {
		// Wheel filenames are "name-version-pytag-abitag-platform[.whl]"
		// with dashes escaped out of the name, so positional split is safe.
		parts := strings.SplitN(stem, "-", 3)
		d.Name = parts[0]
		if len(parts) > 1 {
			d.Version = parts[1]
		}
		return d
	}

	// Sdists are "name-version"; the name itself may contain dashes, the
	// version never does, so split at the last dash.
	if i := strings.LastIndex(stem, "-"); i > 0 && i < len(stem)-1 && isDigit(stem[i+1]) {
		d.Name = stem[:i]
		d.Version = stem[i+1:]
	} else {
		d.Name = stem
	}
	return d
}

// IsClient reports whether the basename matches the client-build naming
// heuristic: a plain substring match, exactly as the release script's
// *client* glob behaved.
func IsClient(base string) bool {
	return strings.Contains(base, "client")
}

// Normalize lowercases a distribution name and collapses separator runs to
// a single underscore, yielding the importable module form.
func Normalize(name string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(name), "_")
}

// ImportName derives the default import name for a distribution: the
// normalized name with a trailing "_client" stripped, since client builds
// install the same top-level module as the full package.
func ImportName(distName string) string {
	n := Normalize(distName)
	if s, ok := strings.CutSuffix(n, "_client"); ok && s != "" {
		return s
	}
	return n
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
