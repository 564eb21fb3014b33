// Package artifact: archive metadata extraction.
package artifact

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hacker-4-good/chroma/pkg/errs"
)

// maxMetadataBytes bounds how much of any single metadata file is read.
const maxMetadataBytes = 1 << 20

// Metadata is what pipsmoke can learn about a package without installing it.
type Metadata struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Summary        string   `json:"summary,omitempty"`
	RequiresPython string   `json:"requires_python,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Source         string   `json:"source"` // pyproject.toml | PKG-INFO | METADATA
}

// ReadMetadata opens an artifact archive and extracts its packaging metadata.
// Sdists are scanned for pyproject.toml and PKG-INFO at the distribution root;
// wheels for *.dist-info/METADATA. Callers treat failures as advisory — a
// package with unreadable metadata can still be installed and checked.
func ReadMetadata(artifactPath string) (*Metadata, error) {
	switch {
	case strings.HasSuffix(artifactPath, ".whl"), strings.HasSuffix(artifactPath, ".zip"):
		return readWheel(artifactPath)
	case strings.HasSuffix(artifactPath, ".tar.gz"), strings.HasSuffix(artifactPath, ".tgz"):
		return readSdist(artifactPath)
	default:
		return nil, errs.Newf(errs.ErrArtifactMetadata, "artifact.metadata",
			"unrecognised archive type: %s", path.Base(artifactPath))
	}
}

// readSdist scans a tar.gz for root-level pyproject.toml and PKG-INFO.
// pyproject wins when it carries a static name; PKG-INFO fills in anything
// pyproject declares dynamic.
func readSdist(artifactPath string) (*Metadata, error) {
	f, err := os.Open(artifactPath)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.open")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.gunzip")
	}
	defer gz.Close()

	var pyproject, pkgInfo []byte
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.tar")
		}
		name := path.Clean(hdr.Name)
		// Only "dist-1.0.0/<file>" entries count as distribution root
		if strings.Count(name, "/") != 1 {
			continue
		}
		switch path.Base(name) {
		case "pyproject.toml":
			pyproject, err = io.ReadAll(io.LimitReader(tr, maxMetadataBytes))
		case "PKG-INFO":
			pkgInfo, err = io.ReadAll(io.LimitReader(tr, maxMetadataBytes))
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.read")
		}
		if pyproject != nil && pkgInfo != nil {
			break
		}
	}

	md := &Metadata{}
	if pkgInfo != nil {
		md = parseHeaders(pkgInfo)
		md.Source = "PKG-INFO"
	}
	if pyproject != nil {
		pm, err := parsePyproject(pyproject)
		if err == nil && pm.Name != "" {
			// Keep PKG-INFO values for fields pyproject leaves dynamic
			if pm.Version == "" {
				pm.Version = md.Version
			}
			if pm.Summary == "" {
				pm.Summary = md.Summary
			}
			if pm.RequiresPython == "" {
				pm.RequiresPython = md.RequiresPython
			}
			if len(pm.Dependencies) == 0 {
				pm.Dependencies = md.Dependencies
			}
			pm.Source = "pyproject.toml"
			return pm, nil
		}
	}
	if md.Name == "" {
		return nil, errs.Newf(errs.ErrArtifactMetadata, "artifact.metadata",
			"no pyproject.toml or PKG-INFO at the distribution root of %s", path.Base(artifactPath))
	}
	return md, nil
}

// readWheel scans a zip for the *.dist-info/METADATA entry.
func readWheel(artifactPath string) (*Metadata, error) {
	zr, err := zip.OpenReader(artifactPath)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.zip")
	}
	defer zr.Close()

	for _, entry := range zr.File {
		name := path.Clean(entry.Name)
		if !strings.HasSuffix(name, ".dist-info/METADATA") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.entry")
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxMetadataBytes))
		rc.Close()
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrArtifactMetadata, "artifact.metadata.read")
		}
		md := parseHeaders(data)
		md.Source = "METADATA"
		return md, nil
	}
	return nil, errs.Newf(errs.ErrArtifactMetadata, "artifact.metadata",
		"no dist-info METADATA entry in %s", path.Base(artifactPath))
}

// parsePyproject decodes the [project] table of a pyproject.toml.
func parsePyproject(data []byte) (*Metadata, error) {
	var doc struct {
		Project struct {
			Name           string   `toml:"name"`
			Version        string   `toml:"version"`
			Description    string   `toml:"description"`
			RequiresPython string   `toml:"requires-python"`
			Dependencies   []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pyproject.toml: %w", err)
	}
	return &Metadata{
		Name:           doc.Project.Name,
		Version:        doc.Project.Version,
		Summary:        doc.Project.Description,
		RequiresPython: doc.Project.RequiresPython,
		Dependencies:   doc.Project.Dependencies,
	}, nil
}

// parseHeaders reads the RFC 822 style key: value headers used by
// PKG-INFO and wheel METADATA files. The body after the first blank
// line (the long description) is ignored.
func parseHeaders(data []byte) *Metadata {
	md := &Metadata{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			md.Name = value
		case "Version":
			md.Version = value
		case "Summary":
			md.Summary = value
		case "Requires-Python":
			md.RequiresPython = value
		case "Requires-Dist":
			md.Dependencies = append(md.Dependencies, value)
		}
	}
	return md
}
