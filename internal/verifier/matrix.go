// Package verifier: matrix fan-out across interpreter versions.
package verifier

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/sandbox"
)

// DefaultMatrixParallel is the fan-out width when none is configured.
const DefaultMatrixParallel = 2

// MatrixResult is the outcome of one matrix cell.
type MatrixResult struct {
	Version string
	Record  v1.RunRecord
	Err     error
}

// Matrix verifies one artifact against several Python versions, one isolated
// run per version. Cells run concurrently up to parallel; a failing cell
// never cancels its siblings, so the table always reports every version.
func (v *Verifier) Matrix(ctx context.Context, path string, versions []string, parallel int, base Options) []MatrixResult {
	if parallel <= 0 {
		parallel = DefaultMatrixParallel
	}
	results := make([]MatrixResult, len(versions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, ver := range versions {
		i, ver := i, ver
		g.Go(func() error {
			opts := base
			opts.Progress = nil // cells stay quiet; the caller renders the table
			switch opts.Runner.Kind() {
			case sandbox.KindDocker:
				opts.Sandbox.Image = MatrixImage(ver)
			default:
				opts.Sandbox.Python = "python" + ver
			}
			rec, err := v.Verify(gctx, path, opts)
			results[i] = MatrixResult{Version: ver, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// MatrixImage maps a version selector to the official slim image.
func MatrixImage(version string) string {
	return fmt.Sprintf("python:%s-slim", version)
}
