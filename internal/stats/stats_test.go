package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/state"
)

func run(id, base string, status v1.RunStatus, started time.Time, durMS int64, runner string) v1.RunRecord {
	return v1.RunRecord{
		ID:         id,
		Artifact:   v1.ArtifactInfo{Base: base, Path: "/dist/" + base},
		Runner:     runner,
		Status:     status,
		StartedAt:  started,
		DurationMS: durMS,
	}
}

func TestAggregate(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []v1.RunRecord{
		run("r1", "demo-1.0.0.tar.gz", v1.RunPassed, base, 1000, "venv"),
		run("r2", "demo-1.0.0.tar.gz", v1.RunFailed, base.Add(time.Hour), 3000, "venv"),
		run("r3", "demo_client-1.0.0.tar.gz", v1.RunPassed, base.Add(2*time.Hour), 2000, "docker"),
		run("r4", "demo-1.1.0.tar.gz", v1.RunError, base.Add(30*time.Minute), 200, "venv"),
	}

	s := Aggregate(runs)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Errored)
	// Errored runs never reached a verdict, so they stay out of the rate.
	assert.InDelta(t, 66.67, s.PassRate, 0.01)
	assert.Equal(t, int64(1550), s.AvgMS)
	assert.Equal(t, base.Add(2*time.Hour), s.LastRun)
	assert.Equal(t, 3, s.Artifacts)
	assert.Equal(t, map[string]int{"venv": 3, "docker": 1}, s.ByRunner)
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.PassRate)
	assert.Zero(t, s.AvgMS)
	assert.NotNil(t, s.ByRunner)
}

func TestLatestPerArtifact(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []v1.RunRecord{
		run("old", "demo-1.0.0.tar.gz", v1.RunFailed, base, 0, "venv"),
		run("new", "demo-1.0.0.tar.gz", v1.RunPassed, base.Add(time.Hour), 0, "venv"),
		run("only", "demo_client-1.0.0.tar.gz", v1.RunPassed, base, 0, "venv"),
	}

	latest := LatestPerArtifact(runs)
	require.Len(t, latest, 2)
	assert.Equal(t, "new", latest["demo-1.0.0.tar.gz"].ID)
	assert.Equal(t, "only", latest["demo_client-1.0.0.tar.gz"].ID)
}

func TestCollectorPrimesSnapshot(t *testing.T) {
	log, err := logger.Init("error", "text", "", "", false)
	require.NoError(t, err)
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.PutRun(run("r1", "demo-1.0.0.tar.gz", v1.RunPassed, time.Now().UTC(), 500, "venv")))

	c := NewCollector(db, log)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Run primes once, then sees the cancelled context and returns
	c.Run(ctx)

	sum, runs := c.Snapshot().Get()
	assert.Equal(t, 1, sum.Total)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}
