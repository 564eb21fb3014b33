package state

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/hacker-4-good/chroma/api/v1"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id string, started time.Time, status v1.RunStatus) v1.RunRecord {
	return v1.RunRecord{
		ID: id,
		Artifact: v1.ArtifactInfo{
			Path:       "/dist/chromadb-1.0.0.tar.gz",
			Base:       "chromadb-1.0.0.tar.gz",
			Exists:     true,
			Dist:       "chromadb",
			Version:    "1.0.0",
			Kind:       v1.KindFull,
			ImportName: "chromadb",
		},
		Runner:    "venv",
		Status:    status,
		StartedAt: started,
	}
}

func TestRunRoundTrip(t *testing.T) {
	db := openTestDB(t)

	rec := sampleRun("run-aaa", time.Now().UTC(), v1.RunPassed)
	rec.Checks = []v1.CheckResult{{Name: "heartbeat", Type: "heartbeat", Status: v1.CheckPassed, Output: "1724072163000"}}
	require.NoError(t, db.PutRun(rec))

	got, err := db.GetRun("run-aaa")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Artifact, got.Artifact)
	assert.Equal(t, v1.RunPassed, got.Status)
	require.Len(t, got.Checks, 1)
	assert.Equal(t, "heartbeat", got.Checks[0].Name)

	missing, err := db.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindRunByPrefix(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.PutRun(sampleRun("abc123", time.Now(), v1.RunPassed)))
	require.NoError(t, db.PutRun(sampleRun("abd456", time.Now(), v1.RunFailed)))

	got, err := db.FindRun("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc123", got.ID)

	_, err = db.FindRun("ab")
	assert.ErrorContains(t, err, "ambiguous")

	none, err := db.FindRun("zzz")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListRunsOrderAndFilter(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.PutRun(sampleRun("r1", base, v1.RunPassed)))
	require.NoError(t, db.PutRun(sampleRun("r2", base.Add(time.Hour), v1.RunFailed)))
	client := sampleRun("r3", base.Add(2*time.Hour), v1.RunPassed)
	client.Artifact.Base = "chromadb_client-1.0.0.tar.gz"
	require.NoError(t, db.PutRun(client))

	all, err := db.ListRuns("", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	failed, err := db.ListRuns("", v1.RunFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "r2", failed[0].ID)

	byArtifact, err := db.ListRuns("chromadb_client-1.0.0.tar.gz", "")
	require.NoError(t, err)
	require.Len(t, byArtifact, 1)
	assert.Equal(t, "r3", byArtifact[0].ID)
}

func TestPruneRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.PutRun(sampleRun(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Minute), v1.RunPassed)))
	}

	removed, err := db.PruneRuns(3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := db.ListRuns("", "")
	require.NoError(t, err)
	require.Len(t, left, 3)
	// Newest three survive
	assert.Equal(t, "r4", left[0].ID)
	assert.Equal(t, "r2", left[2].ID)

	removed, err = db.PruneRuns(0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestHostLifecycle(t *testing.T) {
	db := openTestDB(t)

	info := v1.HostInfo{
		Spec:   v1.HostSpec{Name: "build-02", Host: "10.0.0.5", User: "smoke", Port: 22},
		Status: v1.HostOffline,
	}
	require.NoError(t, db.PutHost(info))

	got, err := db.GetHost("build-02")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "10.0.0.5", got.Spec.Host)

	require.NoError(t, db.UpdateHostStatus("build-02", v1.HostOnline, 0))
	got, err = db.GetHost("build-02")
	require.NoError(t, err)
	assert.Equal(t, v1.HostOnline, got.Status)
	assert.False(t, got.LastSeen.IsZero())

	assert.ErrorContains(t, db.UpdateHostStatus("ghost", v1.HostOnline, 0), "not found")

	hosts, err := db.ListHosts()
	require.NoError(t, err)
	assert.Len(t, hosts, 1)

	require.NoError(t, db.DeleteHost("build-02"))
	got, err = db.GetHost("build-02")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWorkspaceTracking(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.PutWorkspace(v1.WorkspaceInfo{Path: "/tmp/pipsmoke-b", RunID: "r2", Runner: "venv", CreatedAt: now}))
	require.NoError(t, db.PutWorkspace(v1.WorkspaceInfo{Path: "/tmp/pipsmoke-a", RunID: "r1", Runner: "venv", CreatedAt: now.Add(-time.Hour), Reason: "kept"}))

	wss, err := db.ListWorkspaces()
	require.NoError(t, err)
	require.Len(t, wss, 2)
	// Oldest first
	assert.Equal(t, "/tmp/pipsmoke-a", wss[0].Path)
	assert.Equal(t, "kept", wss[0].Reason)

	require.NoError(t, db.DeleteWorkspace("/tmp/pipsmoke-a"))
	wss, err = db.ListWorkspaces()
	require.NoError(t, err)
	assert.Len(t, wss, 1)
}
