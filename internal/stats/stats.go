// Package stats aggregates run history into the numbers shown by the
// dashboard and the runs summary footer.
package stats

import (
	"context"
	"sync"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/state"
)

// PollInterval is how often the collector refreshes its snapshot.
const PollInterval = 2 * time.Second

// Summary are the aggregate numbers over a set of run records.
type Summary struct {
	Total     int
	Passed    int
	Failed    int
	Errored   int
	PassRate  float64 // 0–100, over runs that reached a verdict
	AvgMS     int64   // mean run duration
	LastRun   time.Time
	ByRunner  map[string]int
	Artifacts int // distinct artifact basenames
}

// Aggregate computes a Summary from run records (any order).
func Aggregate(runs []v1.RunRecord) Summary {
	s := Summary{ByRunner: make(map[string]int)}
	seen := make(map[string]bool)
	var totalMS int64

	for _, r := range runs {
		s.Total++
		switch r.Status {
		case v1.RunPassed:
			s.Passed++
		case v1.RunFailed:
			s.Failed++
		default:
			s.Errored++
		}
		s.ByRunner[r.Runner]++
		totalMS += r.DurationMS
		if r.StartedAt.After(s.LastRun) {
			s.LastRun = r.StartedAt
		}
		if !seen[r.Artifact.Base] {
			seen[r.Artifact.Base] = true
			s.Artifacts++
		}
	}

	if verdicts := s.Passed + s.Failed; verdicts > 0 {
		s.PassRate = float64(s.Passed) / float64(verdicts) * 100
	}
	if s.Total > 0 {
		s.AvgMS = totalMS / int64(s.Total)
	}
	return s
}

// LatestPerArtifact maps each artifact basename to its most recent run.
func LatestPerArtifact(runs []v1.RunRecord) map[string]v1.RunRecord {
	latest := make(map[string]v1.RunRecord)
	for _, r := range runs {
		if cur, ok := latest[r.Artifact.Base]; !ok || r.StartedAt.After(cur.StartedAt) {
			latest[r.Artifact.Base] = r
		}
	}
	return latest
}

// Snapshot holds the most recent aggregate for concurrent readers.
type Snapshot struct {
	mu      sync.RWMutex
	summary Summary
	runs    []v1.RunRecord
}

// Get returns the current summary and run list.
func (s *Snapshot) Get() (Summary, []v1.RunRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary, s.runs
}

func (s *Snapshot) set(sum Summary, runs []v1.RunRecord) {
	s.mu.Lock()
	s.summary = sum
	s.runs = runs
	s.mu.Unlock()
}

// Collector polls the state store and publishes to a Snapshot.
type Collector struct {
	db   *state.DB
	snap *Snapshot
	log  *logger.Logger
}

// NewCollector constructs a Collector over the run history.
func NewCollector(db *state.DB, log *logger.Logger) *Collector {
	return &Collector{db: db, snap: &Snapshot{}, log: log}
}

// Snapshot returns the collector's shared snapshot.
func (c *Collector) Snapshot() *Snapshot {
	return c.snap
}

// Run starts the collection loop. Blocks until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	c.collect() // prime before the first tick
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	runs, err := c.db.ListRuns("", "")
	if err != nil {
		c.log.Debug("stats collect: list runs", "err", err)
		return
	}
	c.snap.set(Aggregate(runs), runs)
}
