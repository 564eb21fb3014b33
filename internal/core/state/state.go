// Package state manages pipsmoke's persistent state using BoltDB.
// All writes are transactional; reads use read-only transactions to minimise contention.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	v1 "github.com/hacker-4-good/chroma/api/v1"
)

// Bucket names
var (
	bucketRuns       = []byte("runs")
	bucketHosts      = []byte("hosts")
	bucketWorkspaces = []byte("workspaces")
)

// DB wraps a BoltDB instance with typed accessor methods.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (or creates) the state database at the given path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db %q: %w", path, err)
	}

	// Ensure all buckets exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRuns, bucketHosts, bucketWorkspaces} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %q: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &DB{bolt: db}, nil
}

// Close closes the underlying BoltDB file.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Run history
// ─────────────────────────────────────────────────────────────────────────────

// PutRun upserts a run record.
func (db *DB) PutRun(rec v1.RunRecord) error {
	return db.putJSON(bucketRuns, rec.ID, rec)
}

// GetRun retrieves a run by its full ID. Returns nil, nil if not found.
func (db *DB) GetRun(id string) (*v1.RunRecord, error) {
	var rec v1.RunRecord
	found, err := db.getJSON(bucketRuns, id, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// FindRun retrieves a run by ID prefix. Errors when the prefix is ambiguous;
// returns nil, nil when nothing matches.
func (db *DB) FindRun(idPrefix string) (*v1.RunRecord, error) {
	var match *v1.RunRecord
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			if !strings.HasPrefix(string(k), idPrefix) {
				return nil
			}
			if match != nil {
				return fmt.Errorf("run id prefix %q is ambiguous", idPrefix)
			}
			var rec v1.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run %q: %w", k, err)
			}
			match = &rec
			return nil
		})
	})
	return match, err
}

// DeleteRun removes a run record.
func (db *DB) DeleteRun(id string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Delete([]byte(id))
	})
}

// ListRuns returns run records newest-first, optionally filtered by artifact
// basename and/or status. Pass empty strings for no filter.
func (db *DB) ListRuns(artifact string, status v1.RunStatus) ([]v1.RunRecord, error) {
	var recs []v1.RunRecord
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var r v1.RunRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal run %q: %w", k, err)
			}
			if artifact != "" && r.Artifact.Base != artifact {
				return nil
			}
			if status != "" && r.Status != status {
				return nil
			}
			recs = append(recs, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].StartedAt.After(recs[j].StartedAt)
	})
	return recs, nil
}

// PruneRuns deletes the oldest records beyond limit. Returns how many were removed.
// A limit of zero disables pruning.
func (db *DB) PruneRuns(limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	all, err := db.ListRuns("", "")
	if err != nil {
		return 0, err
	}
	if len(all) <= limit {
		return 0, nil
	}
	stale := all[limit:]
	err = db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		for _, r := range stale {
			if err := b.Delete([]byte(r.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Host operations
// ─────────────────────────────────────────────────────────────────────────────

// PutHost upserts a HostInfo record.
func (db *DB) PutHost(info v1.HostInfo) error {
	return db.putJSON(bucketHosts, info.Spec.Name, info)
}

// GetHost retrieves a HostInfo by name. Returns nil, nil if not found.
func (db *DB) GetHost(name string) (*v1.HostInfo, error) {
	var info v1.HostInfo
	found, err := db.getJSON(bucketHosts, name, &info)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

// DeleteHost removes a host record.
func (db *DB) DeleteHost(name string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHosts).Delete([]byte(name))
	})
}

// ListHosts returns all registered hosts.
func (db *DB) ListHosts() ([]v1.HostInfo, error) {
	var hosts []v1.HostInfo
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(k, v []byte) error {
			var info v1.HostInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return fmt.Errorf("unmarshal host %q: %w", k, err)
			}
			hosts = append(hosts, info)
			return nil
		})
	})
	return hosts, err
}

// UpdateHostStatus updates only the status, last_seen, and fail_count fields.
func (db *DB) UpdateHostStatus(name string, status v1.HostStatus, failCount int) error {
	info, err := db.GetHost(name)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("host %q not found", name)
	}
	info.Status = status
	info.LastSeen = time.Now().UTC()
	info.FailCount = failCount
	return db.PutHost(*info)
}

// ─────────────────────────────────────────────────────────────────────────────
// Workspace tracking
// ─────────────────────────────────────────────────────────────────────────────

// PutWorkspace records a workspace that outlived its run (e.g. --keep).
func (db *DB) PutWorkspace(ws v1.WorkspaceInfo) error {
	return db.putJSON(bucketWorkspaces, ws.Path, ws)
}

// DeleteWorkspace removes a workspace record by path.
func (db *DB) DeleteWorkspace(path string) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWorkspaces).Delete([]byte(path))
	})
}

// ListWorkspaces returns all tracked workspaces, oldest first.
func (db *DB) ListWorkspaces() ([]v1.WorkspaceInfo, error) {
	var wss []v1.WorkspaceInfo
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketWorkspaces).ForEach(func(k, v []byte) error {
			var ws v1.WorkspaceInfo
			if err := json.Unmarshal(v, &ws); err != nil {
				return fmt.Errorf("unmarshal workspace %q: %w", k, err)
			}
			wss = append(wss, ws)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(wss, func(i, j int) bool {
		return wss[i].CreatedAt.Before(wss[j].CreatedAt)
	})
	return wss, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Generic helpers
// ─────────────────────────────────────────────────────────────────────────────

func (db *DB) putJSON(bucket []byte, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (db *DB) getJSON(bucket []byte, key string, out any) (bool, error) {
	var found bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}
