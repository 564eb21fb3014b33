// Package remote: host registry — CRUD operations backed by BoltDB via the state package.
package remote

import (
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/state"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

// Registry wraps state.DB for host-specific operations.
type Registry struct {
	db *state.DB
}

// NewRegistry constructs a Registry.
func NewRegistry(db *state.DB) *Registry {
	return &Registry{db: db}
}

// Add registers a new host. Returns an error if the name is already taken.
func (r *Registry) Add(host v1.HostInfo) error {
	existing, err := r.db.GetHost(host.Spec.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.Newf(errs.ErrValidation, "registry.add",
			"host %q already registered", host.Spec.Name).
			WithAdvice("remove it first with 'pipsmoke hosts rm'")
	}
	host.Status = v1.HostOffline
	host.LastSeen = time.Now().UTC()
	return r.db.PutHost(host)
}

// Remove deletes a host from the registry.
func (r *Registry) Remove(name string) error {
	existing, err := r.db.GetHost(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return errs.Newf(errs.ErrHostNotFound, "registry.remove", "host %q not found", name)
	}
	return r.db.DeleteHost(name)
}

// Get returns the HostInfo for name, or an error if not registered.
func (r *Registry) Get(name string) (v1.HostInfo, error) {
	info, err := r.db.GetHost(name)
	if err != nil {
		return v1.HostInfo{}, err
	}
	if info == nil {
		return v1.HostInfo{}, errs.Newf(errs.ErrHostNotFound, "registry.get",
			"host %q not registered", name).
			WithAdvice("register it with 'pipsmoke hosts add'")
	}
	return *info, nil
}

// List returns all registered hosts.
func (r *Registry) List() ([]v1.HostInfo, error) {
	return r.db.ListHosts()
}

// Trust records the host key fingerprint, enabling strict verification on
// every later dial.
func (r *Registry) Trust(name, fingerprint, encodedHostKey string) error {
	info, err := r.Get(name)
	if err != nil {
		return err
	}
	info.KeyFingerprint = fingerprint
	info.HostKey = encodedHostKey
	info.HostKeyKnown = true
	return r.db.PutHost(info)
}

// RecordProbe stores the interpreter version reported by a successful probe
// and marks the host online.
func (r *Registry) RecordProbe(name, pythonVersion string) error {
	info, err := r.Get(name)
	if err != nil {
		return err
	}
	info.PythonVersion = pythonVersion
	info.Status = v1.HostOnline
	info.LastSeen = time.Now().UTC()
	info.FailCount = 0
	return r.db.PutHost(info)
}

// MarkOnline updates a host's status to Online and resets its fail count.
func (r *Registry) MarkOnline(name string) error {
	return r.db.UpdateHostStatus(name, v1.HostOnline, 0)
}

// MarkOffline increments the fail count and marks the host Offline once the
// threshold is reached.
func (r *Registry) MarkOffline(name string, failCount int) error {
	status := v1.HostDegraded
	if failCount >= 3 {
		status = v1.HostOffline
	}
	return r.db.UpdateHostStatus(name, status, failCount)
}
