// Package remote: host monitor — per-host goroutines maintaining live connectivity state.
package remote

import (
	"context"
	"sync"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
)

// ProbeInterval is how often each host is probed.
const ProbeInterval = 30 * time.Second

// ProbeTimeout is the max time allowed for a single probe.
const ProbeTimeout = 10 * time.Second

// HostEvent is emitted on the event channel when a host's status changes.
type HostEvent struct {
	Host   string
	Status v1.HostStatus
}

// Monitor runs one goroutine per host to maintain connectivity state.
type Monitor struct {
	pool     *Pool
	registry *Registry
	events   chan HostEvent // external consumers (TUI) read from this
	log      *logger.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewMonitor creates a host Monitor.
// The events channel is buffered; consumers should drain it promptly.
func NewMonitor(pool *Pool, registry *Registry, log *logger.Logger) *Monitor {
	return &Monitor{
		pool:     pool,
		registry: registry,
		events:   make(chan HostEvent, 64),
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Events returns the channel on which HostEvents are published.
func (m *Monitor) Events() <-chan HostEvent {
	return m.events
}

// Watch starts a probe goroutine for the named host (idempotent).
func (m *Monitor) Watch(host v1.HostInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cancels[host.Spec.Name]; ok {
		return // already watching
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancels[host.Spec.Name] = cancel
	go m.watchLoop(ctx, host)
	m.log.Info("host monitor started", "host", host.Spec.Name)
}

// Unwatch stops the probe goroutine for a host.
func (m *Monitor) Unwatch(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[name]; ok {
		cancel()
		delete(m.cancels, name)
	}
}

// StopAll stops all probe goroutines.
func (m *Monitor) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, cancel := range m.cancels {
		cancel()
		delete(m.cancels, name)
		m.log.Info("host monitor stopped", "host", name)
	}
}

// watchLoop is the per-host probe goroutine.
func (m *Monitor) watchLoop(ctx context.Context, host v1.HostInfo) {
	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()

	failCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
			_, _, err := m.pool.Run(probeCtx, host, "echo __pipsmoke_hb__")
			cancel()

			if err != nil {
				failCount++
				m.log.Debug("host probe miss", "host", host.Spec.Name, "fail_count", failCount)

				status := v1.HostDegraded
				if failCount >= 3 {
					status = v1.HostOffline
				}

				if uerr := m.registry.MarkOffline(host.Spec.Name, failCount); uerr != nil {
					m.log.Warn("host monitor: state update failed", "err", uerr)
				}

				// Emit event on status transition
				m.emit(HostEvent{Host: host.Spec.Name, Status: status})
			} else {
				if failCount > 0 {
					// Recovery from degraded state
					m.log.Info("host recovered", "host", host.Spec.Name)
					m.emit(HostEvent{Host: host.Spec.Name, Status: v1.HostOnline})
				}
				failCount = 0
				if uerr := m.registry.MarkOnline(host.Spec.Name); uerr != nil {
					m.log.Warn("host monitor: state update failed", "err", uerr)
				}
			}
		}
	}
}

// emit sends a HostEvent without blocking (drops if channel full).
func (m *Monitor) emit(ev HostEvent) {
	select {
	case m.events <- ev:
	default:
		m.log.Debug("host event channel full, dropping event", "host", ev.Host)
	}
}
