// Package remote manages SSH connections to remote verification hosts.
// Each host gets a persistent, multiplexed SSH connection with keepalive.
package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/pkg/errs"
	"github.com/hacker-4-good/chroma/pkg/sshutil"
)

// DefaultSSHPort is the fallback SSH port when HostSpec.Port is 0.
const DefaultSSHPort = 22

// connection holds a live SSH connection and its metadata.
type connection struct {
	client   *ssh.Client
	host     string
	lastUsed time.Time
	cancel   context.CancelFunc
}

// Pool manages persistent SSH connections to remote hosts.
type Pool struct {
	mu    sync.Mutex
	conns map[string]*connection // host name → connection
	log   *logger.Logger
}

// NewPool creates an empty connection pool.
func NewPool(log *logger.Logger) *Pool {
	return &Pool{
		conns: make(map[string]*connection),
		log:   log,
	}
}

// Connect establishes (or returns an existing) SSH connection for a host.
func (p *Pool) Connect(ctx context.Context, host v1.HostInfo) (*ssh.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[host.Spec.Name]; ok {
		// Verify connection is still alive with a lightweight keepalive
		if _, _, err := c.client.Conn.SendRequest("keepalive@pipsmoke", true, nil); err == nil {
			c.lastUsed = time.Now()
			return c.client, nil
		}
		// Connection dead — remove it and reconnect
		c.cancel()
		delete(p.conns, host.Spec.Name)
	}

	client, err := p.dial(host)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		client:   client,
		host:     host.Spec.Name,
		lastUsed: time.Now(),
		cancel:   cancel,
	}
	p.conns[host.Spec.Name] = conn

	// Background keepalive goroutine
	go p.keepalive(connCtx, host.Spec.Name, client)

	p.log.Info("ssh connected", "host", host.Spec.Name, "addr", host.Spec.Host)
	return client, nil
}

// dial opens a new SSH connection to a host based on its spec.
func (p *Pool) dial(host v1.HostInfo) (*ssh.Client, error) {
	keyPath := host.Spec.Key
	if keyPath == "" {
		return nil, errs.Newf(errs.ErrHostConnect, "remote.dial",
			"no SSH key configured for host %q", host.Spec.Name).
			WithAdvice("re-register the host with --key")
	}

	port := host.Spec.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	addr := net.JoinHostPort(host.Spec.Host, fmt.Sprintf("%d", port))

	cfg, err := sshutil.ClientConfig(host.Spec.User, keyPath, "")
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrHostConnect, "remote.dial").WithArtifact(host.Spec.Name)
	}

	// Pin the recorded host key once trust-on-first-use has happened
	if host.HostKeyKnown && host.HostKey != "" {
		cfg.HostKeyCallback = func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			got := sshutil.FingerprintMD5(key)
			expect := host.KeyFingerprint
			if got != expect {
				return errs.Newf(errs.ErrHostKeyMismatch, "remote.dial",
					"host key mismatch for %s: got %s, expected %s", hostname, got, expect).
					WithAdvice("if the host was reinstalled, re-trust it with 'pipsmoke hosts add'")
			}
			return nil
		}
	}

	client, err := sshutil.Dial(addr, cfg)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrHostConnect, "remote.dial").WithArtifact(host.Spec.Name)
	}
	return client, nil
}

// Run executes a command on the named host and returns its combined output.
func (p *Pool) Run(ctx context.Context, host v1.HostInfo, cmd string) (string, int, error) {
	client, err := p.Connect(ctx, host)
	if err != nil {
		return "", -1, err
	}
	return sshutil.RunCommand(client, cmd)
}

// Upload streams src to remotePath on the named host.
func (p *Pool) Upload(ctx context.Context, host v1.HostInfo, src io.Reader, remotePath string) error {
	client, err := p.Connect(ctx, host)
	if err != nil {
		return err
	}
	if err := sshutil.Upload(client, src, remotePath); err != nil {
		return errs.Wrap(err, errs.ErrHostConnect, "remote.upload").WithArtifact(host.Spec.Name)
	}
	return nil
}

// Disconnect closes the connection for a named host.
func (p *Pool) Disconnect(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[name]; ok {
		c.cancel()
		c.client.Close()
		delete(p.conns, name)
		p.log.Info("ssh disconnected", "host", name)
	}
}

// Close disconnects all managed connections.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, c := range p.conns {
		c.cancel()
		c.client.Close()
		delete(p.conns, name)
		p.log.Info("ssh connection closed", "host", name)
	}
}

// keepalive sends periodic keepalive packets to prevent session timeout.
func (p *Pool) keepalive(ctx context.Context, host string, client *ssh.Client) {
	ticker := time.NewTicker(sshutil.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := client.Conn.SendRequest("keepalive@pipsmoke", true, nil); err != nil {
				p.log.Warn("ssh keepalive failed, connection may be dead",
					"host", host, "err", err)
				return
			}
		}
	}
}
