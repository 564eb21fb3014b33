// Package netutil provides the network helpers behind serve-check probing
// and host address parsing.
package netutil

import (
	"context"
	"fmt"
	"net"
	"time"
)

// IsValidPort returns true if port is in the unprivileged range (1024–65535).
// Serve checks bind inside sandboxes that run without root, so lower ports
// are rejected before the server is ever started.
func IsValidPort(port int) bool {
	return port >= 1024 && port <= 65535
}

// ProbeTCP dials host:port and returns nil if successful within the timeout.
func ProbeTCP(ctx context.Context, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp probe to %s failed: %w", addr, err)
	}
	conn.Close()
	return nil
}

// SplitHostPort wraps net.SplitHostPort with a default port fallback, so
// host registration accepts both "build-02" and "build-02:2222".
func SplitHostPort(addr string, defaultPort int) (host string, port string, err error) {
	host, port, err = net.SplitHostPort(addr)
	if err != nil {
		// No port in addr — treat entire string as host
		return addr, fmt.Sprintf("%d", defaultPort), nil
	}
	return host, port, nil
}
