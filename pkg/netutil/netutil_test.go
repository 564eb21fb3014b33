package netutil

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPort(t *testing.T) {
	assert.True(t, IsValidPort(1024))
	assert.True(t, IsValidPort(8000))
	assert.True(t, IsValidPort(65535))
	assert.False(t, IsValidPort(80))
	assert.False(t, IsValidPort(0))
	assert.False(t, IsValidPort(70000))
}

func TestProbeTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	assert.NoError(t, ProbeTCP(context.Background(), "127.0.0.1", port, time.Second))
}

func TestProbeTCPRefused(t *testing.T) {
	// Grab a port the OS considers free, then close it so nothing listens.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	err = ProbeTCP(context.Background(), "127.0.0.1", port, 500*time.Millisecond)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("127.0.0.1:%d", port))
}

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort string
	}{
		{"build-02:2222", "build-02", "2222"},
		{"build-02", "build-02", "22"},
		{"10.0.0.5:22", "10.0.0.5", "22"},
		{"[::1]:2222", "::1", "2222"},
	}
	for _, tt := range tests {
		host, port, err := SplitHostPort(tt.addr, 22)
		require.NoError(t, err)
		assert.Equal(t, tt.wantHost, host)
		assert.Equal(t, tt.wantPort, port)
	}
}
