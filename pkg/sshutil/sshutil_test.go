package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func testKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestFingerprintMD5(t *testing.T) {
	fp := FingerprintMD5(testKey(t))

	parts := strings.Split(fp, ":")
	assert.Len(t, parts, 16)
	for _, p := range parts {
		assert.Len(t, p, 2)
	}
}

func TestEncodeHostKey(t *testing.T) {
	key := testKey(t)
	line := EncodeHostKey("build-02:22", key)

	fields := strings.Fields(line)
	require.Len(t, fields, 3)
	assert.Equal(t, "build-02:22", fields[0])
	assert.Equal(t, key.Type(), fields[1])
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'/tmp/dist/pkg.tar.gz'", Quote("/tmp/dist/pkg.tar.gz"))
	assert.Equal(t, `'it'\''s.tar.gz'`, Quote("it's.tar.gz"))
}

func TestQuoteArgs(t *testing.T) {
	line := QuoteArgs([]string{"pip", "install", "/tmp/my pkg.tar.gz"})
	assert.Equal(t, "'pip' 'install' '/tmp/my pkg.tar.gz'", line)
}

func TestClientConfigMissingKey(t *testing.T) {
	_, err := ClientConfig("smoke", "/nonexistent/id_ed25519", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read key")
}
