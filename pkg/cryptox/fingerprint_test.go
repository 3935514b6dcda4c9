package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedHash(t *testing.T) {
	t.Parallel()

	secret := []byte("server-secret")

	t.Run("fixed length hex output", func(t *testing.T) {
		fp := KeyedHash(secret, "bob")
		require.Len(t, fp, FingerprintLength)
		require.Regexp(t, "^[0-9a-f]{40}$", fp)
	})

	t.Run("deterministic for same inputs", func(t *testing.T) {
		require.Equal(t, KeyedHash(secret, "bob"), KeyedHash(secret, "bob"))
	})

	t.Run("differs per secret and per data", func(t *testing.T) {
		require.NotEqual(t, KeyedHash(secret, "bob"), KeyedHash(secret, "alice"))
		require.NotEqual(t, KeyedHash(secret, "bob"), KeyedHash([]byte("other"), "bob"))
	})
}

func TestBrowserUID(t *testing.T) {
	t.Parallel()

	secret := []byte("server-secret")
	a := BrowserUID(secret, "Mozilla/5.0")
	b := BrowserUID(secret, "curl/8.0")

	require.Len(t, a, FingerprintLength)
	require.NotEqual(t, a, b)
	require.True(t, FingerprintEqual(a, BrowserUID(secret, "Mozilla/5.0")))
	require.False(t, FingerprintEqual(a, b))
}
