package app

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gideon-vouchers/voucher-server/pkg/testutil"
)

func TestKeypair_RoundTrip(t *testing.T) {
	key := testutil.GenerateSolanaKeypair(t)
	path := filepath.Join(t.TempDir(), "id.json")

	require.NoError(t, WriteKeypair(path, key))

	for _, fileURL := range []string{path, "file://" + path} {
		loaded, err := LoadKeypair(fileURL)
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	}
}

func TestKeypair_Invalid(t *testing.T) {
	dir := t.TempDir()

	for name, contents := range map[string]string{
		"not-json.json": "hello",
		"short.json":    "[1,2,3]",
		"range.json":    "[" + strings.Repeat("256,", 63) + "1]",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

		_, err := LoadKeypair(path)
		assert.True(t, errors.Is(err, ErrInvalidKeypair), name)
	}

	mismatched := append(ed25519.PrivateKey(nil), testutil.GenerateSolanaKeypair(t)...)
	mismatched[ed25519.PrivateKeySize-1] ^= 0xff
	path := filepath.Join(dir, "mismatched.json")
	require.NoError(t, WriteKeypair(path, mismatched))

	_, err := LoadKeypair(path)
	assert.True(t, errors.Is(err, ErrInvalidKeypair))

	_, err = LoadKeypair(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = LoadKeypair("s3://bucket/id.json")
	assert.Error(t, err)
}
