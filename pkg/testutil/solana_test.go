package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSolanaAddresses(t *testing.T) {
	addresses := GenerateSolanaAddresses(t, 3)
	require.Len(t, addresses, 3)

	seen := make(map[string]struct{})
	for _, address := range addresses {
		decoded, err := base58.Decode(address)
		require.NoError(t, err)
		assert.Len(t, decoded, ed25519.PublicKeySize)
		seen[address] = struct{}{}
	}
	assert.Len(t, seen, 3)
}
