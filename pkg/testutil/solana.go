package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/require"
)

// GenerateSolanaKeypair returns a fresh signing key.
func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, private, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return private
}

// GenerateSolanaKeys returns the public halves of n fresh keypairs.
func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	var keys []ed25519.PublicKey
	for len(keys) < n {
		keys = append(keys, GenerateSolanaKeypair(t).Public().(ed25519.PublicKey))
	}
	return keys
}

// GenerateSolanaAddresses returns n fresh base58 encoded wallet addresses.
func GenerateSolanaAddresses(t *testing.T, n int) []string {
	var addresses []string
	for _, key := range GenerateSolanaKeys(t, n) {
		addresses = append(addresses, base58.Encode(key))
	}
	return addresses
}
