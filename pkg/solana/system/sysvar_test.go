package system

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	for expected, key := range map[string]ed25519.PublicKey{
		"11111111111111111111111111111111":            ProgramKey,
		"SysvarRent111111111111111111111111111111111": RentSysvarKey,
		"SysvarC1ock11111111111111111111111111111111": ClockSysvarKey,
	} {
		assert.Len(t, key, ed25519.PublicKeySize)
		assert.Equal(t, expected, base58.Encode(key))
	}

	assert.Equal(t, make(ed25519.PublicKey, ed25519.PublicKeySize), ProgramKey)
}
