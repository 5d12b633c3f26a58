package app

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidKeypair = errors.New("invalid keypair file")

// LoadKeypair reads a Solana CLI keypair file: a JSON array of the 64 bytes
// of an ed25519 private key. A leading ~/ expands to the home directory.
func LoadKeypair(fileURL string) (ed25519.PrivateKey, error) {
	if strings.HasPrefix(fileURL, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve home directory")
		}
		fileURL = filepath.Join(home, fileURL[2:])
	}

	data, err := LoadFile(fileURL)
	if err != nil {
		return nil, err
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, errors.Wrap(ErrInvalidKeypair, err.Error())
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKeypair, "expected %d bytes, got %d", ed25519.PrivateKeySize, len(ints))
	}

	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, errors.Wrapf(ErrInvalidKeypair, "byte %d out of range", i)
		}
		raw[i] = byte(v)
	}

	key := ed25519.PrivateKey(raw)
	derived := ed25519.NewKeyFromSeed(key.Seed())
	if !derived.Equal(key) {
		return nil, errors.Wrap(ErrInvalidKeypair, "public key doesn't match seed")
	}
	return key, nil
}

// WriteKeypair writes key in the Solana CLI keypair format.
func WriteKeypair(path string, key ed25519.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}

	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
