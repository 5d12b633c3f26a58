package gideon

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

func toKey32(key ed25519.PublicKey) (out [32]byte) {
	copy(out[:], key)
	return out
}

// encodeInstruction writes the u8 enum tag followed by the Borsh encoding
// of each argument.
func encodeInstruction(t InstructionType, args ...interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(t))

	enc := bin.NewBorshEncoder(buf)
	for _, arg := range args {
		if err := enc.Encode(arg); err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s args", t)
		}
	}

	return buf.Bytes(), nil
}
