// Package shortvec implements the compact-u16 length prefix of the Solana wire
// format: little-endian groups of 7 bits with the high bit marking
// continuation, at most 3 bytes.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedSize = 3

var (
	ErrLenTooLarge  = errors.New("len exceeds max u16")
	ErrNonCanonical = errors.New("non-canonical len encoding")
)

// AppendLen appends the encoding of n to dst.
func AppendLen(dst []byte, n int) ([]byte, error) {
	if n < 0 || n > math.MaxUint16 {
		return dst, errors.Wrapf(ErrLenTooLarge, "%d", n)
	}

	for n >= 0x80 {
		dst = append(dst, byte(n)|0x80)
		n >>= 7
	}
	return append(dst, byte(n)), nil
}

// DecodeLen reads an encoded len from r.
func DecodeLen(r io.ByteReader) (int, error) {
	var n int
	for i := 0; i < maxEncodedSize; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		// The last byte can only carry the top two bits of a u16.
		if i == maxEncodedSize-1 && b > 0x03 {
			return 0, ErrLenTooLarge
		}
		if i > 0 && b == 0 {
			return 0, ErrNonCanonical
		}

		n |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return n, nil
		}
	}
	return 0, ErrLenTooLarge
}
