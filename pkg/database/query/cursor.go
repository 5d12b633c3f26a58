package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Cursor is an opaque position in a paged result set. Stores encode the
// record's row id.
type Cursor []byte

var (
	EmptyCursor Cursor = Cursor([]byte{})
)

func ToCursor(val uint64) Cursor {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}

func (c Cursor) ToUint64() uint64 {
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}

// FromBase58 parses a cursor previously rendered with ToBase58. An empty
// value is the empty cursor.
func FromBase58(val string) (Cursor, error) {
	if len(val) == 0 {
		return EmptyCursor, nil
	}

	decoded, err := base58.Decode(val)
	if err != nil || len(decoded) != 8 {
		return nil, errors.Errorf("invalid cursor: %q", val)
	}
	return decoded, nil
}
