package token

import (
	"bytes"
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
)

// COption<T> in the token program layouts is a u32 tag followed by the value,
// with the value bytes present (zeroed) even when the tag is unset.

type layoutReader struct {
	dec *bin.Decoder
	err error
}

func newLayoutReader(b []byte) *layoutReader {
	return &layoutReader{dec: bin.NewBinDecoder(b)}
}

func (r *layoutReader) key() ed25519.PublicKey {
	if r.err != nil {
		return nil
	}

	b, err := r.dec.ReadNBytes(ed25519.PublicKeySize)
	if err != nil {
		r.err = err
		return nil
	}
	return append(ed25519.PublicKey(nil), b...)
}

func (r *layoutReader) optionalKey() ed25519.PublicKey {
	tag := r.u32()
	key := r.key()
	if tag != 1 {
		return nil
	}
	return key
}

func (r *layoutReader) u8() uint8 {
	if r.err != nil {
		return 0
	}

	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *layoutReader) u32() uint32 {
	if r.err != nil {
		return 0
	}

	v, err := r.dec.ReadUint32(bin.LE)
	r.err = err
	return v
}

func (r *layoutReader) u64() uint64 {
	if r.err != nil {
		return 0
	}

	v, err := r.dec.ReadUint64(bin.LE)
	r.err = err
	return v
}

func (r *layoutReader) optionalU64() *uint64 {
	tag := r.u32()
	v := r.u64()
	if tag != 1 || r.err != nil {
		return nil
	}
	return &v
}

// layoutWriter ignores encoder errors, writes into a bytes.Buffer can't fail.
type layoutWriter struct {
	buf bytes.Buffer
	enc *bin.Encoder
}

func newLayoutWriter(size int) *layoutWriter {
	w := &layoutWriter{}
	w.buf.Grow(size)
	w.enc = bin.NewBinEncoder(&w.buf)
	return w
}

func (w *layoutWriter) key(key ed25519.PublicKey) {
	padded := make([]byte, ed25519.PublicKeySize)
	copy(padded, key)
	_ = w.enc.WriteBytes(padded, false)
}

func (w *layoutWriter) optionalKey(key ed25519.PublicKey) {
	if len(key) > 0 {
		w.u32(1)
	} else {
		w.u32(0)
	}
	w.key(key)
}

func (w *layoutWriter) u8(v uint8) {
	_ = w.enc.WriteUint8(v)
}

func (w *layoutWriter) u32(v uint32) {
	_ = w.enc.WriteUint32(v, bin.LE)
}

func (w *layoutWriter) u64(v uint64) {
	_ = w.enc.WriteUint64(v, bin.LE)
}

func (w *layoutWriter) optionalU64(v *uint64) {
	if v == nil {
		w.u32(0)
		w.u64(0)
		return
	}
	w.u32(1)
	w.u64(*v)
}

// bytes returns the written layout zero padded to size.
func (w *layoutWriter) bytes(size int) []byte {
	out := make([]byte, size)
	copy(out, w.buf.Bytes())
	return out
}
