package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana/shortvec"
)

// ErrUnsupportedMessageVersion is returned when decoding a versioned (v0+)
// message. Only legacy messages are built and submitted.
var ErrUnsupportedMessageVersion = errors.New("versioned messages not supported")

// Legacy messages start with the signature count, which never has the high
// bit set. Versioned messages use it as a prefix flag.
const versionPrefixMask = 0x80

func appendLen(b []byte, n int) []byte {
	// Counts are bounded well below a u16 by MaxTransactionSize
	b, _ = shortvec.AppendLen(b, n)
	return b
}

func (t Transaction) Marshal() []byte {
	b := appendLen(nil, len(t.Signatures))
	for _, s := range t.Signatures {
		b = append(b, s[:]...)
	}
	return append(b, t.Message.Marshal()...)
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := bytes.NewReader(b)

	count, err := shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "failed to read signature count")
	}

	signatures := make([]Signature, count)
	for i := range signatures {
		if _, err := io.ReadFull(r, signatures[i][:]); err != nil {
			return errors.Wrapf(err, "failed to read signature %d", i)
		}
	}

	var m Message
	if err := m.Unmarshal(b[len(b)-r.Len():]); err != nil {
		return err
	}

	t.Signatures = signatures
	t.Message = m
	return nil
}

func (m Message) Marshal() []byte {
	b := []byte{
		m.Header.NumSignatures,
		m.Header.NumReadonlySigned,
		m.Header.NumReadOnly,
	}

	b = appendLen(b, len(m.Accounts))
	for _, account := range m.Accounts {
		b = append(b, account...)
	}

	b = append(b, m.RecentBlockhash[:]...)

	b = appendLen(b, len(m.Instructions))
	for _, instruction := range m.Instructions {
		b = append(b, instruction.ProgramIndex)
		b = appendLen(b, len(instruction.Accounts))
		b = append(b, instruction.Accounts...)
		b = appendLen(b, len(instruction.Data))
		b = append(b, instruction.Data...)
	}

	return b
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&versionPrefixMask != 0 {
		return ErrUnsupportedMessageVersion
	}

	r := bytes.NewReader(b)

	var decoded Message
	header, err := readBytes(r, 3)
	if err != nil {
		return errors.Wrap(err, "failed to read header")
	}
	decoded.Header = Header{
		NumSignatures:     header[0],
		NumReadonlySigned: header[1],
		NumReadOnly:       header[2],
	}

	count, err := shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "failed to read account count")
	}
	decoded.Accounts = make([]ed25519.PublicKey, count)
	for i := range decoded.Accounts {
		if decoded.Accounts[i], err = readBytes(r, ed25519.PublicKeySize); err != nil {
			return errors.Wrapf(err, "failed to read account %d", i)
		}
	}

	if _, err := io.ReadFull(r, decoded.RecentBlockhash[:]); err != nil {
		return errors.Wrap(err, "failed to read recent blockhash")
	}

	if count, err = shortvec.DecodeLen(r); err != nil {
		return errors.Wrap(err, "failed to read instruction count")
	}
	decoded.Instructions = make([]CompiledInstruction, count)
	for i := range decoded.Instructions {
		instruction, err := readInstruction(r, len(decoded.Accounts))
		if err != nil {
			return errors.Wrapf(err, "failed to read instruction %d", i)
		}
		decoded.Instructions[i] = *instruction
	}

	*m = decoded
	return nil
}

func readInstruction(r *bytes.Reader, numAccounts int) (*CompiledInstruction, error) {
	programIndex, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "program index")
	}
	if int(programIndex) >= numAccounts {
		return nil, errors.Errorf("program index %d out of range", programIndex)
	}

	count, err := shortvec.DecodeLen(r)
	if err != nil {
		return nil, errors.Wrap(err, "account count")
	}
	accounts, err := readBytes(r, count)
	if err != nil {
		return nil, errors.Wrap(err, "accounts")
	}
	for _, index := range accounts {
		if int(index) >= numAccounts {
			return nil, errors.Errorf("account index %d out of range", index)
		}
	}

	if count, err = shortvec.DecodeLen(r); err != nil {
		return nil, errors.Wrap(err, "data len")
	}
	data, err := readBytes(r, count)
	if err != nil {
		return nil, errors.Wrap(err, "data")
	}

	return &CompiledInstruction{
		ProgramIndex: programIndex,
		Accounts:     accounts,
		Data:         data,
	}, nil
}

func readBytes(r *bytes.Reader, n int) ([]byte, error) {
	if n > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}
