package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

// MaxTransactionSize is the packet data limit a serialized transaction must
// fit in.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/src/packet.rs
const MaxTransactionSize = 1232

var ErrTransactionTooLarge = errors.New("transaction exceeds max size")

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into a legacy transaction paid
// for by payer. Signature slots are allocated but left empty.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	var m Message
	for _, account := range compileAccounts(payer, instructions) {
		m.Accounts = append(m.Accounts, account.PublicKey)

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	for _, instruction := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: byte(m.indexOf(normalizeKey(instruction.Program))),
			Data:         instruction.Data,
		}
		for _, account := range instruction.Accounts {
			compiled.Accounts = append(compiled.Accounts, byte(m.indexOf(normalizeKey(account.PublicKey))))
		}
		m.Instructions = append(m.Instructions, compiled)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the first signature, which identifies the transaction.
func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign fills the signature slot of each signer. Every signer must be one of
// the message's required signers.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		index := t.Message.indexOf(pub)
		switch {
		case index < 0:
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		case index >= len(t.Signatures):
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(signer, message))
	}

	return nil
}

// IsFullySigned reports whether every required signature slot is filled.
func (t *Transaction) IsFullySigned() bool {
	if len(t.Signatures) == 0 {
		return false
	}
	for _, s := range t.Signatures {
		if s == (Signature{}) {
			return false
		}
	}
	return true
}

// CheckSize returns ErrTransactionTooLarge if the serialized transaction
// wouldn't fit in a packet.
func (t *Transaction) CheckSize() error {
	if size := len(t.Marshal()); size > MaxTransactionSize {
		return errors.Wrapf(ErrTransactionTooLarge, "%d bytes", size)
	}
	return nil
}

func (m *Message) indexOf(key ed25519.PublicKey) int {
	for i, account := range m.Accounts {
		if bytes.Equal(account, key) {
			return i
		}
	}
	return -1
}
