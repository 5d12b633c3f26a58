package gideon

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	EscrowAccountSize = (32 + // payer
		32 + // recipient
		16 + // amount, allocated as u128
		1 + // bump
		32) // voucher_mint

	// EscrowRecipientOffset is where the recipient key starts in escrow data.
	EscrowRecipientOffset = 32
)

type EscrowAccount struct {
	Payer       ed25519.PublicKey
	Recipient   ed25519.PublicKey
	Amount      uint64
	Bump        uint8
	VoucherMint ed25519.PublicKey
}

type rawEscrowAccount struct {
	Payer       [32]byte
	Recipient   [32]byte
	Amount      uint64
	Bump        uint8
	VoucherMint [32]byte
}

func (a *EscrowAccount) Unmarshal(data []byte) error {
	var raw rawEscrowAccount
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return errors.Wrap(ErrInvalidAccountData, err.Error())
	}

	a.Payer = append(ed25519.PublicKey(nil), raw.Payer[:]...)
	a.Recipient = append(ed25519.PublicKey(nil), raw.Recipient[:]...)
	a.Amount = raw.Amount
	a.Bump = raw.Bump
	a.VoucherMint = append(ed25519.PublicKey(nil), raw.VoucherMint[:]...)

	return nil
}

// Marshal returns the account data padded to the allocated account size.
func (a *EscrowAccount) Marshal() ([]byte, error) {
	raw := rawEscrowAccount{
		Payer:       toKey32(a.Payer),
		Recipient:   toKey32(a.Recipient),
		Amount:      a.Amount,
		Bump:        a.Bump,
		VoucherMint: toKey32(a.VoucherMint),
	}

	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(raw); err != nil {
		return nil, err
	}

	data := make([]byte, EscrowAccountSize)
	copy(data, buf.Bytes())
	return data, nil
}

// IsCleared reports whether the escrow data has been zeroed, which the
// program does when it releases the escrow.
func (a *EscrowAccount) IsCleared() bool {
	return a.Amount == 0 && bytes.Equal(a.Payer, make([]byte, ed25519.PublicKeySize))
}

func (a *EscrowAccount) String() string {
	return fmt.Sprintf(
		"EscrowAccount{payer=%s,recipient=%s,amount=%d,bump=%d,voucher_mint=%s}",
		base58.Encode(a.Payer),
		base58.Encode(a.Recipient),
		a.Amount,
		a.Bump,
		base58.Encode(a.VoucherMint),
	)
}
