package gideon

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

// ProgramKey is the deployed escrow voucher program.
var ProgramKey = mustKey("gidsaNxwQbr6pyLDaqVn4pPwAypkjwFNZQvvKBJ1Rbi")

func mustKey(address string) ed25519.PublicKey {
	key, err := solana.ParsePublicKey(address)
	if err != nil {
		panic(err)
	}
	return key
}
