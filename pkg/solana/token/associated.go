package token

import (
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is the associated token account program.
var AssociatedTokenAccountProgramKey = mustKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// GetAssociatedAccount derives the canonical token account of wallet for
// mint under the given token program.
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint, program ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(AssociatedTokenAccountProgramKey, wallet, program, mint)
}

// CreateAssociatedTokenAccount returns the instruction creating wallet's
// associated account for mint, funded by payer, along with its address. The
// instruction fails if the account already exists.
func CreateAssociatedTokenAccount(payer, wallet, mint, program ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	address, err := GetAssociatedAccount(wallet, mint, program)
	if err != nil {
		return solana.Instruction{}, nil, err
	}

	return solana.NewInstruction(
		AssociatedTokenAccountProgramKey,
		nil,
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(address, false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(program, false),
	), address, nil
}
