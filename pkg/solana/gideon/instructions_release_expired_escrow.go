package gideon

import (
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/system"
)

type ReleaseExpiredEscrowInstructionAccounts struct {
	// Payer must be the original issuer recorded in the escrow.
	Payer  ed25519.PublicKey
	Escrow ed25519.PublicKey
	Mint   ed25519.PublicKey
}

func NewReleaseExpiredEscrowInstruction(accounts *ReleaseExpiredEscrowInstructionAccounts) solana.Instruction {
	return solana.Instruction{
		Program: ProgramKey,

		Data: []byte{byte(InstructionTypeReleaseExpiredEscrow)},

		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Escrow,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Mint,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  system.ClockSysvarKey,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
