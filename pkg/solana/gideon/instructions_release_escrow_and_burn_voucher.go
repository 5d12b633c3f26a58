package gideon

import (
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/system"
)

type ReleaseEscrowAndBurnVoucherInstructionAccounts struct {
	// Payer is the voucher holder redeeming the escrow, not the issuer.
	Payer                  ed25519.PublicKey
	AssociatedTokenAccount ed25519.PublicKey
	Mint                   ed25519.PublicKey
	MintAuthority          ed25519.PublicKey
	Escrow                 ed25519.PublicKey
	TokenProgram           ed25519.PublicKey
}

func NewReleaseEscrowAndBurnVoucherInstruction(accounts *ReleaseEscrowAndBurnVoucherInstructionAccounts) solana.Instruction {
	return solana.Instruction{
		Program: ProgramKey,

		Data: []byte{byte(InstructionTypeReleaseEscrowAndBurnVoucher)},

		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.AssociatedTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Mint,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.MintAuthority,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Escrow,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.TokenProgram,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  system.ClockSysvarKey,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  system.ProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
