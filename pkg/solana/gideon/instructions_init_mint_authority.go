package gideon

import (
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
	"github.com/gideon-vouchers/voucher-server/pkg/solana/system"
)

type InitMintAuthorityInstructionAccounts struct {
	MintAuthority ed25519.PublicKey
	Payer         ed25519.PublicKey
}

func NewInitMintAuthorityInstruction(accounts *InitMintAuthorityInstructionAccounts) solana.Instruction {
	return solana.Instruction{
		Program: ProgramKey,

		Data: []byte{byte(InstructionTypeInitMintAuthority)},

		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.MintAuthority,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  system.ProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
