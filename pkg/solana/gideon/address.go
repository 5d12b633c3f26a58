package gideon

import (
	"crypto/ed25519"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

var (
	EscrowPrefix        = []byte("escrow")
	MintAuthorityPrefix = []byte("mint_authority")
)

type GetEscrowAddressArgs struct {
	Payer     ed25519.PublicKey
	Recipient ed25519.PublicKey
	Mint      ed25519.PublicKey
}

// GetEscrowAddress derives the escrow for a (payer, recipient, mint) triple.
// There is exactly one escrow per triple.
func GetEscrowAddress(args *GetEscrowAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		ProgramKey,
		EscrowPrefix,
		args.Payer,
		args.Recipient,
		args.Mint,
	)
}

func GetMintAuthorityAddress() (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		ProgramKey,
		MintAuthorityPrefix,
	)
}
